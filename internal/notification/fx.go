package notification

import (
	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/config"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("notification",
	fx.Provide(func(db *gorm.DB, genID *snowflake.Node, clk clock.Clock, cfg config.Config) *Queue {
		return NewQueue(db, genID, clk, cfg.Monitor.DedupWindow)
	}),
)
