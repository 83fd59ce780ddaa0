package main

import (
	"github.com/arrivohq/arrivo/internal/appointment"
	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/config"
	"github.com/arrivohq/arrivo/internal/consent"
	"github.com/arrivohq/arrivo/internal/eta"
	"github.com/arrivohq/arrivo/internal/migration"
	"github.com/arrivohq/arrivo/internal/notification"
	"github.com/arrivohq/arrivo/internal/notification/dispatch"
	"github.com/arrivohq/arrivo/internal/observability"
	"github.com/arrivohq/arrivo/internal/punctuality"
	"github.com/arrivohq/arrivo/internal/punctuality/monitor"
	"github.com/arrivohq/arrivo/internal/retention"
	"github.com/arrivohq/arrivo/internal/scheduler"
	"github.com/arrivohq/arrivo/internal/seed"
	"github.com/arrivohq/arrivo/internal/server"
	"github.com/arrivohq/arrivo/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		appointment.Module,
		consent.Module,
		punctuality.Module,
		eta.Module,
		notification.Module,
		dispatch.Module,
		monitor.Module,
		scheduler.Module,
		retention.Module,

		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if cfg.IsProduction() {
				return nil
			}
			return seed.EnsureDemoTenant(conn)
		}),
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
