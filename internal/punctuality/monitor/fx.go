package monitor

import (
	"github.com/arrivohq/arrivo/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("punctuality.monitor",
	fx.Provide(
		func(cfg config.Config) Config {
			return Config{
				WindowBefore: cfg.Monitor.WindowBefore,
				WindowAfter:  cfg.Monitor.WindowAfter,
				BatchSize:    cfg.Monitor.BatchSize,
			}
		},
		NewService,
	),
)
