package scheduler

import (
	"github.com/arrivohq/arrivo/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(
		func(cfg config.Config) Config {
			return Config{
				WindowBefore:    cfg.Monitor.WindowBefore,
				WindowAfter:     cfg.Monitor.WindowAfter,
				TenantCap:       cfg.SchedulerCap,
				WhatsAppEnabled: cfg.WhatsApp.Enabled,
			}
		},
		New,
	),
)
