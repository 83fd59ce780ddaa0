package dispatch

import (
	"github.com/arrivohq/arrivo/internal/config"
	"github.com/arrivohq/arrivo/internal/notification"
	"github.com/arrivohq/arrivo/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps bundles the shared dispatcher dependencies.
type Deps struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Queue   *notification.Queue
	Metrics *metrics.MonitorMetrics
}

// Set exposes the channel dispatchers to the scheduler and the HTTP surface.
type Set struct {
	Push     *Dispatcher
	WhatsApp *Dispatcher
}

var Module = fx.Module("notification.dispatch",
	fx.Provide(func(deps Deps, cfg config.Config) Set {
		return Set{
			Push:     NewPushDispatcher(deps, cfg.Push),
			WhatsApp: NewWhatsAppDispatcher(deps, cfg.WhatsApp),
		}
	}),
)
