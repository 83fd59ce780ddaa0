package eta

import (
	"github.com/arrivohq/arrivo/internal/config"
	"github.com/arrivohq/arrivo/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("eta",
	fx.Provide(func(cfg config.Config, log *zap.Logger, m *metrics.MonitorMetrics) (*Adapter, error) {
		return NewAdapter(cfg.Eta, log, m)
	}),
)
