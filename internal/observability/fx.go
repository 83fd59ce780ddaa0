// Package observability wires logging, tracing and metrics into the fx graph.
package observability

import (
	"github.com/arrivohq/arrivo/internal/config"
	"github.com/arrivohq/arrivo/internal/observability/logger"
	"github.com/arrivohq/arrivo/internal/observability/metrics"
	"github.com/arrivohq/arrivo/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(func(cfg config.Config) (*zap.Logger, error) {
		return logger.New(cfg.Server.Environment)
	}),
	fx.Provide(func(cfg config.Config) tracing.Config {
		return tracing.Config{
			Enabled:          cfg.Tracing.Enabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.ServiceVersion,
			Environment:      cfg.Server.Environment,
			ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
			ExporterProtocol: cfg.Tracing.ExporterProtocol,
			SamplingRatio:    cfg.Tracing.SamplingRatio,
		}
	}),
	// Invoked, not provided: nothing consumes the provider directly, it
	// installs itself as the otel global.
	fx.Invoke(tracing.NewProvider),
	fx.Provide(func(cfg config.Config) *metrics.MonitorMetrics {
		return metrics.MonitorWithConfig(metrics.Config{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Server.Environment,
		})
	}),
)
