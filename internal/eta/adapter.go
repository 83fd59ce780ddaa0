package eta

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arrivohq/arrivo/internal/config"
	"github.com/arrivohq/arrivo/internal/observability/metrics"
	"github.com/arrivohq/arrivo/internal/observability/tracing"
	"go.uber.org/zap"
)

// Adapter drives exactly one configured provider. A soft failure (non-2xx,
// malformed body, timeout) is retried up to the attempt budget; exhaustion
// yields a nil result plus the "<name>_failed" marker, never an error — the
// snapshot log records the failed attempt instead.
type Adapter struct {
	provider    Provider
	timeout     time.Duration
	maxAttempts int
	log         *zap.Logger
	metrics     *metrics.MonitorMetrics
}

// NewAdapter builds the adapter for the configured provider. Provider "none"
// is valid: monitoring then relies solely on externally supplied ETAs.
func NewAdapter(cfg config.EtaConfig, log *zap.Logger, m *metrics.MonitorMetrics) (*Adapter, error) {
	client := tracing.WrapHTTPClient(&http.Client{Timeout: cfg.Timeout})

	var provider Provider
	switch cfg.Provider {
	case ProviderNone, "":
		provider = nil
	case "google":
		provider = newGoogleProvider(cfg.GoogleBaseURL, cfg.GoogleAPIKey, client)
	case "mapbox":
		provider = newMapboxProvider(cfg.MapboxBaseURL, cfg.MapboxToken, client)
	case "osrm":
		provider = newOSRMProvider(cfg.OSRMBaseURL, client)
	default:
		return nil, fmt.Errorf("unsupported eta provider %q", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 4500 * time.Millisecond
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}

	return &Adapter{
		provider:    provider,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		log:         log.Named("eta.adapter"),
		metrics:     m,
	}, nil
}

// Active reports whether a live provider is configured.
func (a *Adapter) Active() bool { return a.provider != nil }

// Estimate returns the ETA between origin and destination, plus the provider
// marker to record on the snapshot: the provider name on success, "none"
// when no provider is configured, "<name>_failed" after exhausted retries.
func (a *Adapter) Estimate(ctx context.Context, origin, destination Coordinates) (*Result, string) {
	if a.provider == nil {
		return nil, ProviderNone
	}

	name := a.provider.Name()
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		start := time.Now()
		result, err := a.provider.Estimate(callCtx, origin, destination)
		elapsed := time.Since(start)
		cancel()

		if err != nil || result == nil {
			a.metrics.ObserveEtaRequest(name, "failed", elapsed)
			a.log.Warn("eta attempt failed",
				zap.String("provider", name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		a.metrics.ObserveEtaRequest(name, "success", elapsed)
		if result.EtaMinutes < 1 {
			result.EtaMinutes = 1
		}
		result.Provider = name
		return result, name
	}

	return nil, name + FailedSuffix
}
