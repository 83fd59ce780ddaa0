// Package metrics exposes prometheus instruments for the punctuality pipeline.
package metrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels applied to every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// MonitorMetrics covers the monitoring pass, dispatchers and retention.
type MonitorMetrics struct {
	etaRequests        *prometheus.CounterVec
	etaCallDuration    *prometheus.HistogramVec
	snapshotsCaptured  *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	retentionDeleted   *prometheus.CounterVec
	monitorPassSeconds prometheus.Histogram
}

var (
	monitorMetricsOnce sync.Once
	monitorMetrics     *MonitorMetrics
)

// Monitor returns the process-wide pipeline metrics.
func Monitor() *MonitorMetrics {
	return MonitorWithConfig(Config{})
}

// MonitorWithConfig initialises the pipeline metrics once with the given labels.
func MonitorWithConfig(cfg Config) *MonitorMetrics {
	monitorMetricsOnce.Do(func() {
		monitorMetrics = newMonitorMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return monitorMetrics
}

// ResetMonitorMetricsForTest clears the singleton between test registries.
func ResetMonitorMetricsForTest() {
	monitorMetricsOnce = sync.Once{}
	monitorMetrics = nil
}

func newMonitorMetrics(registerer prometheus.Registerer, cfg Config) *MonitorMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "arrivo"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &MonitorMetrics{
		etaRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "arrivo_eta_requests_total",
				Help:        "ETA provider calls by provider and result.",
				ConstLabels: constLabels,
			},
			[]string{"provider", "result"}, // success | failed | skipped
		),
		etaCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "arrivo_eta_call_duration_seconds",
				Help:        "Wall time of a single ETA provider attempt.",
				Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 4.5, 10},
				ConstLabels: constLabels,
			},
			[]string{"provider"},
		),
		snapshotsCaptured: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "arrivo_eta_snapshots_total",
				Help:        "ETA snapshots persisted by provider marker.",
				ConstLabels: constLabels,
			},
			[]string{"provider"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "arrivo_punctuality_transitions_total",
				Help:        "Committed punctuality status transitions by new status.",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "arrivo_notifications_total",
				Help:        "Notification lifecycle outcomes by channel.",
				ConstLabels: constLabels,
			},
			[]string{"channel", "result"}, // queued | deduped | sent | failed
		),
		retentionDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "arrivo_retention_deleted_rows_total",
				Help:        "Rows purged by the retention cleanup per table.",
				ConstLabels: constLabels,
			},
			[]string{"table"},
		),
		monitorPassSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "arrivo_monitor_pass_duration_seconds",
				Help:        "Duration of one monitoring pass over a tenant.",
				Buckets:     []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
				ConstLabels: constLabels,
			},
		),
	}

	for _, collector := range []prometheus.Collector{
		m.etaRequests,
		m.etaCallDuration,
		m.snapshotsCaptured,
		m.transitions,
		m.notifications,
		m.retentionDeleted,
		m.monitorPassSeconds,
	} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}

	return m
}

// ObserveEtaRequest records one provider attempt outcome.
func (m *MonitorMetrics) ObserveEtaRequest(provider, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.etaRequests.WithLabelValues(provider, result).Inc()
	m.etaCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveSnapshot records one persisted snapshot.
func (m *MonitorMetrics) ObserveSnapshot(providerMarker string) {
	if m == nil {
		return
	}
	m.snapshotsCaptured.WithLabelValues(providerMarker).Inc()
}

// ObserveTransition records one committed status transition.
func (m *MonitorMetrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// ObserveNotification records one notification lifecycle outcome.
func (m *MonitorMetrics) ObserveNotification(channel, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

// ObserveRetention records rows purged from one table.
func (m *MonitorMetrics) ObserveRetention(table string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.retentionDeleted.WithLabelValues(table).Add(float64(rows))
}

// ObservePass records the duration of one monitoring pass.
func (m *MonitorMetrics) ObservePass(duration time.Duration) {
	if m == nil {
		return
	}
	m.monitorPassSeconds.Observe(duration.Seconds())
}
