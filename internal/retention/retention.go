// Package retention prunes aged monitoring data. Location history and
// notification logs are personal data; keeping them past their window is a
// liability, not an asset.
package retention

import (
	"context"
	"time"

	"github.com/arrivohq/arrivo/internal/clock"
	consentdomain "github.com/arrivohq/arrivo/internal/consent/domain"
	"github.com/arrivohq/arrivo/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Default windows, in days, for policy rows with unset thresholds.
const (
	DefaultSnapshotDays     = 30
	DefaultEventDays        = 90
	DefaultNotificationDays = 90
	DefaultConsentDays      = 30
)

// Policy holds one tenant's retention windows. Cleanup only runs for
// tenants with an enabled policy row; zero thresholds fall back to the
// defaults.
type Policy struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID `gorm:"not null;uniqueIndex" json:"tenant_id"`
	Enabled          bool         `gorm:"not null;default:true" json:"enabled"`
	SnapshotDays     int          `gorm:"column:keep_eta_snapshots_days;not null;default:0" json:"keep_eta_snapshots_days"`
	EventDays        int          `gorm:"column:keep_punctuality_events_days;not null;default:0" json:"keep_punctuality_events_days"`
	NotificationDays int          `gorm:"column:keep_notification_log_days;not null;default:0" json:"keep_notification_log_days"`
	ConsentDays      int          `gorm:"column:delete_expired_consents_after_days;not null;default:0" json:"delete_expired_consents_after_days"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Policy) TableName() string { return "retention_policies" }

func (p Policy) withDefaults() Policy {
	if p.SnapshotDays <= 0 {
		p.SnapshotDays = DefaultSnapshotDays
	}
	if p.EventDays <= 0 {
		p.EventDays = DefaultEventDays
	}
	if p.NotificationDays <= 0 {
		p.NotificationDays = DefaultNotificationDays
	}
	if p.ConsentDays <= 0 {
		p.ConsentDays = DefaultConsentDays
	}
	return p
}

// TenantReport counts deleted rows for one tenant.
type TenantReport struct {
	TenantID      snowflake.ID `json:"tenant_id"`
	Snapshots     int64        `json:"snapshots_deleted"`
	Events        int64        `json:"events_deleted"`
	Notifications int64        `json:"notifications_deleted"`
	Consents      int64        `json:"consents_deleted"`
}

// Report aggregates one run across all enabled policies.
type Report struct {
	Snapshots     int64          `json:"snapshots_deleted"`
	Events        int64          `json:"events_deleted"`
	Notifications int64          `json:"notifications_deleted"`
	Consents      int64          `json:"consents_deleted"`
	Tenants       []TenantReport `json:"tenants"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Metrics  *metrics.MonitorMetrics
	Consents consentdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	metrics  *metrics.MonitorMetrics
	consents consentdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("retention"),
		clock:    p.Clock,
		metrics:  p.Metrics,
		consents: p.Consents,
	}
}

// Run prunes each enabled tenant's tables independently: a failure in one
// table never blocks the others, and partial progress is kept. Tenants
// without an enabled policy row are untouched.
func (s *Service) Run(ctx context.Context) (Report, error) {
	var report Report
	now := s.clock.Now()

	policies, err := s.loadPolicies(ctx)
	if err != nil {
		return report, err
	}

	var firstErr error
	for _, policy := range policies {
		tenant := TenantReport{TenantID: policy.TenantID}
		record := func(table string, rows int64, err error) int64 {
			if err != nil {
				s.log.Warn("retention delete failed",
					zap.String("table", table),
					zap.String("tenant_id", policy.TenantID.String()),
					zap.Error(err),
				)
				if firstErr == nil {
					firstErr = err
				}
				return 0
			}
			s.metrics.ObserveRetention(table, rows)
			return rows
		}

		rows, err := s.pruneTable(ctx, "eta_snapshots", "captured_at",
			policy.TenantID, now.AddDate(0, 0, -policy.SnapshotDays))
		tenant.Snapshots = record("eta_snapshots", rows, err)

		rows, err = s.pruneTable(ctx, "punctuality_events", "created_at",
			policy.TenantID, now.AddDate(0, 0, -policy.EventDays))
		tenant.Events = record("punctuality_events", rows, err)

		rows, err = s.pruneNotifications(ctx, policy.TenantID, now.AddDate(0, 0, -policy.NotificationDays))
		tenant.Notifications = record("notifications", rows, err)

		rows, err = s.consents.DeleteExpiredBefore(ctx, s.db,
			policy.TenantID, now.AddDate(0, 0, -policy.ConsentDays))
		tenant.Consents = record("consent_records", rows, err)

		report.Snapshots += tenant.Snapshots
		report.Events += tenant.Events
		report.Notifications += tenant.Notifications
		report.Consents += tenant.Consents
		report.Tenants = append(report.Tenants, tenant)
	}

	s.log.Info("retention run complete",
		zap.Int("tenants", len(report.Tenants)),
		zap.Int64("snapshots_deleted", report.Snapshots),
		zap.Int64("events_deleted", report.Events),
		zap.Int64("notifications_deleted", report.Notifications),
		zap.Int64("consents_deleted", report.Consents),
	)
	return report, firstErr
}

func (s *Service) loadPolicies(ctx context.Context) ([]Policy, error) {
	var policies []Policy
	err := s.db.WithContext(ctx).
		Raw(`SELECT * FROM retention_policies WHERE enabled = ? ORDER BY tenant_id`, true).
		Scan(&policies).Error
	if err != nil {
		return nil, err
	}
	for i := range policies {
		policies[i] = policies[i].withDefaults()
	}
	return policies, nil
}

func (s *Service) pruneTable(ctx context.Context, table, column string, tenantID snowflake.ID, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Exec(
		`DELETE FROM `+table+` WHERE tenant_id = ? AND `+column+` < ?`,
		tenantID,
		cutoff,
	)
	return result.RowsAffected, result.Error
}

// pruneNotifications only touches terminal rows; queued work is never
// deleted out from under a dispatcher.
func (s *Service) pruneNotifications(ctx context.Context, tenantID snowflake.ID, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Exec(
		`DELETE FROM notifications
		 WHERE tenant_id = ? AND created_at < ? AND status IN ('sent', 'failed', 'read')`,
		tenantID,
		cutoff,
	)
	return result.RowsAffected, result.Error
}
