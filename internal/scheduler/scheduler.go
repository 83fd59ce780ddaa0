// Package scheduler fans the monitoring pass out across every tenant with
// appointments in the active window.
package scheduler

import (
	"context"
	"time"

	"github.com/arrivohq/arrivo/internal/auditcontext"
	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/notification/dispatch"
	"github.com/arrivohq/arrivo/internal/punctuality/monitor"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config tunes the tenant fan-out. WhatsAppEnabled pauses the scheduled
// WhatsApp dispatch step without touching queued rows; the manual trigger
// endpoint stays available either way.
type Config struct {
	WindowBefore    time.Duration
	WindowAfter     time.Duration
	TenantCap       int
	DispatchLimit   int
	WhatsAppEnabled bool
}

func (c Config) withDefaults() Config {
	if c.WindowBefore <= 0 {
		c.WindowBefore = 15 * time.Minute
	}
	if c.WindowAfter <= 0 {
		c.WindowAfter = 180 * time.Minute
	}
	if c.TenantCap <= 0 {
		c.TenantCap = 100
	}
	if c.DispatchLimit <= 0 {
		c.DispatchLimit = 100
	}
	return c
}

// TenantOutcome reports the pass for one tenant.
type TenantOutcome struct {
	TenantID   snowflake.ID      `json:"tenant_id"`
	Monitor    monitor.RunResult `json:"monitor"`
	Push       dispatch.Result   `json:"push"`
	WhatsApp   dispatch.Result   `json:"whatsapp"`
	FailedStep string            `json:"failed_step,omitempty"`
}

// Summary aggregates one scheduler run.
type Summary struct {
	TenantsDiscovered int             `json:"tenants_discovered"`
	TenantsFailed     int             `json:"tenants_failed"`
	Tenants           []TenantOutcome `json:"tenants"`
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Monitor     *monitor.Service
	Dispatchers dispatch.Set
	Config      Config
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	monitor     *monitor.Service
	dispatchers dispatch.Set
	cfg         Config
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler"),
		clock:       p.Clock,
		monitor:     p.Monitor,
		dispatchers: p.Dispatchers,
		cfg:         p.Config.withDefaults(),
	}
}

// Run processes every discovered tenant sequentially. A failing tenant is
// recorded and skipped; it never blocks the rest of the fleet.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	ctx = auditcontext.WithSource(ctx, auditcontext.SourceScheduler)

	tenantIDs, err := s.discoverTenants(ctx)
	if err != nil {
		return summary, err
	}
	summary.TenantsDiscovered = len(tenantIDs)

	for _, tenantID := range tenantIDs {
		outcome := s.runTenant(ctx, tenantID)
		if outcome.FailedStep != "" {
			summary.TenantsFailed++
		}
		summary.Tenants = append(summary.Tenants, outcome)
	}

	s.log.Info("scheduler run complete",
		zap.Int("tenants_discovered", summary.TenantsDiscovered),
		zap.Int("tenants_failed", summary.TenantsFailed),
	)
	return summary, nil
}

// discoverTenants lists the distinct tenants holding monitorable
// appointments inside the active window, capped to keep a single run
// bounded.
func (s *Scheduler) discoverTenants(ctx context.Context) ([]snowflake.ID, error) {
	now := s.clock.Now()
	var tenantIDs []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT tenant_id
		 FROM appointments
		 WHERE status IN ('scheduled', 'confirmed')
		   AND starts_at BETWEEN ? AND ?
		 ORDER BY tenant_id
		 LIMIT ?`,
		now.Add(-s.cfg.WindowBefore),
		now.Add(s.cfg.WindowAfter),
		s.cfg.TenantCap,
	).Scan(&tenantIDs).Error
	if err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

func (s *Scheduler) runTenant(ctx context.Context, tenantID snowflake.ID) TenantOutcome {
	outcome := TenantOutcome{TenantID: tenantID}

	monitorResult, err := s.monitor.Run(ctx, monitor.RunRequest{TenantID: tenantID})
	if err != nil {
		outcome.FailedStep = "monitor"
		s.log.Warn("tenant monitoring failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return outcome
	}
	outcome.Monitor = monitorResult

	pushResult, err := s.dispatchers.Push.Dispatch(ctx, &tenantID, s.cfg.DispatchLimit)
	if err != nil {
		outcome.FailedStep = "push"
		s.log.Warn("tenant push dispatch failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return outcome
	}
	outcome.Push = pushResult

	if !s.cfg.WhatsAppEnabled {
		return outcome
	}
	whatsappResult, err := s.dispatchers.WhatsApp.Dispatch(ctx, &tenantID, s.cfg.DispatchLimit)
	if err != nil {
		outcome.FailedStep = "whatsapp"
		s.log.Warn("tenant whatsapp dispatch failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return outcome
	}
	outcome.WhatsApp = whatsappResult

	return outcome
}
