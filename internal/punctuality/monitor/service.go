// Package monitor runs the per-appointment punctuality pass: consent,
// destination, ETA, classification, debounce, persistence and notification
// queueing.
package monitor

import (
	"context"
	"fmt"
	"time"

	appointmentdomain "github.com/arrivohq/arrivo/internal/appointment/domain"
	"github.com/arrivohq/arrivo/internal/auditcontext"
	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/consent"
	consentdomain "github.com/arrivohq/arrivo/internal/consent/domain"
	"github.com/arrivohq/arrivo/internal/delaypolicy"
	"github.com/arrivohq/arrivo/internal/eta"
	"github.com/arrivohq/arrivo/internal/location"
	"github.com/arrivohq/arrivo/internal/notification"
	notificationdomain "github.com/arrivohq/arrivo/internal/notification/domain"
	"github.com/arrivohq/arrivo/internal/observability/metrics"
	punctualitydomain "github.com/arrivohq/arrivo/internal/punctuality/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Config tunes the monitoring pass.
type Config struct {
	WindowBefore time.Duration
	WindowAfter  time.Duration
	BatchSize    int
}

func (c Config) withDefaults() Config {
	if c.WindowBefore <= 0 {
		c.WindowBefore = 15 * time.Minute
	}
	if c.WindowAfter <= 0 {
		c.WindowAfter = 180 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	return c
}

// SnapshotInput is a caller-supplied raw observation for one appointment.
type SnapshotInput struct {
	AppointmentID snowflake.ID `json:"appointment_id"`
	EtaMinutes    *int         `json:"eta_minutes"`
	ClientLat     *float64     `json:"client_lat"`
	ClientLng     *float64     `json:"client_lng"`
	CapturedAt    *time.Time   `json:"captured_at"`
}

// RunRequest scopes one monitoring pass.
type RunRequest struct {
	TenantID      snowflake.ID
	AppointmentID *snowflake.ID
	Snapshots     []SnapshotInput
}

// RunResult reports explicit counts so failure is observable in the
// response, never silent.
type RunResult struct {
	Processed           int `json:"processed"`
	Changed             int `json:"changed"`
	Skipped             int `json:"skipped"`
	SnapshotsIngested   int `json:"snapshots_ingested"`
	NotificationsQueued int `json:"notifications_queued"`
	Errors              int `json:"errors"`
}

// ProviderExternal marks snapshots whose ETA was supplied by the caller
// rather than computed by a live provider.
const ProviderExternal = "external"

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	GenID        *snowflake.Node
	Metrics      *metrics.MonitorMetrics
	Adapter      *eta.Adapter
	Appointments appointmentdomain.Repository
	Snapshots    punctualitydomain.SnapshotRepository
	Events       punctualitydomain.EventRepository
	Consents     consentdomain.Repository
	Queue        *notification.Queue
	Config       Config `optional:"true"`
}

// Service is the monitor orchestrator.
type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	genID        *snowflake.Node
	metrics      *metrics.MonitorMetrics
	adapter      *eta.Adapter
	appointments appointmentdomain.Repository
	snapshots    punctualitydomain.SnapshotRepository
	events       punctualitydomain.EventRepository
	consents     consentdomain.Repository
	policies     *delaypolicy.Resolver
	queue        *notification.Queue
	cfg          Config
}

func NewService(p Params) *Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("punctuality.monitor"),
		clock:        p.Clock,
		genID:        p.GenID,
		metrics:      p.Metrics,
		adapter:      p.Adapter,
		appointments: p.Appointments,
		snapshots:    p.Snapshots,
		events:       p.Events,
		consents:     p.Consents,
		policies:     delaypolicy.NewResolver(p.DB),
		queue:        p.Queue,
		cfg:          p.Config.withDefaults(),
	}
}

// pass carries the per-pass caches; never shared across concurrent passes.
type pass struct {
	gate      *consent.Gate
	locations *location.Resolver
}

// Run executes one monitoring pass for a tenant. Any per-appointment error
// degrades to a skip for that appointment only; the batch always completes.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	var result RunResult
	if req.TenantID == 0 {
		return result, fmt.Errorf("missing_tenant_id")
	}

	start := s.clock.Now()
	defer func() { s.metrics.ObservePass(time.Since(start)) }()

	p := &pass{
		gate:      consent.NewGate(s.db, s.consents, s.clock),
		locations: location.NewResolver(s.db),
	}

	touched := make(map[snowflake.ID]struct{})

	for _, input := range req.Snapshots {
		ingested, err := s.ingestSnapshot(ctx, p, req.TenantID, input)
		if err != nil {
			result.Errors++
			s.log.Warn("snapshot ingest failed",
				zap.String("appointment_id", input.AppointmentID.String()),
				zap.Error(err),
			)
			continue
		}
		if ingested {
			result.SnapshotsIngested++
			touched[input.AppointmentID] = struct{}{}
		}
	}

	appointments, err := s.discover(ctx, req, touched)
	if err != nil {
		return result, err
	}

	for i := range appointments {
		appt := appointments[i]
		result.Processed++

		outcome, err := s.processAppointment(ctx, p, &appt)
		if err != nil {
			result.Errors++
			result.Skipped++
			s.log.Warn("appointment pass failed",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		result.Changed += outcome.changed
		result.Skipped += outcome.skipped
		result.NotificationsQueued += outcome.queued
	}

	return result, nil
}

// ingestSnapshot persists one caller-supplied observation. The snapshot is
// written even when no ETA could be resolved: the log must show attempts,
// not just successes.
func (s *Service) ingestSnapshot(ctx context.Context, p *pass, tenantID snowflake.ID, input SnapshotInput) (bool, error) {
	if input.AppointmentID == 0 {
		return false, fmt.Errorf("missing_appointment_id")
	}

	active, err := p.gate.HasActiveConsent(ctx, tenantID, input.AppointmentID)
	if err != nil {
		return false, err
	}
	if !active {
		return false, nil
	}

	appt, err := s.appointments.FindByID(ctx, s.db, tenantID, input.AppointmentID)
	if err != nil {
		return false, err
	}
	if appt == nil {
		return false, fmt.Errorf("appointment_not_found")
	}

	policy, err := s.policies.Resolve(ctx, tenantID, appt.ProfessionalID)
	if err != nil {
		return false, err
	}

	capturedAt := s.clock.Now()
	if input.CapturedAt != nil {
		capturedAt = input.CapturedAt.UTC()
	}
	minutesToStart := int(appt.StartsAt.Sub(capturedAt).Minutes())

	etaMinutes := input.EtaMinutes
	provider := eta.ProviderNone
	var trafficLevel *string
	var raw datatypes.JSON

	switch {
	case etaMinutes != nil:
		provider = ProviderExternal
	case input.ClientLat != nil && input.ClientLng != nil:
		destination, err := p.locations.ResolveDestination(ctx, tenantID, appt.ProfessionalID)
		if err != nil {
			return false, err
		}
		if destination != nil && s.adapter.Active() {
			origin := eta.Coordinates{Lat: *input.ClientLat, Lng: *input.ClientLng}
			result, marker := s.adapter.Estimate(ctx, origin, *destination)
			provider = marker
			if result != nil {
				etaMinutes = &result.EtaMinutes
				trafficLevel = result.TrafficLevel
				raw = datatypes.JSON(result.Raw)
			}
		}
	}

	snapshot := &punctualitydomain.EtaSnapshot{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		AppointmentID:  appt.ID,
		CapturedAt:     capturedAt,
		EtaMinutes:     etaMinutes,
		MinutesToStart: minutesToStart,
		PredictedDelay: punctualitydomain.PredictedDelay(etaMinutes, minutesToStart),
		Status:         punctualitydomain.Classify(etaMinutes, minutesToStart, policy.MaxAllowedDelayMinutes),
		Provider:       provider,
		TrafficLevel:   trafficLevel,
		ClientLat:      input.ClientLat,
		ClientLng:      input.ClientLng,
		RawResponse:    raw,
	}
	if err := s.snapshots.Insert(ctx, s.db, snapshot); err != nil {
		return false, err
	}
	s.metrics.ObserveSnapshot(provider)
	return true, nil
}

// discover resolves the monitoring set: the explicit appointment, everything
// touched by ingested snapshots, or — when neither is given — the active
// window scan, capped at the batch size.
func (s *Service) discover(ctx context.Context, req RunRequest, touched map[snowflake.ID]struct{}) ([]appointmentdomain.Appointment, error) {
	seen := make(map[snowflake.ID]struct{})
	var set []appointmentdomain.Appointment

	add := func(id snowflake.ID) error {
		if _, ok := seen[id]; ok {
			return nil
		}
		appt, err := s.appointments.FindByID(ctx, s.db, req.TenantID, id)
		if err != nil {
			return err
		}
		if appt == nil {
			return nil
		}
		seen[id] = struct{}{}
		set = append(set, *appt)
		return nil
	}

	if req.AppointmentID != nil {
		if err := add(*req.AppointmentID); err != nil {
			return nil, err
		}
	}
	for id := range touched {
		if err := add(id); err != nil {
			return nil, err
		}
	}

	if req.AppointmentID == nil && len(req.Snapshots) == 0 {
		now := s.clock.Now()
		window, err := s.appointments.ListInWindow(
			ctx,
			s.db,
			req.TenantID,
			now.Add(-s.cfg.WindowBefore),
			now.Add(s.cfg.WindowAfter),
			s.cfg.BatchSize,
		)
		if err != nil {
			return nil, err
		}
		for i := range window {
			if _, ok := seen[window[i].ID]; ok {
				continue
			}
			seen[window[i].ID] = struct{}{}
			set = append(set, window[i])
		}
	}

	if len(set) > s.cfg.BatchSize {
		set = set[:s.cfg.BatchSize]
	}
	return set, nil
}

type outcome struct {
	changed int
	skipped int
	queued  int
}

func (s *Service) processAppointment(ctx context.Context, p *pass, appt *appointmentdomain.Appointment) (outcome, error) {
	var out outcome

	active, err := p.gate.HasActiveConsent(ctx, appt.TenantID, appt.ID)
	if err != nil {
		return out, err
	}
	if !active {
		changed, err := s.resetWithoutConsent(ctx, appt)
		if err != nil {
			return out, err
		}
		if changed {
			out.changed++
		} else {
			out.skipped++
		}
		return out, nil
	}

	if err := s.selfRefresh(ctx, p, appt); err != nil {
		// A failed refresh is recorded on the snapshot log; recompute still
		// runs on whatever history exists.
		s.log.Warn("self refresh failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}

	return s.recompute(ctx, appt)
}

// resetWithoutConsent blanks tracked state when consent is not active.
// Revocation retroactively clears derived fields, not just future updates.
func (s *Service) resetWithoutConsent(ctx context.Context, appt *appointmentdomain.Appointment) (bool, error) {
	defaultState := appt.PunctualityStatus == punctualitydomain.StatusNoData &&
		appt.EtaMinutes == nil &&
		appt.PredictedDelayMinutes == nil
	if defaultState {
		return false, nil
	}

	now := s.clock.Now()
	if err := s.appointments.UpdatePunctuality(ctx, s.db, appointmentdomain.PunctualityUpdate{
		ID:           appt.ID,
		TenantID:     appt.TenantID,
		Status:       punctualitydomain.StatusNoData,
		CalculatedAt: now,
	}); err != nil {
		return false, err
	}

	event := &punctualitydomain.PunctualityEvent{
		ID:            s.genID.Generate(),
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		OldStatus:     appt.PunctualityStatus,
		NewStatus:     punctualitydomain.StatusNoData,
		Source:        auditcontext.SourceFromContext(ctx),
		CreatedAt:     now,
	}
	if err := s.events.Insert(ctx, s.db, event); err != nil {
		return false, err
	}
	s.metrics.ObserveTransition(string(punctualitydomain.StatusNoData))

	appt.PunctualityStatus = punctualitydomain.StatusNoData
	appt.EtaMinutes = nil
	appt.PredictedDelayMinutes = nil
	return true, nil
}

// selfRefresh issues one fresh ETA call when the newest snapshot carries
// client coordinates and a destination resolves, keeping status current even
// without a caller-supplied update.
func (s *Service) selfRefresh(ctx context.Context, p *pass, appt *appointmentdomain.Appointment) error {
	if !s.adapter.Active() {
		return nil
	}

	latest, err := s.snapshots.Latest(ctx, s.db, appt.ID)
	if err != nil {
		return err
	}
	if latest == nil || !latest.HasClientPosition() {
		return nil
	}

	destination, err := p.locations.ResolveDestination(ctx, appt.TenantID, appt.ProfessionalID)
	if err != nil {
		return err
	}
	if destination == nil {
		return nil
	}

	policy, err := s.policies.Resolve(ctx, appt.TenantID, appt.ProfessionalID)
	if err != nil {
		return err
	}

	origin := eta.Coordinates{Lat: *latest.ClientLat, Lng: *latest.ClientLng}
	result, marker := s.adapter.Estimate(ctx, origin, *destination)

	now := s.clock.Now()
	minutesToStart := int(appt.StartsAt.Sub(now).Minutes())

	var etaMinutes *int
	var trafficLevel *string
	var raw datatypes.JSON
	if result != nil {
		etaMinutes = &result.EtaMinutes
		trafficLevel = result.TrafficLevel
		raw = datatypes.JSON(result.Raw)
	}

	snapshot := &punctualitydomain.EtaSnapshot{
		ID:             s.genID.Generate(),
		TenantID:       appt.TenantID,
		AppointmentID:  appt.ID,
		CapturedAt:     now,
		EtaMinutes:     etaMinutes,
		MinutesToStart: minutesToStart,
		PredictedDelay: punctualitydomain.PredictedDelay(etaMinutes, minutesToStart),
		Status:         punctualitydomain.Classify(etaMinutes, minutesToStart, policy.MaxAllowedDelayMinutes),
		Provider:       marker,
		TrafficLevel:   trafficLevel,
		ClientLat:      latest.ClientLat,
		ClientLng:      latest.ClientLng,
		RawResponse:    raw,
	}
	if err := s.snapshots.Insert(ctx, s.db, snapshot); err != nil {
		return err
	}
	s.metrics.ObserveSnapshot(marker)
	return nil
}

// recompute applies the debounce rule to the two newest snapshots and
// commits the result. No-op writes are suppressed: an unchanged pass
// produces zero writes and changed == 0.
func (s *Service) recompute(ctx context.Context, appt *appointmentdomain.Appointment) (outcome, error) {
	var out outcome

	window, err := s.snapshots.LatestTwo(ctx, s.db, appt.ID)
	if err != nil {
		return out, err
	}
	if len(window) == 0 {
		out.skipped++
		return out, nil
	}

	latest := &window[0]
	var previous *punctualitydomain.EtaSnapshot
	if len(window) > 1 {
		previous = &window[1]
	}

	newStatus := punctualitydomain.Debounce(latest, previous, appt.PunctualityStatus)

	// Numeric fields track the latest snapshot independently of the
	// categorical debounce.
	statusChanged := newStatus != appt.PunctualityStatus
	numbersChanged := !equalIntPtr(latest.EtaMinutes, appt.EtaMinutes) ||
		!equalIntPtr(latest.PredictedDelay, appt.PredictedDelayMinutes)

	if !statusChanged && !numbersChanged {
		out.skipped++
		return out, nil
	}

	now := s.clock.Now()
	if err := s.appointments.UpdatePunctuality(ctx, s.db, appointmentdomain.PunctualityUpdate{
		ID:                    appt.ID,
		TenantID:              appt.TenantID,
		Status:                newStatus,
		EtaMinutes:            latest.EtaMinutes,
		PredictedDelayMinutes: latest.PredictedDelay,
		CalculatedAt:          now,
	}); err != nil {
		return out, err
	}

	if !statusChanged {
		out.changed++
		return out, nil
	}

	policy, err := s.policies.Resolve(ctx, appt.TenantID, appt.ProfessionalID)
	if err != nil {
		return out, err
	}

	event := &punctualitydomain.PunctualityEvent{
		ID:              s.genID.Generate(),
		TenantID:        appt.TenantID,
		AppointmentID:   appt.ID,
		OldStatus:       appt.PunctualityStatus,
		NewStatus:       newStatus,
		EtaMinutes:      latest.EtaMinutes,
		PredictedDelay:  latest.PredictedDelay,
		MinutesToStart:  latest.MinutesToStart,
		MaxAllowedDelay: policy.MaxAllowedDelayMinutes,
		Source:          auditcontext.SourceFromContext(ctx),
		CreatedAt:       now,
	}
	if err := s.events.Insert(ctx, s.db, event); err != nil {
		return out, err
	}
	s.metrics.ObserveTransition(string(newStatus))

	queued, err := s.enqueueNotifications(ctx, appt, newStatus, latest, policy)
	if err != nil {
		return out, err
	}
	out.queued += queued

	appt.PunctualityStatus = newStatus
	appt.EtaMinutes = latest.EtaMinutes
	appt.PredictedDelayMinutes = latest.PredictedDelay
	out.changed++
	return out, nil
}

// enqueueNotifications fans the transition out across channels under the
// dedup window. Reverting to no_data carries no notification type and is
// skipped.
func (s *Service) enqueueNotifications(
	ctx context.Context,
	appt *appointmentdomain.Appointment,
	status punctualitydomain.Status,
	latest *punctualitydomain.EtaSnapshot,
	policy delaypolicy.Policy,
) (int, error) {
	if status == punctualitydomain.StatusNoData {
		return 0, nil
	}

	title, body := messageFor(status, latest)
	queued := 0

	enqueue := func(channel notificationdomain.Channel, priority string) error {
		inserted, err := s.queue.Enqueue(ctx, &notificationdomain.Notification{
			TenantID:       appt.TenantID,
			AppointmentID:  appt.ID,
			ProfessionalID: appt.ProfessionalID,
			Channel:        channel,
			Type:           string(status),
			Priority:       priority,
			Title:          title,
			Body:           body,
			Payload: map[string]any{
				"eta_minutes":     jsonNumber(latest.EtaMinutes),
				"predicted_delay": jsonNumber(latest.PredictedDelay),
			},
		})
		if err != nil {
			return err
		}
		if inserted {
			queued++
			s.metrics.ObserveNotification(string(channel), "queued")
		} else {
			s.metrics.ObserveNotification(string(channel), "deduped")
		}
		return nil
	}

	if err := enqueue(notificationdomain.ChannelInApp, notificationdomain.PriorityNormal); err != nil {
		return queued, err
	}

	if status.Late() {
		priority := notificationdomain.PriorityNormal
		if status == punctualitydomain.StatusLateCritical {
			priority = notificationdomain.PriorityHigh
		}
		if err := enqueue(notificationdomain.ChannelPush, priority); err != nil {
			return queued, err
		}
		if policy.FallbackWhatsapp {
			if err := enqueue(notificationdomain.ChannelWhatsApp, priority); err != nil {
				return queued, err
			}
		}
	}

	return queued, nil
}

func messageFor(status punctualitydomain.Status, latest *punctualitydomain.EtaSnapshot) (string, string) {
	switch status {
	case punctualitydomain.StatusOnTime:
		return "Client on time", "The client is predicted to arrive on time."
	case punctualitydomain.StatusLateOK:
		delay := 0
		if latest.PredictedDelay != nil {
			delay = *latest.PredictedDelay
		}
		return "Client running late", fmt.Sprintf("Predicted delay of %d minutes, within the allowed margin.", delay)
	case punctualitydomain.StatusLateCritical:
		delay := 0
		if latest.PredictedDelay != nil {
			delay = *latest.PredictedDelay
		}
		return "Client critically late", fmt.Sprintf("Predicted delay of %d minutes exceeds the allowed margin.", delay)
	default:
		return "", ""
	}
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func jsonNumber(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
