package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	appointmentrepo "github.com/arrivohq/arrivo/internal/appointment/repository"
	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/config"
	consentrepo "github.com/arrivohq/arrivo/internal/consent/repository"
	"github.com/arrivohq/arrivo/internal/eta"
	"github.com/arrivohq/arrivo/internal/notification"
	"github.com/arrivohq/arrivo/internal/observability/metrics"
	punctualitydomain "github.com/arrivohq/arrivo/internal/punctuality/domain"
	punctualityrepo "github.com/arrivohq/arrivo/internal/punctuality/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	service *Service
}

func setupMonitorTest(t *testing.T) *fixture {
	t.Helper()
	db := setupMonitorTestDB(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	adapter, err := eta.NewAdapter(config.EtaConfig{Provider: "none"}, zap.NewNop(), metrics.Monitor())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	clk := clock.Fixed{At: testNow}
	service := NewService(Params{
		DB:           db,
		Log:          zap.NewNop(),
		Clock:        clk,
		GenID:        node,
		Metrics:      metrics.Monitor(),
		Adapter:      adapter,
		Appointments: appointmentrepo.Provide(),
		Snapshots:    punctualityrepo.ProvideSnapshots(),
		Events:       punctualityrepo.ProvideEvents(),
		Consents:     consentrepo.Provide(),
		Queue:        notification.NewQueue(db, node, clk, 10*time.Minute),
	})

	return &fixture{db: db, node: node, service: service}
}

func setupMonitorTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:monitor_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			professional_id BIGINT NOT NULL,
			client_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			starts_at TIMESTAMP NOT NULL,
			punctuality_status TEXT NOT NULL DEFAULT 'no_data',
			eta_minutes INTEGER,
			predicted_delay_minutes INTEGER,
			last_calculated_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS consent_records (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			appointment_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS eta_snapshots (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			appointment_id BIGINT NOT NULL,
			captured_at TIMESTAMP NOT NULL,
			eta_minutes INTEGER,
			minutes_to_start INTEGER NOT NULL,
			predicted_delay INTEGER,
			status TEXT NOT NULL,
			provider TEXT NOT NULL,
			traffic_level TEXT,
			client_lat REAL,
			client_lng REAL,
			raw_response TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS punctuality_events (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			appointment_id BIGINT NOT NULL,
			old_status TEXT NOT NULL,
			new_status TEXT NOT NULL,
			eta_minutes INTEGER,
			predicted_delay INTEGER,
			minutes_to_start INTEGER NOT NULL,
			max_allowed_delay INTEGER NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			appointment_id BIGINT NOT NULL,
			professional_id BIGINT NOT NULL,
			channel TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'queued',
			priority TEXT NOT NULL DEFAULT 'normal',
			title TEXT,
			body TEXT,
			provider_message_id TEXT,
			payload TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			sent_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS delay_policies (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			professional_id BIGINT,
			max_allowed_delay_minutes INTEGER NOT NULL,
			fallback_whatsapp BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS service_locations (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			professional_id BIGINT,
			name TEXT,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func (f *fixture) insertAppointment(t *testing.T, tenantID, professionalID snowflake.ID, startsAt time.Time) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	err := f.db.Exec(
		`INSERT INTO appointments (id, tenant_id, professional_id, client_id, status, starts_at)
		 VALUES (?, ?, ?, ?, 'confirmed', ?)`,
		id, tenantID, professionalID, f.node.Generate(), startsAt,
	).Error
	if err != nil {
		t.Fatalf("insert appointment: %v", err)
	}
	return id
}

func (f *fixture) grantConsent(t *testing.T, tenantID, appointmentID snowflake.ID) {
	t.Helper()
	err := f.db.Exec(
		`INSERT INTO consent_records (id, tenant_id, appointment_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, 'granted', ?, ?)`,
		f.node.Generate(), tenantID, appointmentID, testNow.Add(-time.Hour), testNow.Add(-time.Hour),
	).Error
	if err != nil {
		t.Fatalf("grant consent: %v", err)
	}
}

func (f *fixture) revokeConsent(t *testing.T, tenantID, appointmentID snowflake.ID) {
	t.Helper()
	err := f.db.Exec(
		`INSERT INTO consent_records (id, tenant_id, appointment_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, 'revoked', ?, ?)`,
		f.node.Generate(), tenantID, appointmentID, testNow, testNow,
	).Error
	if err != nil {
		t.Fatalf("revoke consent: %v", err)
	}
}

func (f *fixture) appointmentState(t *testing.T, id snowflake.ID) (string, *int) {
	t.Helper()
	var row struct {
		PunctualityStatus string `gorm:"column:punctuality_status"`
		EtaMinutes        *int   `gorm:"column:eta_minutes"`
	}
	err := f.db.Raw(
		`SELECT punctuality_status, eta_minutes FROM appointments WHERE id = ?`, id,
	).Scan(&row).Error
	if err != nil {
		t.Fatalf("read appointment: %v", err)
	}
	return row.PunctualityStatus, row.EtaMinutes
}

func (f *fixture) countRows(t *testing.T, query string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := f.db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return count
}

func intPtr(v int) *int { return &v }

func TestRunRequiresTenant(t *testing.T) {
	f := setupMonitorTest(t)
	if _, err := f.service.Run(context.Background(), RunRequest{}); err == nil {
		t.Fatalf("expected error for missing tenant")
	}
}

func TestExternalEtaCommitsAfterTwoAgreeingSamples(t *testing.T) {
	f := setupMonitorTest(t)
	tenantID := f.node.Generate()
	professionalID := f.node.Generate()
	appointmentID := f.insertAppointment(t, tenantID, professionalID, testNow.Add(30*time.Minute))
	f.grantConsent(t, tenantID, appointmentID)

	ctx := context.Background()

	// First observation: delay of 15 minutes classifies late_critical but a
	// single sample must not flip the committed status.
	result, err := f.service.Run(ctx, RunRequest{
		TenantID:  tenantID,
		Snapshots: []SnapshotInput{{AppointmentID: appointmentID, EtaMinutes: intPtr(45)}},
	})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if result.SnapshotsIngested != 1 {
		t.Fatalf("expected 1 snapshot ingested, got %d", result.SnapshotsIngested)
	}
	if result.NotificationsQueued != 0 {
		t.Fatalf("expected no notifications after one sample, got %d", result.NotificationsQueued)
	}

	status, etaMinutes := f.appointmentState(t, appointmentID)
	if status != string(punctualitydomain.StatusNoData) {
		t.Fatalf("expected no_data held after one sample, got %s", status)
	}
	if etaMinutes == nil || *etaMinutes != 45 {
		t.Fatalf("expected numeric eta 45 tracked, got %v", etaMinutes)
	}

	// Second agreeing observation commits the transition.
	result, err = f.service.Run(ctx, RunRequest{
		TenantID:  tenantID,
		Snapshots: []SnapshotInput{{AppointmentID: appointmentID, EtaMinutes: intPtr(46)}},
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Changed != 1 {
		t.Fatalf("expected 1 change, got %d", result.Changed)
	}

	status, etaMinutes = f.appointmentState(t, appointmentID)
	if status != string(punctualitydomain.StatusLateCritical) {
		t.Fatalf("expected late_critical committed, got %s", status)
	}
	if etaMinutes == nil || *etaMinutes != 46 {
		t.Fatalf("expected eta 46, got %v", etaMinutes)
	}

	if got := f.countRows(t, `SELECT COUNT(1) FROM punctuality_events WHERE appointment_id = ?`, appointmentID); got != 1 {
		t.Fatalf("expected 1 transition event, got %d", got)
	}
	// in_app plus high-priority push; whatsapp stays off without a policy.
	if got := f.countRows(t, `SELECT COUNT(1) FROM notifications WHERE appointment_id = ?`, appointmentID); got != 2 {
		t.Fatalf("expected 2 notifications, got %d", got)
	}
	if got := f.countRows(t,
		`SELECT COUNT(1) FROM notifications WHERE appointment_id = ? AND channel = 'push' AND priority = 'high'`,
		appointmentID,
	); got != 1 {
		t.Fatalf("expected high priority push, got %d", got)
	}
}

func TestUnchangedPassIsIdempotent(t *testing.T) {
	f := setupMonitorTest(t)
	tenantID := f.node.Generate()
	appointmentID := f.insertAppointment(t, tenantID, f.node.Generate(), testNow.Add(30*time.Minute))
	f.grantConsent(t, tenantID, appointmentID)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.service.Run(ctx, RunRequest{
			TenantID:  tenantID,
			Snapshots: []SnapshotInput{{AppointmentID: appointmentID, EtaMinutes: intPtr(20)}},
		}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	// Status on_time is committed; a pass with no new data writes nothing.
	result, err := f.service.Run(ctx, RunRequest{TenantID: tenantID, AppointmentID: &appointmentID})
	if err != nil {
		t.Fatalf("idle run: %v", err)
	}
	if result.Changed != 0 || result.Skipped != 1 {
		t.Fatalf("expected idle skip, got changed=%d skipped=%d", result.Changed, result.Skipped)
	}
	if got := f.countRows(t, `SELECT COUNT(1) FROM notifications WHERE appointment_id = ?`, appointmentID); got != 1 {
		t.Fatalf("expected only the on_time in_app notification, got %d", got)
	}
}

func TestConsentRevocationResetsState(t *testing.T) {
	f := setupMonitorTest(t)
	tenantID := f.node.Generate()
	appointmentID := f.insertAppointment(t, tenantID, f.node.Generate(), testNow.Add(30*time.Minute))
	f.grantConsent(t, tenantID, appointmentID)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.service.Run(ctx, RunRequest{
			TenantID:  tenantID,
			Snapshots: []SnapshotInput{{AppointmentID: appointmentID, EtaMinutes: intPtr(45)}},
		}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	f.revokeConsent(t, tenantID, appointmentID)

	result, err := f.service.Run(ctx, RunRequest{TenantID: tenantID, AppointmentID: &appointmentID})
	if err != nil {
		t.Fatalf("run after revoke: %v", err)
	}
	if result.Changed != 1 {
		t.Fatalf("expected reset counted as change, got %d", result.Changed)
	}

	status, etaMinutes := f.appointmentState(t, appointmentID)
	if status != string(punctualitydomain.StatusNoData) {
		t.Fatalf("expected no_data after revocation, got %s", status)
	}
	if etaMinutes != nil {
		t.Fatalf("expected eta cleared, got %d", *etaMinutes)
	}

	// Second pass after the reset is a pure no-op.
	result, err = f.service.Run(ctx, RunRequest{TenantID: tenantID, AppointmentID: &appointmentID})
	if err != nil {
		t.Fatalf("second run after revoke: %v", err)
	}
	if result.Changed != 0 || result.Skipped != 1 {
		t.Fatalf("expected idle skip after reset, got changed=%d skipped=%d", result.Changed, result.Skipped)
	}
}

func TestSnapshotWithoutConsentIsNotIngested(t *testing.T) {
	f := setupMonitorTest(t)
	tenantID := f.node.Generate()
	appointmentID := f.insertAppointment(t, tenantID, f.node.Generate(), testNow.Add(30*time.Minute))

	result, err := f.service.Run(context.Background(), RunRequest{
		TenantID:  tenantID,
		Snapshots: []SnapshotInput{{AppointmentID: appointmentID, EtaMinutes: intPtr(45)}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.SnapshotsIngested != 0 {
		t.Fatalf("expected no snapshots without consent, got %d", result.SnapshotsIngested)
	}
	if got := f.countRows(t, `SELECT COUNT(1) FROM eta_snapshots WHERE appointment_id = ?`, appointmentID); got != 0 {
		t.Fatalf("expected empty snapshot log, got %d", got)
	}
}

func TestLateOKEscalatesToWhatsAppWhenPolicyEnablesIt(t *testing.T) {
	f := setupMonitorTest(t)
	tenantID := f.node.Generate()
	professionalID := f.node.Generate()
	appointmentID := f.insertAppointment(t, tenantID, professionalID, testNow.Add(30*time.Minute))
	f.grantConsent(t, tenantID, appointmentID)

	err := f.db.Exec(
		`INSERT INTO delay_policies (id, tenant_id, professional_id, max_allowed_delay_minutes, fallback_whatsapp)
		 VALUES (?, ?, ?, 10, TRUE)`,
		f.node.Generate(), tenantID, professionalID,
	).Error
	if err != nil {
		t.Fatalf("insert policy: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.service.Run(ctx, RunRequest{
			TenantID:  tenantID,
			Snapshots: []SnapshotInput{{AppointmentID: appointmentID, EtaMinutes: intPtr(35)}},
		}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	status, _ := f.appointmentState(t, appointmentID)
	if status != string(punctualitydomain.StatusLateOK) {
		t.Fatalf("expected late_ok, got %s", status)
	}
	for _, channel := range []string{"in_app", "push", "whatsapp"} {
		if got := f.countRows(t,
			`SELECT COUNT(1) FROM notifications WHERE appointment_id = ? AND channel = ?`,
			appointmentID, channel,
		); got != 1 {
			t.Fatalf("expected 1 %s notification, got %d", channel, got)
		}
	}
	if got := f.countRows(t,
		`SELECT COUNT(1) FROM notifications WHERE appointment_id = ? AND priority = 'high'`,
		appointmentID,
	); got != 0 {
		t.Fatalf("late_ok must not escalate priority, got %d high", got)
	}
}

func TestWindowScanDiscoversAppointments(t *testing.T) {
	f := setupMonitorTest(t)
	tenantID := f.node.Generate()
	inWindow := f.insertAppointment(t, tenantID, f.node.Generate(), testNow.Add(time.Hour))
	f.insertAppointment(t, tenantID, f.node.Generate(), testNow.Add(48*time.Hour))
	f.grantConsent(t, tenantID, inWindow)

	result, err := f.service.Run(context.Background(), RunRequest{TenantID: tenantID})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected only the in-window appointment, got %d", result.Processed)
	}
}

func TestEqualCaptureTimesResolveToNewestInsert(t *testing.T) {
	f := setupMonitorTest(t)
	tenantID := f.node.Generate()
	appointmentID := f.insertAppointment(t, tenantID, f.node.Generate(), testNow.Add(30*time.Minute))
	f.grantConsent(t, tenantID, appointmentID)

	// Two samples in one request share the fixed clock instant; the later
	// insert must win the committed numerics.
	result, err := f.service.Run(context.Background(), RunRequest{
		TenantID: tenantID,
		Snapshots: []SnapshotInput{
			{AppointmentID: appointmentID, EtaMinutes: intPtr(45), CapturedAt: &testNow},
			{AppointmentID: appointmentID, EtaMinutes: intPtr(46), CapturedAt: &testNow},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.SnapshotsIngested != 2 {
		t.Fatalf("expected 2 snapshots ingested, got %d", result.SnapshotsIngested)
	}

	status, etaMinutes := f.appointmentState(t, appointmentID)
	if status != string(punctualitydomain.StatusLateCritical) {
		t.Fatalf("expected late_critical committed, got %s", status)
	}
	if etaMinutes == nil || *etaMinutes != 46 {
		t.Fatalf("expected eta 46 from the newest sample, got %v", etaMinutes)
	}

	// Both stamps come from the injected clock, not the wall clock.
	var stamps struct {
		LastCalculatedAt time.Time `gorm:"column:last_calculated_at"`
		UpdatedAt        time.Time `gorm:"column:updated_at"`
	}
	err = f.db.Raw(
		`SELECT last_calculated_at, updated_at FROM appointments WHERE id = ?`, appointmentID,
	).Scan(&stamps).Error
	if err != nil {
		t.Fatalf("read stamps: %v", err)
	}
	if !stamps.LastCalculatedAt.Equal(testNow) {
		t.Fatalf("last_calculated_at = %v, want %v", stamps.LastCalculatedAt, testNow)
	}
	if !stamps.UpdatedAt.Equal(testNow) {
		t.Fatalf("updated_at = %v, want %v", stamps.UpdatedAt, testNow)
	}
}
