package consent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/consent/domain"
	"github.com/arrivohq/arrivo/internal/consent/repository"
	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var gateTestNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func setupConsentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:consent_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS consent_records (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			appointment_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	).Error; err != nil {
		t.Fatalf("create consent_records: %v", err)
	}
	return db
}

var (
	gateTestNode     *snowflake.Node
	gateTestNodeOnce sync.Once
	gateTestNodeErr  error
)

func insertConsent(t *testing.T, db *gorm.DB, tenantID, appointmentID snowflake.ID, status string, expiresAt *time.Time, updatedAt time.Time) {
	t.Helper()
	gateTestNodeOnce.Do(func() {
		gateTestNode, gateTestNodeErr = snowflake.NewNode(4)
	})
	if gateTestNodeErr != nil {
		t.Fatalf("snowflake node: %v", gateTestNodeErr)
	}
	node := gateTestNode
	err := db.Exec(
		`INSERT INTO consent_records (id, tenant_id, appointment_id, status, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		node.Generate(), tenantID, appointmentID, status, expiresAt, updatedAt, updatedAt,
	).Error
	if err != nil {
		t.Fatalf("insert consent: %v", err)
	}
}

func TestGateGrantedConsentAllows(t *testing.T) {
	db := setupConsentTestDB(t)
	insertConsent(t, db, 1, 100, "granted", nil, gateTestNow.Add(-time.Hour))

	gate := NewGate(db, repository.Provide(), clock.Fixed{At: gateTestNow})
	active, err := gate.HasActiveConsent(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if !active {
		t.Fatalf("expected active consent")
	}
}

func TestGateNoRecordDenies(t *testing.T) {
	db := setupConsentTestDB(t)

	gate := NewGate(db, repository.Provide(), clock.Fixed{At: gateTestNow})
	active, err := gate.HasActiveConsent(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if active {
		t.Fatalf("expected no consent without a record")
	}
}

func TestGateLatestRecordWins(t *testing.T) {
	db := setupConsentTestDB(t)
	insertConsent(t, db, 1, 100, "granted", nil, gateTestNow.Add(-2*time.Hour))
	insertConsent(t, db, 1, 100, "revoked", nil, gateTestNow.Add(-time.Hour))

	gate := NewGate(db, repository.Provide(), clock.Fixed{At: gateTestNow})
	active, err := gate.HasActiveConsent(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if active {
		t.Fatalf("expected the newer revocation to win")
	}
}

func TestGateExpiredConsentDenies(t *testing.T) {
	db := setupConsentTestDB(t)
	expired := gateTestNow.Add(-time.Minute)
	insertConsent(t, db, 1, 100, "granted", &expired, gateTestNow.Add(-time.Hour))

	gate := NewGate(db, repository.Provide(), clock.Fixed{At: gateTestNow})
	active, err := gate.HasActiveConsent(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if active {
		t.Fatalf("expected expired consent to deny")
	}
}

func TestGateMemoizesWithinPass(t *testing.T) {
	db := setupConsentTestDB(t)
	insertConsent(t, db, 1, 100, "granted", nil, gateTestNow.Add(-time.Hour))

	gate := NewGate(db, repository.Provide(), clock.Fixed{At: gateTestNow})
	ctx := context.Background()
	if active, _ := gate.HasActiveConsent(ctx, 1, 100); !active {
		t.Fatalf("expected active consent")
	}

	// A mid-pass revocation is not observed until the next pass builds a
	// fresh gate.
	insertConsent(t, db, 1, 100, "revoked", nil, gateTestNow)
	if active, _ := gate.HasActiveConsent(ctx, 1, 100); !active {
		t.Fatalf("expected memoized answer within the pass")
	}

	fresh := NewGate(db, repository.Provide(), clock.Fixed{At: gateTestNow.Add(time.Minute)})
	if active, _ := fresh.HasActiveConsent(ctx, 1, 100); active {
		t.Fatalf("expected fresh gate to see the revocation")
	}
}

func TestRevokeWithoutRecordReturnsNotFound(t *testing.T) {
	db := setupConsentTestDB(t)
	repo := repository.Provide()
	err := repo.Revoke(context.Background(), db, 1, 100, gateTestNow)
	if !errors.Is(err, domain.ErrConsentNotFound) {
		t.Fatalf("expected consent_not_found, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	db := setupConsentTestDB(t)
	insertConsent(t, db, 1, 100, "granted", nil, gateTestNow.Add(-time.Hour))
	insertConsent(t, db, 1, 200, "revoked", nil, gateTestNow)
	insertConsent(t, db, 2, 300, "granted", nil, gateTestNow)

	var buf bytes.Buffer
	if err := ExportCSV(context.Background(), db, repository.Provide(), 1, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "consent_id,appointment_id,status") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(buf.String(), "revoked") {
		t.Fatalf("expected revoked row in export")
	}
	if strings.Contains(buf.String(), ",300,") {
		t.Fatalf("expected other tenant excluded")
	}
}
