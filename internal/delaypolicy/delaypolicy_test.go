package delaypolicy

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupPolicyTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:policy_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS delay_policies (
			id INTEGER PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			professional_id BIGINT,
			max_allowed_delay_minutes INTEGER NOT NULL,
			fallback_whatsapp BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	).Error; err != nil {
		t.Fatalf("create delay_policies: %v", err)
	}
	return db
}

func TestResolveWithoutRowsUsesDefault(t *testing.T) {
	db := setupPolicyTestDB(t)
	policy, err := NewResolver(db).Resolve(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if policy.MaxAllowedDelayMinutes != DefaultMaxAllowedDelayMinutes {
		t.Fatalf("expected default %d, got %d", DefaultMaxAllowedDelayMinutes, policy.MaxAllowedDelayMinutes)
	}
	if policy.FallbackWhatsapp {
		t.Fatalf("expected whatsapp fallback off by default")
	}
}

func TestResolvePrefersProfessionalPolicy(t *testing.T) {
	db := setupPolicyTestDB(t)
	if err := db.Exec(
		`INSERT INTO delay_policies (id, tenant_id, professional_id, max_allowed_delay_minutes, fallback_whatsapp)
		 VALUES (1, 1, NULL, 20, FALSE), (2, 1, 10, 5, TRUE)`,
	).Error; err != nil {
		t.Fatalf("insert policies: %v", err)
	}

	policy, err := NewResolver(db).Resolve(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if policy.MaxAllowedDelayMinutes != 5 || !policy.FallbackWhatsapp {
		t.Fatalf("expected professional policy, got %+v", policy)
	}
}

func TestResolveFallsBackToTenantPolicy(t *testing.T) {
	db := setupPolicyTestDB(t)
	if err := db.Exec(
		`INSERT INTO delay_policies (id, tenant_id, professional_id, max_allowed_delay_minutes)
		 VALUES (1, 1, NULL, 20)`,
	).Error; err != nil {
		t.Fatalf("insert policy: %v", err)
	}

	policy, err := NewResolver(db).Resolve(context.Background(), 1, 99)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if policy.MaxAllowedDelayMinutes != 20 {
		t.Fatalf("expected tenant policy 20, got %d", policy.MaxAllowedDelayMinutes)
	}
}

func TestResolveClampsNonPositiveBudget(t *testing.T) {
	db := setupPolicyTestDB(t)
	if err := db.Exec(
		`INSERT INTO delay_policies (id, tenant_id, professional_id, max_allowed_delay_minutes)
		 VALUES (1, 1, 10, 0)`,
	).Error; err != nil {
		t.Fatalf("insert policy: %v", err)
	}

	policy, err := NewResolver(db).Resolve(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if policy.MaxAllowedDelayMinutes != DefaultMaxAllowedDelayMinutes {
		t.Fatalf("expected clamp to default, got %d", policy.MaxAllowedDelayMinutes)
	}
}
