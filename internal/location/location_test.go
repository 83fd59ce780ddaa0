package location

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLocationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:location_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
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
	).Error; err != nil {
		t.Fatalf("create service_locations: %v", err)
	}
	return db
}

func TestResolvePrefersProfessionalLocation(t *testing.T) {
	db := setupLocationTestDB(t)
	if err := db.Exec(
		`INSERT INTO service_locations (id, tenant_id, professional_id, lat, lng, active)
		 VALUES (1, 1, NULL, -23.5, -46.6, TRUE), (2, 1, 10, -22.9, -43.2, TRUE)`,
	).Error; err != nil {
		t.Fatalf("insert locations: %v", err)
	}

	coords, err := NewResolver(db).ResolveDestination(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if coords == nil || coords.Lat != -22.9 {
		t.Fatalf("expected professional location, got %+v", coords)
	}
}

func TestResolveFallsBackToTenantLocation(t *testing.T) {
	db := setupLocationTestDB(t)
	if err := db.Exec(
		`INSERT INTO service_locations (id, tenant_id, professional_id, lat, lng, active)
		 VALUES (1, 1, NULL, -23.5, -46.6, TRUE)`,
	).Error; err != nil {
		t.Fatalf("insert location: %v", err)
	}

	coords, err := NewResolver(db).ResolveDestination(context.Background(), 1, 99)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if coords == nil || coords.Lat != -23.5 {
		t.Fatalf("expected tenant location, got %+v", coords)
	}
}

func TestResolveIgnoresInactiveLocations(t *testing.T) {
	db := setupLocationTestDB(t)
	if err := db.Exec(
		`INSERT INTO service_locations (id, tenant_id, professional_id, lat, lng, active)
		 VALUES (1, 1, 10, -22.9, -43.2, FALSE)`,
	).Error; err != nil {
		t.Fatalf("insert location: %v", err)
	}

	coords, err := NewResolver(db).ResolveDestination(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if coords != nil {
		t.Fatalf("expected nil for inactive location, got %+v", coords)
	}
}

func TestResolveMemoizesNilResults(t *testing.T) {
	db := setupLocationTestDB(t)
	resolver := NewResolver(db)
	ctx := context.Background()

	if coords, err := resolver.ResolveDestination(ctx, 1, 10); err != nil || coords != nil {
		t.Fatalf("expected nil, got %+v err=%v", coords, err)
	}

	// A location added mid-pass is not observed by the same resolver.
	if err := db.Exec(
		`INSERT INTO service_locations (id, tenant_id, professional_id, lat, lng, active)
		 VALUES (1, 1, 10, -22.9, -43.2, TRUE)`,
	).Error; err != nil {
		t.Fatalf("insert location: %v", err)
	}
	if coords, _ := resolver.ResolveDestination(ctx, 1, 10); coords != nil {
		t.Fatalf("expected memoized nil within the pass, got %+v", coords)
	}
	if coords, _ := NewResolver(db).ResolveDestination(ctx, 1, 10); coords == nil {
		t.Fatalf("expected fresh resolver to see the location")
	}
}
