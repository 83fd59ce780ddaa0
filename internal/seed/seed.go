// Package seed bootstraps a demo tenant for local development. Production
// deployments never invoke it.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/arrivohq/arrivo/internal/delaypolicy"
	"github.com/arrivohq/arrivo/internal/location"
	"github.com/arrivohq/arrivo/internal/retention"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	demoTenantName       = "Demo Studio"
	demoProfessionalName = "Demo Professional"
)

// EnsureDemoTenant seeds a tenant, a professional, a service location and a
// tenant-wide delay policy when the tenants table is empty. Repeated calls
// are no-ops.
func EnsureDemoTenant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Raw(`SELECT COUNT(1) FROM tenants`).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		tenantID := node.Generate()
		professionalID := node.Generate()

		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO tenants (id, name, timezone, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			tenantID, demoTenantName, "UTC", now, now,
		).Error; err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO professionals (id, tenant_id, name, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			professionalID, tenantID, demoProfessionalName, now, now,
		).Error; err != nil {
			return err
		}

		serviceLocation := location.ServiceLocation{
			ID:        node.Generate(),
			TenantID:  tenantID,
			Name:      "Demo Studio HQ",
			Lat:       -23.5614,
			Lng:       -46.6559,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&serviceLocation).Error; err != nil {
			return err
		}

		policy := delaypolicy.DelayPolicy{
			ID:                     node.Generate(),
			TenantID:               tenantID,
			MaxAllowedDelayMinutes: delaypolicy.DefaultMaxAllowedDelayMinutes,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := tx.WithContext(ctx).Create(&policy).Error; err != nil {
			return err
		}

		// Retention only runs for tenants with an enabled policy row.
		retentionPolicy := retention.Policy{
			ID:        node.Generate(),
			TenantID:  tenantID,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.WithContext(ctx).Create(&retentionPolicy).Error
	})
}
