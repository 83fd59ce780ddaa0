// Package location resolves the fixed service location used as the ETA
// destination for a professional.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/arrivohq/arrivo/internal/cache"
	"github.com/arrivohq/arrivo/internal/eta"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ServiceLocation is a fixed destination. A nil ProfessionalID makes the row
// the tenant-wide fallback.
type ServiceLocation struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	ProfessionalID *snowflake.ID `gorm:"index" json:"professional_id"`
	Name           string        `gorm:"type:text" json:"name"`
	Lat            float64       `gorm:"not null" json:"lat"`
	Lng            float64       `gorm:"not null" json:"lng"`
	Active         bool          `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (ServiceLocation) TableName() string { return "service_locations" }

// Resolver resolves destinations with per-professional memoization scoped to
// one monitoring pass. Create one per pass.
type Resolver struct {
	db   *gorm.DB
	memo *cache.TTLCache[snowflake.ID, *eta.Coordinates]
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{
		db:   db,
		memo: cache.NewTTLCache[snowflake.ID, *eta.Coordinates](),
	}
}

// ResolveDestination prefers the professional's active location, falls back
// to the tenant-wide one, and returns nil when neither exists — ETA
// computation is then skipped for the appointment.
func (r *Resolver) ResolveDestination(ctx context.Context, tenantID, professionalID snowflake.ID) (*eta.Coordinates, error) {
	if coords, ok := r.memo.Get(professionalID); ok {
		return coords, nil
	}

	coords, err := r.lookup(ctx, tenantID, professionalID)
	if err != nil {
		return nil, err
	}
	r.memo.Set(professionalID, coords, 0)
	return coords, nil
}

func (r *Resolver) lookup(ctx context.Context, tenantID, professionalID snowflake.ID) (*eta.Coordinates, error) {
	var row ServiceLocation

	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND professional_id = ? AND active = ?", tenantID, professionalID, true).
		Order("updated_at DESC").
		First(&row).Error
	if err == nil {
		return &eta.Coordinates{Lat: row.Lat, Lng: row.Lng}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND professional_id IS NULL AND active = ?", tenantID, true).
		Order("updated_at DESC").
		First(&row).Error
	if err == nil {
		return &eta.Coordinates{Lat: row.Lat, Lng: row.Lng}, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}
