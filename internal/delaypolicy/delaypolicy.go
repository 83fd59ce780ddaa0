// Package delaypolicy resolves the maximum-allowed-delay and escalation
// policy for a professional.
package delaypolicy

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DefaultMaxAllowedDelayMinutes applies when neither a professional nor a
// tenant policy exists.
const DefaultMaxAllowedDelayMinutes = 10

// DelayPolicy is the stored policy row. A nil ProfessionalID makes the row
// tenant-wide.
type DelayPolicy struct {
	ID                     snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID               snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	ProfessionalID         *snowflake.ID `gorm:"index" json:"professional_id"`
	MaxAllowedDelayMinutes int           `gorm:"not null" json:"max_allowed_delay_minutes"`
	FallbackWhatsapp       bool          `gorm:"not null;default:false" json:"fallback_whatsapp_for_professional"`
	CreatedAt              time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt              time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (DelayPolicy) TableName() string { return "delay_policies" }

// Policy is the resolved, effective policy handed to the classifier and the
// notification stage.
type Policy struct {
	MaxAllowedDelayMinutes int
	FallbackWhatsapp       bool
}

// Default is the hardcoded last-resort policy.
func Default() Policy {
	return Policy{MaxAllowedDelayMinutes: DefaultMaxAllowedDelayMinutes, FallbackWhatsapp: false}
}

// Resolver resolves policies per call. Deliberately uncached: a policy can
// change between fan-out cycles and the lookup is cheap.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve prefers the professional-specific policy, then the tenant-wide
// one, then the hardcoded default.
func (r *Resolver) Resolve(ctx context.Context, tenantID, professionalID snowflake.ID) (Policy, error) {
	var row DelayPolicy

	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND professional_id = ?", tenantID, professionalID).
		Order("updated_at DESC").
		First(&row).Error
	if err == nil {
		return policyFrom(row), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Default(), err
	}

	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND professional_id IS NULL", tenantID).
		Order("updated_at DESC").
		First(&row).Error
	if err == nil {
		return policyFrom(row), nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Default(), nil
	}
	return Default(), err
}

func policyFrom(row DelayPolicy) Policy {
	policy := Policy{
		MaxAllowedDelayMinutes: row.MaxAllowedDelayMinutes,
		FallbackWhatsapp:       row.FallbackWhatsapp,
	}
	if policy.MaxAllowedDelayMinutes <= 0 {
		policy.MaxAllowedDelayMinutes = DefaultMaxAllowedDelayMinutes
	}
	return policy
}
