// Package domain models per-appointment monitoring consent.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ConsentStatus string

const (
	ConsentGranted ConsentStatus = "granted"
	ConsentDenied  ConsentStatus = "denied"
	ConsentRevoked ConsentStatus = "revoked"
	ConsentExpired ConsentStatus = "expired"
)

var (
	ErrConsentNotFound = errors.New("consent_not_found")
	ErrInvalidConsent  = errors.New("invalid_consent")
)

// ConsentRecord tracks whether live-location monitoring is permitted for one
// appointment. Only the most recently updated record is authoritative.
type ConsentRecord struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	AppointmentID snowflake.ID  `gorm:"not null;index" json:"appointment_id"`
	Status        ConsentStatus `gorm:"type:text;not null" json:"status"`
	ExpiresAt     *time.Time    `json:"expires_at"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ConsentRecord) TableName() string { return "consent_records" }

// Active reports whether this record permits monitoring at the given instant.
func (r ConsentRecord) Active(now time.Time) bool {
	if r.Status != ConsentGranted {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

type Repository interface {
	// Latest returns the most recently updated record for the appointment.
	Latest(ctx context.Context, db *gorm.DB, tenantID, appointmentID snowflake.ID) (*ConsentRecord, error)
	Revoke(ctx context.Context, db *gorm.DB, tenantID, appointmentID snowflake.ID, now time.Time) error
	ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]ConsentRecord, error)
	// DeleteExpiredBefore prunes one tenant's records whose expiry passed
	// before the cutoff.
	DeleteExpiredBefore(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, cutoff time.Time) (int64, error)
}
