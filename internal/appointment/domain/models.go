// Package domain models the appointment rows owned by the calendar
// subsystem. The punctuality pipeline reads them and mutates only the
// derived punctuality fields.
package domain

import (
	"time"

	punctualitydomain "github.com/arrivohq/arrivo/internal/punctuality/domain"
	"github.com/bwmarrin/snowflake"
)

// Appointment states considered in scope for monitoring.
const (
	StateScheduled = "scheduled"
	StateConfirmed = "confirmed"
)

type Appointment struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	ProfessionalID snowflake.ID `gorm:"not null;index" json:"professional_id"`
	ClientID       snowflake.ID `gorm:"not null" json:"client_id"`
	Status         string       `gorm:"type:text;not null" json:"status"`
	StartsAt       time.Time    `gorm:"not null;index" json:"starts_at"`

	// Derived punctuality state. Only the monitoring pipeline writes these.
	PunctualityStatus     punctualitydomain.Status `gorm:"type:text;not null;default:no_data" json:"punctuality_status"`
	EtaMinutes            *int                     `json:"eta_minutes"`
	PredictedDelayMinutes *int                     `json:"predicted_delay_minutes"`
	LastCalculatedAt      *time.Time               `json:"last_calculated_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Appointment) TableName() string { return "appointments" }

// Monitorable reports whether the appointment state is eligible for the
// punctuality window scan.
func (a Appointment) Monitorable() bool {
	return a.Status == StateScheduled || a.Status == StateConfirmed
}

// PunctualityUpdate captures the derived fields committed after a pass.
type PunctualityUpdate struct {
	ID                    snowflake.ID
	TenantID              snowflake.ID
	Status                punctualitydomain.Status
	EtaMinutes            *int
	PredictedDelayMinutes *int
	CalculatedAt          time.Time
}
