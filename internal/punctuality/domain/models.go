package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EtaSnapshot is one ETA observation for an appointment. Rows are immutable
// once written; the newest two form the debounce window.
type EtaSnapshot struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	AppointmentID snowflake.ID `gorm:"not null;index:idx_eta_snapshots_appt_captured" json:"appointment_id"`
	CapturedAt    time.Time    `gorm:"not null;index:idx_eta_snapshots_appt_captured" json:"captured_at"`

	// EtaMinutes is nil when no ETA could be observed; the row still records
	// the attempt.
	EtaMinutes     *int           `json:"eta_minutes"`
	MinutesToStart int            `gorm:"not null" json:"minutes_to_start"`
	PredictedDelay *int           `json:"predicted_delay"`
	Status         Status         `gorm:"type:text;not null" json:"status"`
	Provider       string         `gorm:"type:text;not null" json:"provider"`
	TrafficLevel   *string        `gorm:"type:text" json:"traffic_level"`
	ClientLat      *float64       `json:"client_lat"`
	ClientLng      *float64       `json:"client_lng"`
	RawResponse    datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (EtaSnapshot) TableName() string { return "eta_snapshots" }

// HasClientPosition reports whether the snapshot carries usable coordinates.
func (s EtaSnapshot) HasClientPosition() bool {
	return s.ClientLat != nil && s.ClientLng != nil
}

// PunctualityEvent records one committed status transition. Append-only;
// carries the policy in force at commit time for audit.
type PunctualityEvent struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	AppointmentID snowflake.ID `gorm:"not null;index" json:"appointment_id"`

	OldStatus Status `gorm:"type:text;not null" json:"old_status"`
	NewStatus Status `gorm:"type:text;not null" json:"new_status"`

	EtaMinutes      *int   `json:"eta_minutes"`
	PredictedDelay  *int   `json:"predicted_delay"`
	MinutesToStart  int    `gorm:"not null" json:"minutes_to_start"`
	MaxAllowedDelay int    `gorm:"not null" json:"max_allowed_delay"`
	Source          string `gorm:"type:text;not null" json:"source"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PunctualityEvent) TableName() string { return "punctuality_events" }
