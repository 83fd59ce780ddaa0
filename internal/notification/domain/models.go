// Package domain models punctuality notifications across channels.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelPush     Channel = "push"
	ChannelWhatsApp Channel = "whatsapp"
)

type DeliveryStatus string

const (
	// StatusQueued rows await a dispatcher.
	StatusQueued DeliveryStatus = "queued"
	StatusSent   DeliveryStatus = "sent"
	// StatusFailed is terminal: recovery is an operator action, never an
	// automatic retry, so a permanently bad target is contacted once.
	StatusFailed DeliveryStatus = "failed"
	StatusRead   DeliveryStatus = "read"
)

// Priority flags carried on push notifications.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Machine-readable failure reasons stored in the payload.
const (
	ReasonNoDeviceToken   = "no_device_token"
	ReasonNoPhone         = "no_phone"
	ReasonNoSendingNumber = "no_sending_number"
	ReasonProviderError   = "provider_error"
)

// Notification is one (appointment, channel, type) delivery attempt. The
// payload accumulates dispatch diagnostics across attempts instead of being
// overwritten.
type Notification struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	AppointmentID  snowflake.ID `gorm:"not null;index" json:"appointment_id"`
	ProfessionalID snowflake.ID `gorm:"not null;index" json:"professional_id"`

	Channel  Channel        `gorm:"type:text;not null" json:"channel"`
	Type     string         `gorm:"type:text;not null" json:"type"`
	Status   DeliveryStatus `gorm:"type:text;not null;default:queued" json:"status"`
	Priority string         `gorm:"type:text;not null;default:normal" json:"priority"`

	Title string `gorm:"type:text" json:"title"`
	Body  string `gorm:"type:text" json:"body"`

	ProviderMessageID *string           `gorm:"type:text" json:"provider_message_id"`
	Payload           datatypes.JSONMap `gorm:"type:jsonb" json:"payload"`

	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	SentAt    *time.Time `json:"sent_at"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }
