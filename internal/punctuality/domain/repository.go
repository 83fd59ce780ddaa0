package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SnapshotRepository persists and reads the append-only ETA snapshot log.
type SnapshotRepository interface {
	Insert(ctx context.Context, db *gorm.DB, snapshot *EtaSnapshot) error
	// LatestTwo returns up to two snapshots ordered captured_at descending.
	LatestTwo(ctx context.Context, db *gorm.DB, appointmentID snowflake.ID) ([]EtaSnapshot, error)
	Latest(ctx context.Context, db *gorm.DB, appointmentID snowflake.ID) (*EtaSnapshot, error)
	ListByAppointment(ctx context.Context, db *gorm.DB, tenantID, appointmentID snowflake.ID, limit int) ([]EtaSnapshot, error)
}

// EventRepository persists and reads the committed transition trail.
type EventRepository interface {
	Insert(ctx context.Context, db *gorm.DB, event *PunctualityEvent) error
	ListByAppointment(ctx context.Context, db *gorm.DB, tenantID, appointmentID snowflake.ID, limit int) ([]PunctualityEvent, error)
}
