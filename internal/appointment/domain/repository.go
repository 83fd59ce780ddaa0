package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Appointment, error)
	// ListInWindow returns monitorable appointments with starts_at inside
	// [from, to], oldest first, capped at limit.
	ListInWindow(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, from, to time.Time, limit int) ([]Appointment, error)
	// UpdatePunctuality writes only the derived punctuality fields.
	UpdatePunctuality(ctx context.Context, db *gorm.DB, update PunctualityUpdate) error
}
