// Package repository implements the appointment read/update contract on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arrivohq/arrivo/internal/appointment/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repository struct{}

// Provide constructs the appointment repository.
func Provide() domain.Repository {
	return repository{}
}

func (repository) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Appointment, error) {
	var appt domain.Appointment
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&appt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appt, nil
}

func (repository) ListInWindow(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, from, to time.Time, limit int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	var appts []domain.Appointment
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND starts_at BETWEEN ? AND ?",
			tenantID,
			[]string{domain.StateScheduled, domain.StateConfirmed},
			from,
			to,
		).
		Order("starts_at ASC").
		Limit(limit).
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (repository) UpdatePunctuality(ctx context.Context, db *gorm.DB, update domain.PunctualityUpdate) error {
	if update.ID == 0 {
		return errors.New("missing_appointment_id")
	}
	return db.WithContext(ctx).Exec(
		`UPDATE appointments
		 SET punctuality_status = ?,
		     eta_minutes = ?,
		     predicted_delay_minutes = ?,
		     last_calculated_at = ?,
		     updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		string(update.Status),
		update.EtaMinutes,
		update.PredictedDelayMinutes,
		update.CalculatedAt,
		update.CalculatedAt,
		update.TenantID,
		update.ID,
	).Error
}
