// Package repository implements the consent repository on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arrivohq/arrivo/internal/consent/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repository struct{}

// Provide constructs the consent repository.
func Provide() domain.Repository {
	return repository{}
}

func (repository) Latest(ctx context.Context, db *gorm.DB, tenantID, appointmentID snowflake.ID) (*domain.ConsentRecord, error) {
	var record domain.ConsentRecord
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND appointment_id = ?", tenantID, appointmentID).
		Order("updated_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r repository) Revoke(ctx context.Context, db *gorm.DB, tenantID, appointmentID snowflake.ID, now time.Time) error {
	record, err := r.Latest(ctx, db, tenantID, appointmentID)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrConsentNotFound
	}
	return db.WithContext(ctx).Exec(
		`UPDATE consent_records
		 SET status = ?, updated_at = ?
		 WHERE id = ?`,
		string(domain.ConsentRevoked),
		now,
		record.ID,
	).Error
}

func (repository) ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]domain.ConsentRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	var records []domain.ConsentRecord
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (repository) DeleteExpiredBefore(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM consent_records
		 WHERE tenant_id = ? AND expires_at IS NOT NULL AND expires_at < ?`,
		tenantID,
		cutoff,
	)
	return result.RowsAffected, result.Error
}
