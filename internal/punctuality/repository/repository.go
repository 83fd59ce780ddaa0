// Package repository implements the punctuality domain repositories on gorm.
package repository

import (
	"context"
	"errors"

	"github.com/arrivohq/arrivo/internal/punctuality/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type snapshotRepository struct{}

// ProvideSnapshots constructs the snapshot repository.
func ProvideSnapshots() domain.SnapshotRepository {
	return snapshotRepository{}
}

func (snapshotRepository) Insert(ctx context.Context, db *gorm.DB, snapshot *domain.EtaSnapshot) error {
	if snapshot == nil {
		return errors.New("missing_snapshot")
	}
	return db.WithContext(ctx).Create(snapshot).Error
}

func (snapshotRepository) LatestTwo(ctx context.Context, db *gorm.DB, appointmentID snowflake.ID) ([]domain.EtaSnapshot, error) {
	var snapshots []domain.EtaSnapshot
	err := db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("captured_at DESC, id DESC").
		Limit(2).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r snapshotRepository) Latest(ctx context.Context, db *gorm.DB, appointmentID snowflake.ID) (*domain.EtaSnapshot, error) {
	snapshots, err := r.LatestTwo(ctx, db, appointmentID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	latest := snapshots[0]
	return &latest, nil
}

func (snapshotRepository) ListByAppointment(ctx context.Context, db *gorm.DB, tenantID, appointmentID snowflake.ID, limit int) ([]domain.EtaSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	var snapshots []domain.EtaSnapshot
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND appointment_id = ?", tenantID, appointmentID).
		Order("captured_at DESC, id DESC").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

type eventRepository struct{}

// ProvideEvents constructs the transition event repository.
func ProvideEvents() domain.EventRepository {
	return eventRepository{}
}

func (eventRepository) Insert(ctx context.Context, db *gorm.DB, event *domain.PunctualityEvent) error {
	if event == nil {
		return errors.New("missing_event")
	}
	return db.WithContext(ctx).Create(event).Error
}

func (eventRepository) ListByAppointment(ctx context.Context, db *gorm.DB, tenantID, appointmentID snowflake.ID, limit int) ([]domain.PunctualityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []domain.PunctualityEvent
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND appointment_id = ?", tenantID, appointmentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
