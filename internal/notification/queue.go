// Package notification persists and dedupes punctuality notifications.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/notification/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Queue inserts notifications under a time-windowed dedup rule. The
// duplicate check and the insert run inside one transaction so concurrent
// passes cannot both slip past the window check for the same
// (appointment, channel, type) triple.
type Queue struct {
	db     *gorm.DB
	genID  *snowflake.Node
	clock  clock.Clock
	window time.Duration
}

func NewQueue(db *gorm.DB, genID *snowflake.Node, clk clock.Clock, window time.Duration) *Queue {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &Queue{db: db, genID: genID, clock: clk, window: window}
}

// Enqueue inserts the notification unless an equal queued or sent one exists
// inside the dedup window. Returns true when a row was inserted. A failed
// row inside the window does not suppress a new attempt.
func (q *Queue) Enqueue(ctx context.Context, n *domain.Notification) (bool, error) {
	if n == nil {
		return false, errors.New("missing_notification")
	}
	if n.AppointmentID == 0 || n.Channel == "" || n.Type == "" {
		return false, errors.New("invalid_notification")
	}

	now := q.clock.Now()
	windowStart := now.Add(-q.window)
	inserted := false

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1)
			 FROM notifications
			 WHERE appointment_id = ? AND channel = ? AND type = ?
			   AND status IN (?, ?)
			   AND created_at > ?`,
			n.AppointmentID,
			string(n.Channel),
			n.Type,
			string(domain.StatusQueued),
			string(domain.StatusSent),
			windowStart,
		).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if n.ID == 0 {
			n.ID = q.genID.Generate()
		}
		if n.Status == "" {
			n.Status = domain.StatusQueued
		}
		if n.Priority == "" {
			n.Priority = domain.PriorityNormal
		}
		n.CreatedAt = now
		n.UpdatedAt = now

		if err := tx.WithContext(ctx).Create(n).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// NextQueued returns up to limit queued notifications for the channel,
// oldest first, optionally scoped to one tenant.
func (q *Queue) NextQueued(ctx context.Context, channel domain.Channel, tenantID *snowflake.ID, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := q.db.WithContext(ctx).
		Where("channel = ? AND status = ?", string(channel), string(domain.StatusQueued)).
		Order("created_at ASC").
		Limit(limit)
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	var rows []domain.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByAppointment returns the notification trail for an appointment,
// newest first, for the audit surface.
func (q *Queue) ListByAppointment(ctx context.Context, tenantID, appointmentID snowflake.ID, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []domain.Notification
	err := q.db.WithContext(ctx).
		Where("tenant_id = ? AND appointment_id = ?", tenantID, appointmentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSent records a successful delivery with the provider's message id and
// merges diagnostics into the accumulated payload.
func (q *Queue) MarkSent(ctx context.Context, n *domain.Notification, providerMessageID string, diagnostics map[string]any) error {
	return q.finish(ctx, n, domain.StatusSent, &providerMessageID, diagnostics)
}

// MarkFailed records a terminal failure, keeping the row for audit.
func (q *Queue) MarkFailed(ctx context.Context, n *domain.Notification, diagnostics map[string]any) error {
	return q.finish(ctx, n, domain.StatusFailed, nil, diagnostics)
}

// MarkRead flips an in-app notification to read.
func (q *Queue) MarkRead(ctx context.Context, tenantID, id snowflake.ID) error {
	return q.db.WithContext(ctx).Exec(
		`UPDATE notifications
		 SET status = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND channel = ? AND status = ?`,
		string(domain.StatusRead),
		q.clock.Now(),
		tenantID,
		id,
		string(domain.ChannelInApp),
		string(domain.StatusSent),
	).Error
}

func (q *Queue) finish(ctx context.Context, n *domain.Notification, status domain.DeliveryStatus, providerMessageID *string, diagnostics map[string]any) error {
	if n == nil || n.ID == 0 {
		return errors.New("missing_notification")
	}

	now := q.clock.Now()
	if n.Payload == nil {
		n.Payload = map[string]any{}
	}
	for key, value := range diagnostics {
		n.Payload[key] = value
	}

	n.Status = status
	n.UpdatedAt = now
	if status == domain.StatusSent {
		n.SentAt = &now
		n.ProviderMessageID = providerMessageID
	}

	return q.db.WithContext(ctx).Exec(
		`UPDATE notifications
		 SET status = ?, provider_message_id = ?, payload = ?, sent_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(n.Status),
		n.ProviderMessageID,
		n.Payload,
		n.SentAt,
		now,
		n.ID,
	).Error
}
