// Package dispatch delivers queued notifications through channel providers.
// Push and WhatsApp dispatchers are structurally identical: same pull loop,
// same terminal-failure rule, different target resolution and provider.
package dispatch

import (
	"context"

	"github.com/arrivohq/arrivo/internal/notification"
	"github.com/arrivohq/arrivo/internal/notification/domain"
	"github.com/arrivohq/arrivo/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Target is the resolved delivery endpoint for one notification.
type Target struct {
	DeviceToken string
	Phone       string
	Sender      string
}

// TargetResolver resolves where a notification should be delivered.
// A missing target is reported through the reason code, not an error.
type TargetResolver interface {
	Resolve(ctx context.Context, db *gorm.DB, n domain.Notification) (*Target, string, error)
}

// Sender performs one provider call. Implementations must honour context
// cancellation and never retry internally.
type Sender interface {
	Name() string
	Send(ctx context.Context, target Target, n domain.Notification) (messageID string, raw map[string]any, err error)
}

// Result aggregates one dispatch invocation.
type Result struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Dispatcher pulls queued notifications for one channel and delivers them.
type Dispatcher struct {
	db      *gorm.DB
	log     *zap.Logger
	queue   *notification.Queue
	channel domain.Channel
	targets TargetResolver
	sender  Sender
	metrics *metrics.MonitorMetrics
}

func NewDispatcher(
	db *gorm.DB,
	log *zap.Logger,
	queue *notification.Queue,
	channel domain.Channel,
	targets TargetResolver,
	sender Sender,
	m *metrics.MonitorMetrics,
) *Dispatcher {
	return &Dispatcher{
		db:      db,
		log:     log.Named("dispatch." + string(channel)),
		queue:   queue,
		channel: channel,
		targets: targets,
		sender:  sender,
		metrics: m,
	}
}

// Channel returns the channel this dispatcher serves.
func (d *Dispatcher) Channel() domain.Channel { return d.channel }

// Dispatch delivers up to limit queued notifications, oldest first. A single
// notification's failure never aborts the batch; failed rows stay for audit.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID *snowflake.ID, limit int) (Result, error) {
	var result Result

	rows, err := d.queue.NextQueued(ctx, d.channel, tenantID, limit)
	if err != nil {
		return result, err
	}

	for i := range rows {
		n := rows[i]
		result.Processed++

		target, reason, err := d.targets.Resolve(ctx, d.db, n)
		if err != nil {
			d.log.Warn("target resolution failed",
				zap.String("notification_id", n.ID.String()),
				zap.Error(err),
			)
			result.Failed++
			d.fail(ctx, &n, map[string]any{"reason": domain.ReasonProviderError, "error": err.Error()})
			continue
		}
		if target == nil {
			result.Failed++
			d.fail(ctx, &n, map[string]any{"reason": reason})
			continue
		}

		messageID, raw, err := d.sender.Send(ctx, *target, n)
		if err != nil {
			result.Failed++
			diagnostics := map[string]any{
				"reason":   domain.ReasonProviderError,
				"provider": d.sender.Name(),
				"error":    err.Error(),
			}
			for key, value := range raw {
				diagnostics[key] = value
			}
			d.fail(ctx, &n, diagnostics)
			continue
		}

		diagnostics := map[string]any{"provider": d.sender.Name()}
		for key, value := range raw {
			diagnostics[key] = value
		}
		if err := d.queue.MarkSent(ctx, &n, messageID, diagnostics); err != nil {
			d.log.Error("failed to mark notification sent",
				zap.String("notification_id", n.ID.String()),
				zap.Error(err),
			)
			continue
		}
		result.Sent++
		d.metrics.ObserveNotification(string(d.channel), "sent")
	}

	return result, nil
}

func (d *Dispatcher) fail(ctx context.Context, n *domain.Notification, diagnostics map[string]any) {
	if err := d.queue.MarkFailed(ctx, n, diagnostics); err != nil {
		d.log.Error("failed to mark notification failed",
			zap.String("notification_id", n.ID.String()),
			zap.Error(err),
		)
		return
	}
	d.metrics.ObserveNotification(string(d.channel), "failed")
}
