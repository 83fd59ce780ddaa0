// Package auditcontext carries audit attribution through a request context.
// PunctualityEvents record which trigger produced them, so the entry point
// stamps the context once and the pipeline reads it where it writes.
package auditcontext

import "context"

type contextKey string

const (
	requestIDKey contextKey = "audit_request_id"
	sourceKey    contextKey = "audit_source"
	actorKey     contextKey = "audit_actor"
)

// Trigger sources recorded on committed punctuality events.
const (
	SourceScheduler = "scheduler"
	SourceMonitor   = "monitor"
	SourceAPI       = "api"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithSource(ctx context.Context, source string) context.Context {
	if source == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceKey, source)
}

// SourceFromContext returns the trigger source, defaulting to the API
// boundary when nothing upstream stamped the context.
func SourceFromContext(ctx context.Context) string {
	if value, _ := ctx.Value(sourceKey).(string); value != "" {
		return value
	}
	return SourceAPI
}

func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) string {
	value, _ := ctx.Value(actorKey).(string)
	return value
}
