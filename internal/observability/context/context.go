// Package context carries request-scoped identifiers used by logs, traces and metrics.
package context

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	correlationIDKey contextKey = "correlation_id"
	accountIDKey     contextKey = "account_id"
	actorTypeKey     contextKey = "actor_type"
	actorIDKey       contextKey = "actor_id"
)

// Actor types recorded on operator and partner traffic.
const (
	ActorTypePartner  = "partner"
	ActorTypeOperator = "operator"
	ActorTypeSystem   = "system"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey)
}

// WithCorrelationID tags work that spans several log lines, such as one processed event.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return withString(ctx, correlationIDKey, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, correlationIDKey)
}

func WithAccountID(ctx context.Context, accountID string) context.Context {
	return withString(ctx, accountIDKey, accountID)
}

func AccountIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, accountIDKey)
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = withString(ctx, actorTypeKey, actorType)
	return withString(ctx, actorIDKey, actorID)
}

func ActorFromContext(ctx context.Context) (string, string) {
	return stringFrom(ctx, actorTypeKey), stringFrom(ctx, actorIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
