package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a request-scoped logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithSession returns a context whose logger carries the session ID.
// Every log line of an index or ask call can then be grouped by session.
func WithSession(ctx context.Context, fallback *zap.Logger, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return ContextWithLogger(ctx, FromContext(ctx, fallback).With(zap.String("session_id", sessionID)))
}

// FromContext extracts the request logger from the context.
// Falls back to fallback, or zap.NewNop() when fallback is nil.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}
