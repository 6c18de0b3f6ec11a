package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID      contextKey = "run_id"
	ContextKeyCollection contextKey = "collection"
)

// WithRunID adds a reconciliation run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithCollection adds the collection being reconciled to the context
func WithCollection(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, ContextKeyCollection, collection)
}

// CollectionFromContext extracts the collection from context
func CollectionFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(ContextKeyCollection).(string); ok {
		return c
	}
	return ""
}

// LoggerFromContext returns logger annotated with the run values found in ctx.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RunIDFromContext(ctx); id != "" {
		logger = logger.With("run_id", id)
	}
	if c := CollectionFromContext(ctx); c != "" {
		logger = logger.With("collection", c)
	}
	return logger
}
