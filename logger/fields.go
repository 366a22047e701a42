package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across relset.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldActorID = "actor_id"

	// Operations
	FieldOperation = "operation"
	FieldAttempt   = "attempt"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount = "count"

	// relset-specific
	FieldSymbol      = "symbol" // relset glyph (⟳, ⚑, ...)
	FieldSetID       = "set_id"
	FieldRunID       = "run_id"
	FieldRuleID      = "rule_id"
	FieldViolationID = "violation_id"
	FieldTemplateID  = "template_id"
	FieldEntityType  = "entity_type"
)

// Context keys for propagating logging context
type contextKey string

const (
	setIDKey contextKey = "logger_set_id"
	runIDKey contextKey = "logger_run_id"
)

// WithSetID adds a relationship set ID to the context for logging
func WithSetID(ctx context.Context, setID string) context.Context {
	return context.WithValue(ctx, setIDKey, setID)
}

// WithRunID adds a sync run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if setID, ok := ctx.Value(setIDKey).(string); ok && setID != "" {
		fields = append(fields, FieldSetID, setID)
	}
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}

	return fields
}

// FromContext returns base enriched with fields extracted from context.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	orch := synccheck.New(sets, tracker, entities, registry, cfg,
//	    logger.ComponentLogger("synccheck"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
