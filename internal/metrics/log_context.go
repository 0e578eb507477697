/*-------------------------------------------------------------------------
 *
 * log_context.go
 *    Log context helpers for structured logging
 *
 * Carries request_id, project_id, plan_id, tool_id and trace_id through
 * context so every component logs the same correlation fields.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/metrics/log_context.go
 *
 *-------------------------------------------------------------------------
 */

package metrics

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	projectIDKey contextKey = "project_id"
	planIDKey    contextKey = "plan_id"
	toolIDKey    contextKey = "tool_id"
	traceIDKey   contextKey = "trace_id"
)

/* WithLogContext adds logging fields to context */
func WithLogContext(ctx context.Context, requestID, projectID, planID, toolID, traceID string) context.Context {
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	if projectID != "" {
		ctx = context.WithValue(ctx, projectIDKey, projectID)
	}
	if planID != "" {
		ctx = context.WithValue(ctx, planIDKey, planID)
	}
	if toolID != "" {
		ctx = context.WithValue(ctx, toolIDKey, toolID)
	}
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	return ctx
}

/* WithPlanLogContext adds project and plan IDs to log context */
func WithPlanLogContext(ctx context.Context, projectID string, planID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, projectIDKey, projectID)
	return context.WithValue(ctx, planIDKey, planID.String())
}

/* WithToolIDLogContext adds tool ID to log context */
func WithToolIDLogContext(ctx context.Context, toolID string) context.Context {
	return context.WithValue(ctx, toolIDKey, toolID)
}

/* WithTraceIDLogContext adds trace ID to log context */
func WithTraceIDLogContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

/* GetRequestIDFromContext gets request ID from context */
func GetRequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey)
}

/* GetProjectIDFromContext gets project ID from context */
func GetProjectIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, projectIDKey)
}

/* GetPlanIDFromContext gets plan ID from context */
func GetPlanIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, planIDKey)
}

/* LoggerFromContext creates a zerolog logger with fields from context */
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	logger := *zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	fields := []struct {
		name string
		key  contextKey
	}{
		{"request_id", requestIDKey},
		{"project_id", projectIDKey},
		{"plan_id", planIDKey},
		{"tool_id", toolIDKey},
		{"trace_id", traceIDKey},
	}
	for _, f := range fields {
		if v := stringFromContext(ctx, f.key); v != "" {
			logger = logger.With().Str(f.name, v).Logger()
		}
	}

	return logger
}

/* LogWithContext logs a message with context fields */
func LogWithContext(ctx context.Context, level zerolog.Level, message string, fields map[string]interface{}) {
	logger := LoggerFromContext(ctx)
	event := logger.WithLevel(level)

	for key, value := range fields {
		event = event.Interface(key, value)
	}

	event.Msg(message)
}

/* DebugWithContext logs a debug message with context */
func DebugWithContext(ctx context.Context, message string, fields map[string]interface{}) {
	LogWithContext(ctx, zerolog.DebugLevel, message, fields)
}

/* InfoWithContext logs an info message with context */
func InfoWithContext(ctx context.Context, message string, fields map[string]interface{}) {
	LogWithContext(ctx, zerolog.InfoLevel, message, fields)
}

/* WarnWithContext logs a warning message with context */
func WarnWithContext(ctx context.Context, message string, fields map[string]interface{}) {
	LogWithContext(ctx, zerolog.WarnLevel, message, fields)
}

/* ErrorWithContext logs an error message with context */
func ErrorWithContext(ctx context.Context, message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogWithContext(ctx, zerolog.ErrorLevel, message, fields)
}
