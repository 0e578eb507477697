/*-------------------------------------------------------------------------
 *
 * tracing.go
 *    OpenTelemetry span helpers
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/metrics/tracing.go
 *
 *-------------------------------------------------------------------------
 */

package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/neurondb/NeuronBoard"

/* StartSpan starts a span and stores its trace ID in the log context */
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = WithTraceIDLogContext(ctx, sc.TraceID().String())
	}
	return ctx, span
}

/* EndSpan records err on the span, if any, and ends it */
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
