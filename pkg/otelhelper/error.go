package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks a span as failed. The error itself is recorded as a span
// event; extra attributes (run id, step key) are attached as a separate
// event so the span keeps the identifiers of the run that failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if len(attrs) > 0 {
		span.AddEvent("run_failure_context", trace.WithAttributes(attrs...))
	}
}
