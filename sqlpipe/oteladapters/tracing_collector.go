package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// TracingCollector implements sqlpipe.TracingCollector with an OpenTelemetry tracer.
// Spans are started as children of the span found in the call's context.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector starting its spans on tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a client span and returns the context carrying it.
func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, sqlpipe.SpanContext) {
	spanCtx, span := t.tracer.Start(
		ctx,
		name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attributes(attrs)...),
	)

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan adds attrs, applies status and ends the span. Foreign SpanContext implementations are ignored.
func (t *TracingCollector) FinishSpan(spanCtx sqlpipe.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

var _ sqlpipe.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext wraps an OpenTelemetry span as a sqlpipe.SpanContext.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus maps pipeline outcomes to span status codes.
// A handled failure is still an error for the span; unknown values are kept as a "status" attribute.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case "success", "ok":
		s.span.SetStatus(codes.Ok, "")
	case "error":
		s.span.SetStatus(codes.Error, "sql execution failed")
	case "handled":
		s.span.SetStatus(codes.Error, "sql execution failed, handled")
	case "panic":
		s.span.SetStatus(codes.Error, "panic during sql execution")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// AddAttribute sets a string attribute on the span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ sqlpipe.SpanContext = (*OTelSpanContext)(nil)
