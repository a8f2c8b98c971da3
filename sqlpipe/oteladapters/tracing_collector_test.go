package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe/oteladapters"
)

func givenTracingCollector() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("sqlpipe")), exporter
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expected string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) {
			assert.Equal(t, expected, attr.Value.AsString(), "attribute %s", key)
			return
		}
	}

	t.Errorf("span %s has no attribute %s", span.Name, key)
}

func Test_TracingCollector_ShouldStartAndFinishAClientSpan(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), "sqlpipe.map", map[string]string{"operation": "map"})
	spanCtx.AddAttribute("operation_id", "op-1")
	collector.FinishSpan(spanCtx, "success", map[string]string{"row_count": "3"})

	// assert
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid(), "the returned context carries the span")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "sqlpipe.map", span.Name)
	assert.Equal(t, trace.SpanKindClient, span.SpanKind)
	assert.Equal(t, codes.Ok, span.Status.Code)
	assertSpanHasAttribute(t, span, "operation", "map")
	assertSpanHasAttribute(t, span, "operation_id", "op-1")
	assertSpanHasAttribute(t, span, "row_count", "3")
}

func Test_TracingCollector_ShouldMapStatusesToSpanCodes(t *testing.T) {
	tests := []struct {
		status              string
		expectedCode        codes.Code
		expectedDescription string
	}{
		{"success", codes.Ok, ""},
		{"error", codes.Error, "sql execution failed"},
		{"handled", codes.Error, "sql execution failed, handled"},
		{"panic", codes.Error, "panic during sql execution"},
		{"skipped", codes.Unset, ""},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			// setup
			collector, exporter := givenTracingCollector()

			// act
			_, spanCtx := collector.StartSpan(context.Background(), "sqlpipe.exec", nil)
			collector.FinishSpan(spanCtx, tt.status, nil)

			// assert
			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.expectedCode, spans[0].Status.Code)
			assert.Equal(t, tt.expectedDescription, spans[0].Status.Description)
		})
	}
}

func Test_TracingCollector_ShouldKeepUnknownStatusesAsAttribute(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act
	_, spanCtx := collector.StartSpan(context.Background(), "sqlpipe.stream", nil)
	collector.FinishSpan(spanCtx, "skipped", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assertSpanHasAttribute(t, spans[0], "status", "skipped")
}

func Test_TracingCollector_ShouldNestUnderTheCallersSpan(t *testing.T) {
	// setup
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	collector := oteladapters.NewTracingCollector(provider.Tracer("sqlpipe"))

	parentCtx, parent := provider.Tracer("app").Start(context.Background(), "handle request")

	// act
	_, spanCtx := collector.StartSpan(parentCtx, "sqlpipe.map", nil)
	collector.FinishSpan(spanCtx, "success", nil)
	parent.End()

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext.TraceID())
}
