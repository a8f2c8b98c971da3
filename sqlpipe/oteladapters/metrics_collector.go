package oteladapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// MetricsCollector implements sqlpipe.ContextualMetricsCollector with OpenTelemetry instruments:
//   - RecordDuration records into a Float64Histogram, in seconds
//   - IncrementCounter adds to an Int64Counter
//   - RecordValue records into a Float64Histogram, so row counts keep their distribution
//
// Instruments are created lazily per metric name and cached.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.RWMutex
	durations  map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	valueHists map[string]metric.Float64Histogram
}

// NewMetricsCollector creates a collector whose instruments come from meter.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		durations:  make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		valueHists: make(map[string]metric.Float64Histogram),
	}
}

// RecordDuration records duration in seconds.
func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), metricName, duration, labels)
}

// RecordDurationContext records duration in seconds, with ctx for exemplars and trace correlation.
func (m *MetricsCollector) RecordDurationContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	labels map[string]string,
) {
	histogram, ok := m.duration(metricName)
	if !ok {
		return
	}

	histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(attributes(labels)...))
}

// IncrementCounter adds one to the counter.
func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), metricName, labels)
}

// IncrementCounterContext adds one to the counter, with ctx for trace correlation.
func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, metricName string, labels map[string]string) {
	counter, ok := m.counter(metricName)
	if !ok {
		return
	}

	counter.Add(ctx, 1, metric.WithAttributes(attributes(labels)...))
}

// RecordValue records value into the histogram.
func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), metricName, value, labels)
}

// RecordValueContext records value into the histogram, with ctx for trace correlation.
func (m *MetricsCollector) RecordValueContext(ctx context.Context, metricName string, value float64, labels map[string]string) {
	histogram, ok := m.valueHistogram(metricName)
	if !ok {
		return
	}

	histogram.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
}

func (m *MetricsCollector) duration(name string) (metric.Float64Histogram, bool) {
	return instrument(&m.mu, m.durations, name, func() (metric.Float64Histogram, error) {
		return m.meter.Float64Histogram(name, metric.WithDescription(describe(name)), metric.WithUnit("s"))
	})
}

func (m *MetricsCollector) counter(name string) (metric.Int64Counter, bool) {
	return instrument(&m.mu, m.counters, name, func() (metric.Int64Counter, error) {
		return m.meter.Int64Counter(name, metric.WithDescription(describe(name)))
	})
}

func (m *MetricsCollector) valueHistogram(name string) (metric.Float64Histogram, bool) {
	return instrument(&m.mu, m.valueHists, name, func() (metric.Float64Histogram, error) {
		return m.meter.Float64Histogram(name, metric.WithDescription(describe(name)))
	})
}

// instrument returns the cached instrument for name or creates it.
// A meter that refuses to create the instrument makes the measurement a no-op.
func instrument[T any](mu *sync.RWMutex, cache map[string]T, name string, create func() (T, error)) (T, bool) {
	mu.RLock()
	existing, found := cache[name]
	mu.RUnlock()

	if found {
		return existing, true
	}

	mu.Lock()
	defer mu.Unlock()

	if existing, found = cache[name]; found {
		return existing, true
	}

	created, err := create()
	if err != nil {
		var zero T
		return zero, false
	}

	cache[name] = created

	return created, true
}

func describe(name string) string {
	return "sqlpipe " + strings.ReplaceAll(strings.TrimPrefix(name, "sqlpipe_"), "_", " ")
}

func attributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}

var _ sqlpipe.ContextualMetricsCollector = (*MetricsCollector)(nil)
