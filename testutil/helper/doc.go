// Package helper provides test doubles and shared utilities for the sqlpipe test suites.
//
// This package contains:
//   - ConnectionSpy: a scripted sqlpipe.Connection that counts opens and closes and replays rows
//   - LogHandlerSpy: captures slog records for verifying log levels, messages and attributes
//   - ContextualLoggerSpy: captures ContextualLogger calls together with their context
//   - MetricsCollectorSpy: captures duration, counter and value metrics with their labels
//   - TracingCollectorSpy: captures started and finished spans
//
// These test doubles make it possible to verify the pipeline's resource handling and its observability
// instrumentation without a database or a telemetry backend.
package helper
