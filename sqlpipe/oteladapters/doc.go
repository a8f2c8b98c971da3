// Package oteladapters connects the sqlpipe observability interfaces to OpenTelemetry.
//
// Wire them into a pipeline with the sqlengine options:
//
//	pipeline, err := sqlengine.NewPipelineFromPGXPool(pool,
//		sqlengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger("sqlpipe")),
//		sqlengine.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//		sqlengine.WithTracing(oteladapters.NewTracingCollector(tracer)),
//	)
//
// All adapters are safe for concurrent use by multiple pipelines.
package oteladapters
