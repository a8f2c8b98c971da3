package sqlengine

import (
	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// CommandModifier rewrites a command right before it is executed, e.g. to inject hints.
type CommandModifier func(cmd *sqlpipe.Command) *sqlpipe.Command

// Option defines a functional option for configuring Pipeline.
type Option func(*Pipeline) error

// WithErrorHandlerBuilder sets the builder asked for an ErrorHandler whenever an execution fails.
// Without it every execution failure propagates to the caller unchanged.
func WithErrorHandlerBuilder(builder sqlpipe.ErrorHandlerBuilder) Option {
	return func(p *Pipeline) error {
		if builder == nil {
			return sqlpipe.ErrNilErrorHandlerBuilder
		}

		p.errorHandlerBuilder = builder

		return nil
	}
}

// WithCommandModifier sets the hook applied to each command before execution.
// A nil modifier restores the pass-through default.
func WithCommandModifier(modifier CommandModifier) Option {
	return func(p *Pipeline) error {
		if modifier == nil {
			modifier = passThrough
		}

		p.commandModifier = modifier

		return nil
	}
}

// WithRowSerializer sets the serializer used by Stream; sqlpipe.JSONArraySerializer is the default.
func WithRowSerializer(serializer sqlpipe.RowSerializer) Option {
	return func(p *Pipeline) error {
		if serializer == nil {
			return sqlpipe.ErrNilRowSerializer
		}

		p.rowSerializer = serializer

		return nil
	}
}

// WithLogger sets the logger for the Pipeline.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Row counts and durations of completed calls (production-safe)
// Warn level: Non-critical issues like connection close failures
// Error level: Execution failures, whether handled or propagated.
func WithLogger(logger sqlpipe.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Pipeline.
// It receives the same messages as the Logger, together with the call's context for trace correlation.
func WithContextualLogger(logger sqlpipe.ContextualLogger) Option {
	return func(p *Pipeline) error {
		p.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Pipeline.
func WithMetrics(collector sqlpipe.MetricsCollector) Option {
	return func(p *Pipeline) error {
		p.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Pipeline; every Map, Stream and Exec call becomes one span.
func WithTracing(collector sqlpipe.TracingCollector) Option {
	return func(p *Pipeline) error {
		p.tracingCollector = collector
		return nil
	}
}

func passThrough(cmd *sqlpipe.Command) *sqlpipe.Command {
	return cmd
}
