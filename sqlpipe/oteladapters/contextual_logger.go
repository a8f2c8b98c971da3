package oteladapters

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// SlogBridgeLogger implements sqlpipe.ContextualLogger on top of log/slog.
// Created with NewSlogBridgeLogger, records go through the OpenTelemetry slog bridge and carry the trace
// and span IDs of the context they are logged with.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a logger that emits to the global OpenTelemetry LoggerProvider.
func NewSlogBridgeLogger(name string) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: otelslog.NewLogger(name)}
}

// NewSlogBridgeLoggerWithHandler creates a logger writing to handler as-is, without trace correlation.
func NewSlogBridgeLoggerWithHandler(handler slog.Handler) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: slog.New(handler)}
}

// DebugContext logs at debug level.
func (l *SlogBridgeLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

// InfoContext logs at info level.
func (l *SlogBridgeLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

// WarnContext logs at warn level.
func (l *SlogBridgeLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

// ErrorContext logs at error level.
func (l *SlogBridgeLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

var _ sqlpipe.ContextualLogger = (*SlogBridgeLogger)(nil)

// OTelLogger implements sqlpipe.ContextualLogger with the OpenTelemetry logs API directly.
// Use it when records must be built without going through log/slog.
type OTelLogger struct {
	logger log.Logger
}

// NewOTelLogger wraps an OpenTelemetry logger.
func NewOTelLogger(logger log.Logger) *OTelLogger {
	return &OTelLogger{logger: logger}
}

// DebugContext emits a record with SeverityDebug.
func (l *OTelLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityDebug, msg, args)
}

// InfoContext emits a record with SeverityInfo.
func (l *OTelLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityInfo, msg, args)
}

// WarnContext emits a record with SeverityWarn.
func (l *OTelLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityWarn, msg, args)
}

// ErrorContext emits a record with SeverityError.
func (l *OTelLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityError, msg, args)
}

func (l *OTelLogger) emit(ctx context.Context, severity log.Severity, msg string, args []any) {
	record := log.Record{}
	record.SetTimestamp(time.Now())
	record.SetSeverity(severity)
	record.SetSeverityText(severity.String())
	record.SetBody(log.StringValue(msg))
	record.AddAttributes(logAttributes(args)...)

	l.logger.Emit(ctx, record)
}

// logAttributes converts slog-style key/value pairs. A trailing key without a value is dropped.
func logAttributes(args []any) []log.KeyValue {
	attrs := make([]log.KeyValue, 0, len(args)/2)

	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}

		attrs = append(attrs, log.KeyValue{Key: key, Value: logValue(args[i+1])})
	}

	return attrs
}

func logValue(v any) log.Value {
	switch value := v.(type) {
	case string:
		return log.StringValue(value)
	case int:
		return log.IntValue(value)
	case int64:
		return log.Int64Value(value)
	case float64:
		return log.Float64Value(value)
	case bool:
		return log.BoolValue(value)
	case []byte:
		return log.BytesValue(value)
	case error:
		return log.StringValue(value.Error())
	}

	return log.StringValue(slog.AnyValue(v).String())
}

var _ sqlpipe.ContextualLogger = (*OTelLogger)(nil)
