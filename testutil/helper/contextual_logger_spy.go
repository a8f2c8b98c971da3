package helper

import (
	"context"
	"sync"
)

// ContextualLoggerSpy is a ContextualLogger implementation that captures contextual logging calls for testing.
type ContextualLoggerSpy struct {
	records     []ContextualLogRecord
	mu          sync.Mutex
	recordCalls bool
}

// ContextualLogRecord represents a recorded contextual log call.
type ContextualLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// NewContextualLoggerSpy creates a new ContextualLoggerSpy instance.
func NewContextualLoggerSpy(recordCalls bool) *ContextualLoggerSpy {
	return &ContextualLoggerSpy{recordCalls: recordCalls}
}

// DebugContext implements the ContextualLogger interface.
func (l *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, "debug", msg, args)
}

// InfoContext implements the ContextualLogger interface.
func (l *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, "info", msg, args)
}

// WarnContext implements the ContextualLogger interface.
func (l *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, "warn", msg, args)
}

// ErrorContext implements the ContextualLogger interface.
func (l *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, "error", msg, args)
}

func (l *ContextualLoggerSpy) record(ctx context.Context, level, msg string, args []any) {
	if !l.recordCalls {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, ContextualLogRecord{
		Level:   level,
		Message: msg,
		Args:    args,
		Context: ctx,
	})
}

// GetRecords returns a copy of all captured records.
func (l *ContextualLoggerSpy) GetRecords() []ContextualLogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]ContextualLogRecord, len(l.records))
	copy(records, l.records)

	return records
}

// HasRecord checks if there's a record with the given level and message.
func (l *ContextualLoggerSpy) HasRecord(level, message string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, record := range l.records {
		if record.Level == level && record.Message == message {
			return true
		}
	}

	return false
}
