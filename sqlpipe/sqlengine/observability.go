package sqlengine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

const (
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "sqlpipe operation: "
	logMsgCompleted          = " completed"
	logMsgExecutionFailed    = "sql execution failed"
	logMsgErrorHandled       = "failure handled"
	logMsgCloseSessionFailed = "failed to close database connection"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrStage             = "stage"
	logAttrRowCount          = "row_count"
	logAttrDurationMS        = "duration_ms"
	logAttrOperationID       = "operation_id"

	metricOperationDuration = "sqlpipe_operation_duration_seconds"
	metricRows              = "sqlpipe_rows_total"
	metricErrors            = "sqlpipe_errors_total"
	metricHandledErrors     = "sqlpipe_handled_errors_total"
	metricCloseFailures     = "sqlpipe_close_failures_total"

	spanNamePrefix       = "sqlpipe."
	spanAttrOperation    = "operation"
	spanAttrOperationID  = "operation_id"
	spanAttrRowCount     = "row_count"
	spanAttrDurationMS   = "duration_ms"
	spanAttrErrorType    = "error_type"
	spanAttrErrorHandled = "error_handled"

	labelStatus = "status"

	statusSuccess = "success"
	statusError   = "error"
	statusHandled = "handled"
	statusPanic   = "panic"

	operationMap    = "map"
	operationStream = "stream"
	operationExec   = "exec"

	stageModify  = "modify"
	stageOpen    = "open"
	stageBind    = "bind"
	stageExecute = "execute"
	stageFetch   = "fetch"
	stageConsume = "consume"
	stageOutput  = "output"
)

// call carries the observability state of one Map, Stream or Exec invocation.
type call struct {
	ctx         context.Context
	operation   string
	operationID string
	span        sqlpipe.SpanContext
	start       time.Time
	stage       string
	query       string
	rowCount    int64
	completed   bool
}

// beginCall starts the span and assigns the operation id used to correlate log lines.
func (p *Pipeline) beginCall(ctx context.Context, operation string) *call {
	c := &call{
		ctx:         ctx,
		operation:   operation,
		operationID: uuid.NewString(),
		start:       time.Now(),
	}

	if p.tracingCollector != nil {
		c.ctx, c.span = p.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
			spanAttrOperation:   operation,
			spanAttrOperationID: c.operationID,
		})
	}

	return c
}

// endCall records the outcome of a call. It runs last, after the connection was released.
func (p *Pipeline) endCall(c *call, handled bool, err error) {
	duration := time.Since(c.start)

	status := statusSuccess
	switch {
	case !c.completed:
		status = statusPanic
	case handled:
		status = statusHandled
	case err != nil:
		status = statusError
	}

	p.recordDuration(c, duration, status)

	switch status {
	case statusSuccess:
		p.logOperation(c, c.operation+logMsgCompleted,
			logAttrRowCount, c.rowCount,
			logAttrDurationMS, toMilliseconds(duration))
		p.recordValue(c, metricRows, float64(c.rowCount), status)
		p.finishSpan(c, statusSuccess, map[string]string{
			spanAttrRowCount:   strconv.FormatInt(c.rowCount, 10),
			spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
		})

	case statusHandled:
		p.incrementCounter(c, metricHandledErrors, map[string]string{spanAttrErrorType: c.stage})
		p.finishSpan(c, statusError, map[string]string{
			spanAttrErrorType:    c.stage,
			spanAttrErrorHandled: "true",
		})

	default:
		p.incrementCounter(c, metricErrors, map[string]string{spanAttrErrorType: c.stage})
		p.finishSpan(c, statusError, map[string]string{spanAttrErrorType: c.stage})
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if a logger is configured.
func (p *Pipeline) logQueryWithDuration(c *call, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, c.query, logAttrOperationID, c.operationID}

	if p.logger != nil {
		p.logger.Debug(logMsgSQLExecuted+c.operation, args...)
	}

	if p.contextualLogger != nil {
		p.contextualLogger.DebugContext(c.ctx, logMsgSQLExecuted+c.operation, args...)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (p *Pipeline) logOperation(c *call, action string, args ...any) {
	args = append(args, logAttrOperationID, c.operationID)

	if p.logger != nil {
		p.logger.Info(logMsgOperation+action, args...)
	}

	if p.contextualLogger != nil {
		p.contextualLogger.InfoContext(c.ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical failures, e.g. cleanup.
func (p *Pipeline) logWarn(c *call, message string, err error) {
	args := []any{logAttrError, err.Error(), logAttrOperationID, c.operationID}

	if p.logger != nil {
		p.logger.Warn(message, args...)
	}

	if p.contextualLogger != nil {
		p.contextualLogger.WarnContext(c.ctx, message, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (p *Pipeline) logError(c *call, message string, err error) {
	args := []any{
		logAttrError, err.Error(),
		logAttrStage, c.stage,
		logAttrQuery, c.query,
		logAttrOperationID, c.operationID,
	}

	if p.logger != nil {
		p.logger.Error(message, args...)
	}

	if p.contextualLogger != nil {
		p.contextualLogger.ErrorContext(c.ctx, message, args...)
	}
}

func (p *Pipeline) labels(c *call, status string, extra map[string]string) map[string]string {
	labels := map[string]string{
		spanAttrOperation: c.operation,
		labelStatus:       status,
	}

	for key, value := range extra {
		labels[key] = value
	}

	return labels
}

// recordDuration records the call duration, using the context-aware method if the collector supports it.
func (p *Pipeline) recordDuration(c *call, duration time.Duration, status string) {
	if p.metricsCollector == nil {
		return
	}

	labels := p.labels(c, status, nil)

	if contextual, ok := p.metricsCollector.(sqlpipe.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(c.ctx, metricOperationDuration, duration, labels)
		return
	}

	p.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
}

func (p *Pipeline) recordValue(c *call, metric string, value float64, status string) {
	if p.metricsCollector == nil {
		return
	}

	labels := p.labels(c, status, nil)

	if contextual, ok := p.metricsCollector.(sqlpipe.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(c.ctx, metric, value, labels)
		return
	}

	p.metricsCollector.RecordValue(metric, value, labels)
}

func (p *Pipeline) incrementCounter(c *call, metric string, extra map[string]string) {
	if p.metricsCollector == nil {
		return
	}

	labels := p.labels(c, statusError, extra)

	if contextual, ok := p.metricsCollector.(sqlpipe.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(c.ctx, metric, labels)
		return
	}

	p.metricsCollector.IncrementCounter(metric, labels)
}

// finishSpan finishes the call's span if the tracing collector is configured.
func (p *Pipeline) finishSpan(c *call, status string, attrs map[string]string) {
	if p.tracingCollector == nil || c.span == nil {
		return
	}

	c.span.SetStatus(status)
	p.tracingCollector.FinishSpan(c.span, status, attrs)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
