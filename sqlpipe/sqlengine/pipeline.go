package sqlengine

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe/sqlengine/internal/adapters"
)

// Pipeline executes commands against one connection handle and delivers the rows to a RowConsumer
// or serializes them into an output sink.
//
// Every Map, Stream and Exec call opens its own session on the connection and releases it when the call returns,
// on every exit path. Execution failures are offered to the configured ErrorHandlerBuilder; without a handler they
// propagate unchanged.
//
// The Sql/Param/Map chain keeps the bound command inside the Pipeline, so one chain must not be interleaved
// with another on the same Pipeline. Stream, Exec and the *SQL forms take their command explicitly.
type Pipeline struct {
	connection          sqlpipe.Connection
	statement           statement
	errorHandlerBuilder sqlpipe.ErrorHandlerBuilder
	commandModifier     CommandModifier
	rowSerializer       sqlpipe.RowSerializer
	logger              sqlpipe.Logger
	contextualLogger    sqlpipe.ContextualLogger
	metricsCollector    sqlpipe.MetricsCollector
	tracingCollector    sqlpipe.TracingCollector
}

var _ sqlpipe.QueryMapper = (*Pipeline)(nil)

// runFunc executes the bound query on an opened session.
type runFunc func(c *call, session sqlpipe.Session, query string, args []any) error

// NewPipeline creates a Pipeline for any sqlpipe.Connection implementation.
// The connection must carry a non-blank connection string; no I/O happens here.
func NewPipeline(conn sqlpipe.Connection, options ...Option) (*Pipeline, error) {
	if conn == nil {
		return nil, sqlpipe.ErrNilConnection
	}

	if strings.TrimSpace(conn.ConnectionString()) == "" {
		return nil, sqlpipe.ErrBlankConnectionString
	}

	p := &Pipeline{
		connection:          conn,
		errorHandlerBuilder: sqlpipe.RethrowErrorHandlerBuilder{},
		commandModifier:     passThrough,
		rowSerializer:       sqlpipe.JSONArraySerializer{},
	}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// NewPipelineFromPGXPool creates a Pipeline using a pgx Pool with optional configuration.
func NewPipelineFromPGXPool(db *pgxpool.Pool, options ...Option) (*Pipeline, error) {
	if db == nil {
		return nil, sqlpipe.ErrNilConnection
	}

	return NewPipeline(adapters.NewPGXAdapter(db), options...)
}

// NewPipelineFromSQLDB creates a Pipeline using a sql.DB with optional configuration.
// sql.DB does not remember how it was opened, so the driver name and the DSN are passed alongside.
func NewPipelineFromSQLDB(db *sql.DB, driverName, dsn string, options ...Option) (*Pipeline, error) {
	if db == nil {
		return nil, sqlpipe.ErrNilConnection
	}

	return NewPipeline(adapters.NewSQLAdapter(db, driverName, dsn), options...)
}

// NewPipelineFromSQLX creates a Pipeline using a sqlx.DB with optional configuration.
func NewPipelineFromSQLX(db *sqlx.DB, dsn string, options ...Option) (*Pipeline, error) {
	if db == nil {
		return nil, sqlpipe.ErrNilConnection
	}

	return NewPipeline(adapters.NewSQLXAdapter(db, dsn), options...)
}

// SetCommand binds the command for the next Map.
func (p *Pipeline) SetCommand(cmd *sqlpipe.Command) {
	p.statement.setCommand(cmd)
}

// AddParameter attaches a parameter to the bound command, or to the next one bound.
func (p *Pipeline) AddParameter(parameter sqlpipe.Parameter) {
	p.statement.addParameter(parameter)
}

// Sql binds the command for the next Map. A nil command is accepted here and rejected by Map.
func (p *Pipeline) Sql(cmd *sqlpipe.Command) sqlpipe.QueryMapper { //nolint:revive // mirrors the SQL builder vocabulary
	p.SetCommand(cmd)
	return p
}

// Param adds a named parameter; size is optional, 0 meaning the driver default.
func (p *Pipeline) Param(name string, dbType sqlpipe.DBType, value any, size ...int) sqlpipe.QueryMapper {
	var parameterSize int
	if len(size) > 0 {
		parameterSize = size[0]
	}

	p.AddParameter(sqlpipe.NewParameter(name, dbType, value, parameterSize))

	return p
}

// Map executes the command bound via Sql and hands every row to the consumer, in cursor order.
// The next row is fetched only after the consumer returned. The bound command is consumed, even on failure.
func (p *Pipeline) Map(ctx context.Context, consumer sqlpipe.RowConsumer) error {
	cmd := p.statement.take()

	return p.mapRows(ctx, cmd, consumer)
}

// MapSQL wraps the SQL text into a fresh command and maps its rows.
func (p *Pipeline) MapSQL(ctx context.Context, text string, consumer sqlpipe.RowConsumer, parameters ...sqlpipe.Parameter) error {
	return p.mapRows(ctx, sqlpipe.NewCommand(text, parameters...), consumer)
}

func (p *Pipeline) mapRows(ctx context.Context, cmd *sqlpipe.Command, consumer sqlpipe.RowConsumer) error {
	if consumer == nil {
		return sqlpipe.ErrNilRowConsumer
	}

	return p.execute(ctx, operationMap, cmd, p.queryRows(consumer))
}

// Stream executes the command and serializes its rows into w with the configured RowSerializer.
// When the result set is empty, options.DefaultOutput is written verbatim instead.
func (p *Pipeline) Stream(ctx context.Context, cmd *sqlpipe.Command, w io.Writer, options sqlpipe.Options) error {
	if w == nil {
		return sqlpipe.ErrNilOutput
	}

	serializer := p.rowSerializer
	index := 0

	consumer := sqlpipe.RowConsumerFunc(func(_ context.Context, row sqlpipe.Row) error {
		if index == 0 {
			if err := serializer.Begin(w); err != nil {
				return err
			}
		}

		if err := serializer.WriteRow(w, index, row); err != nil {
			return err
		}

		index++

		return nil
	})

	query := p.queryRows(consumer)

	return p.execute(ctx, operationStream, cmd, func(c *call, session sqlpipe.Session, text string, args []any) error {
		if err := query(c, session, text, args); err != nil {
			return err
		}

		c.stage = stageOutput
		if index == 0 {
			_, err := w.Write(options.DefaultOutput)
			return err
		}

		return serializer.End(w)
	})
}

// StreamSQL wraps the SQL text into a fresh command and streams it.
func (p *Pipeline) StreamSQL(ctx context.Context, text string, w io.Writer, options sqlpipe.Options) error {
	return p.Stream(ctx, sqlpipe.NewCommand(text), w, options)
}

// StreamText streams the command with a textual default output.
func (p *Pipeline) StreamText(ctx context.Context, cmd *sqlpipe.Command, w io.Writer, defaultOutput string) error {
	return p.Stream(ctx, cmd, w, sqlpipe.NewOptions(defaultOutput))
}

// StreamBytes streams the command with a binary default output.
func (p *Pipeline) StreamBytes(ctx context.Context, cmd *sqlpipe.Command, w io.Writer, defaultOutput []byte) error {
	return p.Stream(ctx, cmd, w, sqlpipe.NewOptions(defaultOutput))
}

// Exec executes a command that returns no rows and reports the number of affected rows.
// A failure consumed by an error handler reports 0 affected rows and no error.
func (p *Pipeline) Exec(ctx context.Context, cmd *sqlpipe.Command) (int64, error) {
	var rowsAffected int64

	err := p.execute(ctx, operationExec, cmd, func(c *call, session sqlpipe.Session, query string, args []any) error {
		c.stage = stageExecute

		start := time.Now()
		result, err := session.Exec(c.ctx, query, args...)
		if err != nil {
			return err
		}
		p.logQueryWithDuration(c, time.Since(start))

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}

		rowsAffected = affected
		c.rowCount = affected

		return nil
	})

	return rowsAffected, err
}

// ExecSQL wraps the SQL text into a fresh command and executes it.
func (p *Pipeline) ExecSQL(ctx context.Context, text string, parameters ...sqlpipe.Parameter) (int64, error) {
	return p.Exec(ctx, sqlpipe.NewCommand(text, parameters...))
}

// execute is the bracket shared by Map, Stream and Exec.
//
// Configuration errors are returned before anything is opened. The session is released by a deferred call,
// after the error handler ran. A close failure never replaces an execution error; it is only returned
// when the call would otherwise have succeeded.
func (p *Pipeline) execute(ctx context.Context, operation string, cmd *sqlpipe.Command, run runFunc) (err error) {
	if cmd == nil {
		return sqlpipe.ErrNoCommand
	}

	if !cmd.HasText() {
		return sqlpipe.ErrBlankCommandText
	}

	c := p.beginCall(ctx, operation)

	var handled bool
	defer func() {
		p.endCall(c, handled, err)
	}()

	if timeout := cmd.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		c.ctx, cancel = context.WithTimeout(c.ctx, timeout)
		defer cancel()
	}

	var session sqlpipe.Session
	defer func() {
		if session == nil {
			return
		}

		if closeErr := session.Close(); closeErr != nil {
			p.logWarn(c, logMsgCloseSessionFailed, closeErr)
			p.incrementCounter(c, metricCloseFailures, nil)

			if err == nil && c.completed {
				err = closeErr
			}
		}
	}()

	failing := cmd
	var execErr error

	c.stage = stageModify
	if active := p.commandModifier(cmd); active == nil {
		execErr = sqlpipe.ErrCommandModifierReturnedNil
	} else {
		failing = active
		execErr = p.openAndRun(c, active, &session, run)
	}

	if execErr != nil {
		handled, err = p.handleFailure(c, failing, execErr)
	}

	c.completed = true

	return err
}

func (p *Pipeline) openAndRun(c *call, cmd *sqlpipe.Command, session *sqlpipe.Session, run runFunc) error {
	if cmd.Connection() == nil {
		cmd.WithConnection(p.connection)
	}

	c.stage = stageOpen
	opened, err := cmd.Connection().Open(c.ctx)
	if err != nil {
		return err
	}
	*session = opened

	c.stage = stageBind
	query, args, err := cmd.Bind(opened.BindType())
	if err != nil {
		return err
	}
	c.query = query

	return run(c, opened, query, args)
}

// handleFailure offers the failure to the error handler chain. No handler means the failure propagates as it is.
func (p *Pipeline) handleFailure(c *call, cmd *sqlpipe.Command, failure error) (bool, error) {
	p.logError(c, logMsgExecutionFailed, failure)

	handler, ok := p.errorHandlerBuilder.SetCommand(cmd).CreateErrorHandler()
	if !ok {
		return false, failure
	}

	handler(failure)
	p.logOperation(c, logMsgErrorHandled)

	return true, nil
}

// queryRows runs the query and feeds the cursor to the consumer, one row at a time.
func (p *Pipeline) queryRows(consumer sqlpipe.RowConsumer) runFunc {
	return func(c *call, session sqlpipe.Session, query string, args []any) error {
		c.stage = stageExecute

		start := time.Now()
		rows, err := session.Query(c.ctx, query, args...)
		if err != nil {
			return err
		}
		p.logQueryWithDuration(c, time.Since(start))

		defer func() {
			if closeErr := rows.Close(); closeErr != nil {
				p.logWarn(c, logMsgCloseRowsFailed, closeErr)
			}
		}()

		row := sqlpipe.NewRow(rows)

		for {
			c.stage = stageFetch
			if !rows.Next() {
				break
			}

			c.stage = stageConsume
			if err := consumer.ConsumeRow(c.ctx, row); err != nil {
				return err
			}

			c.rowCount++
		}

		c.stage = stageFetch

		return rows.Err()
	}
}
