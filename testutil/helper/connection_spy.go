package helper

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// Events recorded by ConnectionSpy, in the order they happen.
const (
	EventOpen       = "open"
	EventQuery      = "query"
	EventExec       = "exec"
	EventFetch      = "fetch"
	EventCloseRows  = "close-rows"
	EventCloseConn  = "close"
	EventConsumePfx = "consume:"
)

// RecordedStatement is a statement the spy received, after parameter binding.
type RecordedStatement struct {
	Query string
	Args  []any
}

// ConnectionSpy is a scripted sqlpipe.Connection.
// It replays a fixed result set, can be told to fail at every step, and records opens, closes and statements.
type ConnectionSpy struct {
	dsn          string
	bindType     int
	columns      []string
	rows         [][]any
	rowsAffected int64

	openErr      error
	queryErr     error
	execErr      error
	iterationErr error
	closeErr     error

	mu         sync.Mutex
	events     []string
	statements []RecordedStatement
	opens      int
	closes     int
}

// NewConnectionSpy creates a ConnectionSpy with the given connection string and the question mark bind style.
func NewConnectionSpy(dsn string) *ConnectionSpy {
	return &ConnectionSpy{dsn: dsn, bindType: sqlx.QUESTION}
}

// WithBindType sets the sqlx bind type reported by the sessions.
func (c *ConnectionSpy) WithBindType(bindType int) *ConnectionSpy {
	c.bindType = bindType
	return c
}

// WithColumns sets the columns of the scripted result set.
func (c *ConnectionSpy) WithColumns(columns ...string) *ConnectionSpy {
	c.columns = columns
	return c
}

// WithRow appends a row to the scripted result set.
func (c *ConnectionSpy) WithRow(values ...any) *ConnectionSpy {
	c.rows = append(c.rows, values)
	return c
}

// WithRowsAffected sets what Exec reports.
func (c *ConnectionSpy) WithRowsAffected(rowsAffected int64) *ConnectionSpy {
	c.rowsAffected = rowsAffected
	return c
}

// FailOpenWith makes Open fail.
func (c *ConnectionSpy) FailOpenWith(err error) *ConnectionSpy {
	c.openErr = err
	return c
}

// FailQueryWith makes Query fail.
func (c *ConnectionSpy) FailQueryWith(err error) *ConnectionSpy {
	c.queryErr = err
	return c
}

// FailExecWith makes Exec fail.
func (c *ConnectionSpy) FailExecWith(err error) *ConnectionSpy {
	c.execErr = err
	return c
}

// FailIterationWith makes the cursor report err once all scripted rows were fetched.
func (c *ConnectionSpy) FailIterationWith(err error) *ConnectionSpy {
	c.iterationErr = err
	return c
}

// FailCloseWith makes closing the session fail.
func (c *ConnectionSpy) FailCloseWith(err error) *ConnectionSpy {
	c.closeErr = err
	return c
}

// ConnectionString implements sqlpipe.Connection.
func (c *ConnectionSpy) ConnectionString() string {
	return c.dsn
}

// Open implements sqlpipe.Connection.
func (c *ConnectionSpy) Open(ctx context.Context) (sqlpipe.Session, error) {
	c.RecordEvent(EventOpen)

	c.mu.Lock()
	c.opens++
	c.mu.Unlock()

	if c.openErr != nil {
		return nil, c.openErr
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &spySession{conn: c}, nil
}

// RecordEvent appends an event to the spy's timeline; consumers in tests use it to interleave their own events.
func (c *ConnectionSpy) RecordEvent(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)
}

// RecordConsumed records that the consumer handled row n.
func (c *ConnectionSpy) RecordConsumed(n int) {
	c.RecordEvent(fmt.Sprintf("%s%d", EventConsumePfx, n))
}

// GetEvents returns a copy of the recorded timeline.
func (c *ConnectionSpy) GetEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]string, len(c.events))
	copy(events, c.events)

	return events
}

// GetStatements returns a copy of the statements received by Query and Exec.
func (c *ConnectionSpy) GetStatements() []RecordedStatement {
	c.mu.Lock()
	defer c.mu.Unlock()

	statements := make([]RecordedStatement, len(c.statements))
	copy(statements, c.statements)

	return statements
}

// GetOpenCount returns how often Open was called.
func (c *ConnectionSpy) GetOpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.opens
}

// GetCloseCount returns how often a session was closed.
func (c *ConnectionSpy) GetCloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closes
}

func (c *ConnectionSpy) recordStatement(query string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statements = append(c.statements, RecordedStatement{Query: query, Args: args})
}

type spySession struct {
	conn *ConnectionSpy
}

func (s *spySession) Query(ctx context.Context, query string, args ...any) (sqlpipe.Rows, error) {
	s.conn.RecordEvent(EventQuery)
	s.conn.recordStatement(query, args)

	if s.conn.queryErr != nil {
		return nil, s.conn.queryErr
	}

	return &spyRows{ctx: ctx, conn: s.conn, position: -1}, nil
}

func (s *spySession) Exec(_ context.Context, query string, args ...any) (sqlpipe.Result, error) {
	s.conn.RecordEvent(EventExec)
	s.conn.recordStatement(query, args)

	if s.conn.execErr != nil {
		return nil, s.conn.execErr
	}

	return spyResult(s.conn.rowsAffected), nil
}

func (s *spySession) BindType() int {
	return s.conn.bindType
}

func (s *spySession) Close() error {
	s.conn.RecordEvent(EventCloseConn)

	s.conn.mu.Lock()
	s.conn.closes++
	s.conn.mu.Unlock()

	return s.conn.closeErr
}

type spyRows struct {
	ctx      context.Context
	conn     *ConnectionSpy
	position int
	err      error
}

func (r *spyRows) Next() bool {
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return false
	}

	if r.position+1 >= len(r.conn.rows) {
		r.err = r.conn.iterationErr
		return false
	}

	r.position++
	r.conn.RecordEvent(EventFetch)

	return true
}

func (r *spyRows) Scan(dest ...any) error {
	row := r.conn.rows[r.position]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destination arguments in Scan, not %d", len(row), len(dest))
	}

	for i, value := range row {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("destination %d is not a pointer", i)
		}

		elem := target.Elem()
		if value == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}

		source := reflect.ValueOf(value)
		switch {
		case source.Type().AssignableTo(elem.Type()):
			elem.Set(source)
		case source.Type().ConvertibleTo(elem.Type()):
			elem.Set(source.Convert(elem.Type()))
		default:
			return fmt.Errorf("can not scan %T into %s", value, elem.Type())
		}
	}

	return nil
}

func (r *spyRows) Columns() ([]string, error) {
	return r.conn.columns, nil
}

func (r *spyRows) Err() error {
	return r.err
}

func (r *spyRows) Close() error {
	r.conn.RecordEvent(EventCloseRows)
	return nil
}

type spyResult int64

func (r spyResult) RowsAffected() (int64, error) {
	return int64(r), nil
}
