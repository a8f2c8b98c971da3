package sqlpipe

import "context"

// Connection is the database connection handle a pipeline is constructed with.
//
// It is owned by the caller. A pipeline opens one Session per Map, Stream or Exec call and closes it
// when the call returns, it never closes the Connection itself.
type Connection interface {
	// ConnectionString returns the connection string (DSN) the handle was configured with.
	ConnectionString() string

	// Open acquires a dedicated session from the underlying driver.
	Open(ctx context.Context) (Session, error)
}

// Session is one opened connection, valid for a single pipeline call.
type Session interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Exec(ctx context.Context, query string, args ...any) (Result, error)

	// BindType returns the sqlx bind type (sqlx.QUESTION, sqlx.DOLLAR, ...) used to rebind named parameters.
	BindType() int

	// Close releases the session back to the driver.
	Close() error
}

// Rows is the row cursor returned by Session.Query.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// Result is returned by Session.Exec.
type Result interface {
	RowsAffected() (int64, error)
}
