package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// SQLAdapter implements sqlpipe.Connection for sql.DB.
// sql.DB does not expose its DSN, so it is supplied together with the driver name.
type SQLAdapter struct {
	db       *sql.DB
	dsn      string
	bindType int
}

// NewSQLAdapter creates a new SQL adapter; driverName selects the placeholder style (see sqlx.BindType).
func NewSQLAdapter(db *sql.DB, driverName, dsn string) *SQLAdapter {
	return &SQLAdapter{db: db, dsn: dsn, bindType: sqlx.BindType(driverName)}
}

// ConnectionString returns the DSN supplied at construction.
func (a *SQLAdapter) ConnectionString() string {
	return a.dsn
}

// Open takes a dedicated connection out of the sql.DB pool.
func (a *SQLAdapter) Open(ctx context.Context) (sqlpipe.Session, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &sqlSession{conn: conn, bindType: a.bindType}, nil
}

type sqlSession struct {
	conn     *sql.Conn
	bindType int
}

func (s *sqlSession) Query(ctx context.Context, query string, args ...any) (sqlpipe.Rows, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *sqlSession) Exec(ctx context.Context, query string, args ...any) (sqlpipe.Result, error) {
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *sqlSession) BindType() int {
	return s.bindType
}

// Close returns the connection to the sql.DB pool.
func (s *sqlSession) Close() error {
	return s.conn.Close()
}
