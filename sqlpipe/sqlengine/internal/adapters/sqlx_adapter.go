package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// SQLXAdapter implements sqlpipe.Connection for sqlx.DB.
type SQLXAdapter struct {
	db  *sqlx.DB
	dsn string
}

// NewSQLXAdapter creates a new SQLX adapter.
func NewSQLXAdapter(db *sqlx.DB, dsn string) *SQLXAdapter {
	return &SQLXAdapter{db: db, dsn: dsn}
}

// ConnectionString returns the DSN supplied at construction.
func (a *SQLXAdapter) ConnectionString() string {
	return a.dsn
}

// Open takes a dedicated connection out of the sqlx.DB pool.
func (a *SQLXAdapter) Open(ctx context.Context) (sqlpipe.Session, error) {
	conn, err := a.db.Connx(ctx)
	if err != nil {
		return nil, err
	}

	return &sqlxSession{conn: conn, bindType: sqlx.BindType(a.db.DriverName())}, nil
}

type sqlxSession struct {
	conn     *sqlx.Conn
	bindType int
}

func (s *sqlxSession) Query(ctx context.Context, query string, args ...any) (sqlpipe.Rows, error) {
	rows, err := s.conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *sqlxSession) Exec(ctx context.Context, query string, args ...any) (sqlpipe.Result, error) {
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *sqlxSession) BindType() int {
	return s.bindType
}

func (s *sqlxSession) Close() error {
	return s.conn.Close()
}
