package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// PGXAdapter implements sqlpipe.Connection for pgxpool.Pool.
type PGXAdapter struct {
	pool *pgxpool.Pool
}

// NewPGXAdapter creates a new PGX adapter.
func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool}
}

// ConnectionString returns the connection string the pool was parsed from.
func (p *PGXAdapter) ConnectionString() string {
	return p.pool.Config().ConnString()
}

// Open acquires a connection from the pool.
func (p *PGXAdapter) Open(ctx context.Context) (sqlpipe.Session, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return &pgxSession{conn: conn}, nil
}

// pgxSession wraps one acquired pool connection.
type pgxSession struct {
	conn *pgxpool.Conn
}

func (s *pgxSession) Query(ctx context.Context, query string, args ...any) (sqlpipe.Rows, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &pgxRows{rows: rows}, nil
}

func (s *pgxSession) Exec(ctx context.Context, query string, args ...any) (sqlpipe.Result, error) {
	tag, err := s.conn.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgxResult{tag: tag}, nil
}

// BindType is always sqlx.DOLLAR, pgx speaks the Postgres wire protocol.
func (s *pgxSession) BindType() int {
	return sqlx.DOLLAR
}

// Close releases the connection back to the pool.
func (s *pgxSession) Close() error {
	s.conn.Release()
	return nil
}

// pgxRows wraps pgx.Rows to implement the sqlpipe.Rows interface.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool {
	return r.rows.Next()
}

func (r *pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *pgxRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name
	}

	return columns, nil
}

func (r *pgxRows) Err() error {
	return r.rows.Err()
}

// Close closes the rows iterator; pgx reports deferred errors through Err.
func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}

// pgxResult wraps pgconn.CommandTag to implement the sqlpipe.Result interface.
type pgxResult struct {
	tag pgconn.CommandTag
}

func (r pgxResult) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}
