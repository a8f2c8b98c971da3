// Package pipelinewrapper runs integration tests against a real PostgreSQL database with the adapter
// selected by the ADAPTER_TYPE environment variable.
package pipelinewrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe/sqlengine"
	"github.com/AntonStoeckl/sqlpipe-go/testutil/config"
)

// Adapter type constants
const (
	typePGXPool = "pgxpool"
	typeSQLDB   = "sqldb"
	typeSQLX    = "sqlx"
)

// BooksTable is created by CreateWrapperWithTestConfig and dropped by Close.
const BooksTable = "sqlpipe_books"

// Wrapper interface to abstract over different adapter types
type Wrapper interface {
	GetPipeline() *sqlengine.Pipeline
	Exec(t testing.TB, query string)
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool     *pgxpool.Pool
	pipeline *sqlengine.Pipeline
}

// GetPipeline returns the pipeline under test.
func (w *PGXPoolWrapper) GetPipeline() *sqlengine.Pipeline {
	return w.pipeline
}

// Exec runs a statement directly on the pool, bypassing the pipeline.
func (w *PGXPoolWrapper) Exec(t testing.TB, query string) {
	_, err := w.pool.Exec(context.Background(), query)
	assert.NoError(t, err, "error in arranging test data")
}

// Close drops the test table and closes the pool.
func (w *PGXPoolWrapper) Close() {
	_, _ = w.pool.Exec(context.Background(), dropBooksTable)
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db       *sql.DB
	pipeline *sqlengine.Pipeline
}

// GetPipeline returns the pipeline under test.
func (w *SQLDBWrapper) GetPipeline() *sqlengine.Pipeline {
	return w.pipeline
}

// Exec runs a statement directly on the database, bypassing the pipeline.
func (w *SQLDBWrapper) Exec(t testing.TB, query string) {
	_, err := w.db.Exec(query)
	assert.NoError(t, err, "error in arranging test data")
}

// Close drops the test table and closes the database.
func (w *SQLDBWrapper) Close() {
	_, _ = w.db.Exec(dropBooksTable)
	_ = w.db.Close()
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db       *sqlx.DB
	pipeline *sqlengine.Pipeline
}

// GetPipeline returns the pipeline under test.
func (w *SQLXWrapper) GetPipeline() *sqlengine.Pipeline {
	return w.pipeline
}

// Exec runs a statement directly on the database, bypassing the pipeline.
func (w *SQLXWrapper) Exec(t testing.TB, query string) {
	_, err := w.db.Exec(query)
	assert.NoError(t, err, "error in arranging test data")
}

// Close drops the test table and closes the database.
func (w *SQLXWrapper) Close() {
	_, _ = w.db.Exec(dropBooksTable)
	_ = w.db.Close()
}

const (
	createBooksTable = `CREATE TABLE IF NOT EXISTS ` + BooksTable + ` (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		published INT NOT NULL
	)`
	truncateBooksTable = `TRUNCATE TABLE ` + BooksTable
	dropBooksTable     = `DROP TABLE IF EXISTS ` + BooksTable
)

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the ADAPTER_TYPE environment variable.
// The test is skipped when no integration test database is configured.
func CreateWrapperWithTestConfig(t testing.TB, options ...sqlengine.Option) Wrapper {
	dsn := config.RequirePostgresTestDSN(t)
	adapterTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	var wrapper Wrapper

	switch adapterTypeFromEnv {
	case typePGXPool, "":
		pool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig(dsn))
		require.NoError(t, err, "error connecting to DB pool in test setup")
		pipeline, err := sqlengine.NewPipelineFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating the pipeline in test setup")

		wrapper = &PGXPoolWrapper{pool: pool, pipeline: pipeline}

	case typeSQLDB:
		db := config.PostgresSQLDBTestConfig(dsn)
		pipeline, err := sqlengine.NewPipelineFromSQLDB(db, config.PostgresDriverName, dsn, options...)
		require.NoError(t, err, "error creating the pipeline in test setup")

		wrapper = &SQLDBWrapper{db: db, pipeline: pipeline}

	case typeSQLX:
		db := config.PostgresSQLXTestConfig(dsn)
		pipeline, err := sqlengine.NewPipelineFromSQLX(db, dsn, options...)
		require.NoError(t, err, "error creating the pipeline in test setup")

		wrapper = &SQLXWrapper{db: db, pipeline: pipeline}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv))
	}

	wrapper.Exec(t, createBooksTable)
	wrapper.Exec(t, truncateBooksTable)

	return wrapper
}
