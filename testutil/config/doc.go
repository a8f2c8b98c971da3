// Package config provides PostgreSQL database configuration for the sqlpipe integration tests.
//
// This package contains factory functions for creating database connections
// using the supported adapters (pgx.Pool, sql.DB, sqlx.DB). The DSN is read from
// the SQLPIPE_TEST_DSN environment variable; integration tests are skipped when it is not set.
package config
