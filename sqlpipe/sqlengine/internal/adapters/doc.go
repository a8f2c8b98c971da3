// Package adapters provide the connection handle implementations for the sql engine.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. Each adapter opens one dedicated connection per pipeline call
// (Acquire / Conn / Connx) and releases it back to the library's pool on Close, so pooling policy
// stays with the underlying library.
package adapters
