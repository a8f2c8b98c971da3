// Package sqlengine provides the query execution pipeline for sqlpipe commands.
//
// A Pipeline wraps one caller-owned connection handle (pgxpool.Pool, sql.DB, sqlx.DB or any
// sqlpipe.Connection) and runs every Map, Stream and Exec call through the same bracket:
// validate the command, apply the command modifier, open a session, execute, iterate the rows,
// route failures through the error handler chain, and release the session on every exit path.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Named parameters (:name) rebound to the driver's placeholder style
//   - Strictly ordered row delivery, one row in flight per call
//   - Pluggable error handler chain, propagation of the original error by default
//   - Streaming of serialized result sets with a default output for empty results
//   - Optional logging, metrics and tracing
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	pipeline, _ := sqlengine.NewPipelineFromPGXPool(db)
//
//	// With an error handler chain and logging
//	pipeline, _ := sqlengine.NewPipelineFromPGXPool(
//		db,
//		sqlengine.WithErrorHandlerBuilder(sqlpipe.NewErrorHandlerChain(
//			sqlpipe.NewLoggingErrorHandlerBuilder(logger),
//			sqlpipe.NewWriterErrorHandlerBuilder(w),
//		)),
//		sqlengine.WithLogger(logger),
//	)
//
//	err := pipeline.
//		Sql(sqlpipe.NewCommand("SELECT id, title FROM books WHERE author = :author")).
//		Param("author", sqlpipe.DBTypeString, "Le Guin").
//		Map(ctx, consumer)
//
//	err = pipeline.StreamText(ctx, sqlpipe.NewCommand("SELECT id, title FROM books"), w, "[]")
package sqlengine
