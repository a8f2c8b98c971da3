// Package sqlpipe provides the core abstractions for executing parameterized SQL commands
// and handing every result row to caller-supplied logic, or streaming a serialized result set into an output sink.
//
// This package is driver-agnostic. It defines the command descriptor, the connection handle interfaces
// implemented by the engine's adapters, the error handler chain, row serializers and the
// dependency-free observability interfaces.
//
// Key types:
//   - Command: SQL text, named parameters (:name), optional connection override and timeout
//   - Parameter / DBType: typed bind values, normalised before binding
//   - RowConsumer: receives each row in cursor order, may block on its own I/O
//   - ErrorHandlerBuilder: yields an optional ErrorHandler for a failing command; none means propagate
//   - RowSerializer: JSONArraySerializer (default) and RawColumnSerializer
//   - Options: the default output of a Stream call when the result set is empty
//
// Common usage pattern:
//
//	pipeline, err := sqlengine.NewPipelineFromPGXPool(pool, sqlengine.WithLogger(slog.Default()))
//	if err != nil {
//		// handle error
//	}
//
//	cmd := sqlpipe.NewCommand("SELECT id, title FROM books WHERE author = :author")
//	err = pipeline.
//		Sql(cmd).
//		Param("author", sqlpipe.DBTypeString, "Le Guin").
//		Map(ctx, sqlpipe.RowHandlerFunc(func(row sqlpipe.Row) {
//			// scan the row
//		}))
//
//	err = pipeline.Stream(ctx, cmd, w, sqlpipe.NewOptions("[]"))
package sqlpipe
