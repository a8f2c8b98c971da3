package sqlpipe

import "context"

// Row is the current row of a cursor as seen by a RowConsumer.
// It is only valid until the consumer returns.
type Row interface {
	Columns() ([]string, error)
	Scan(dest ...any) error

	// Values scans all columns into driver-native values.
	Values() ([]any, error)
}

// RowConsumer receives every row of a result set, in cursor order.
//
// ConsumeRow may block (e.g. on its own I/O); the next row is not fetched before it returns.
// A returned error aborts the iteration and is treated like any other execution failure.
type RowConsumer interface {
	ConsumeRow(ctx context.Context, row Row) error
}

// RowConsumerFunc adapts a function to RowConsumer.
type RowConsumerFunc func(ctx context.Context, row Row) error

// ConsumeRow calls f(ctx, row).
func (f RowConsumerFunc) ConsumeRow(ctx context.Context, row Row) error {
	return f(ctx, row)
}

// RowHandlerFunc adapts a plain synchronous callback to RowConsumer. It never fails.
type RowHandlerFunc func(row Row)

// ConsumeRow calls f(row).
func (f RowHandlerFunc) ConsumeRow(_ context.Context, row Row) error {
	f(row)
	return nil
}

// NewRow wraps a cursor positioned on a row.
func NewRow(rows Rows) Row {
	return cursorRow{rows: rows}
}

type cursorRow struct {
	rows Rows
}

func (r cursorRow) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r cursorRow) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r cursorRow) Values() ([]any, error) {
	columns, err := r.rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := r.rows.Scan(dest...); err != nil {
		return nil, err
	}

	return values, nil
}
