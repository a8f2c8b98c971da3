package sqlpipe

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/valyala/bytebufferpool"
)

// RowSerializer renders a row sequence into an output sink.
//
// Begin is only called once the first row exists, so an empty result set leaves the sink untouched
// and the pipeline can write the default output instead. Implementations must be stateless.
type RowSerializer interface {
	Begin(w io.Writer) error
	WriteRow(w io.Writer, index int, row Row) error
	End(w io.Writer) error
}

var (
	jsonArrayStart = []byte{'['}
	jsonArrayEnd   = []byte{']'}
	jsonSeparator  = []byte{','}
)

/***** JSON array *****/

// JSONArraySerializer writes the rows as a JSON array of objects keyed by column name, in column order.
type JSONArraySerializer struct{}

// Begin writes the opening bracket.
func (JSONArraySerializer) Begin(w io.Writer) error {
	_, err := w.Write(jsonArrayStart)
	return err
}

// WriteRow renders the row into a pooled buffer and writes it to w in one piece.
func (JSONArraySerializer) WriteRow(w io.Writer, index int, row Row) error {
	columns, err := row.Columns()
	if err != nil {
		return err
	}

	values, err := row.Values()
	if err != nil {
		return err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if index > 0 {
		_, _ = buf.Write(jsonSeparator)
	}

	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(buf)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, column := range columns {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(column)
		stream.WriteVal(jsonValue(values[i]))
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return errors.Join(ErrSerializingRowFailed, stream.Error)
	}

	if err := stream.Flush(); err != nil {
		return errors.Join(ErrSerializingRowFailed, err)
	}

	_, err = buf.WriteTo(w)

	return err
}

// End writes the closing bracket.
func (JSONArraySerializer) End(w io.Writer) error {
	_, err := w.Write(jsonArrayEnd)
	return err
}

// jsonValue maps driver-native values to what reads naturally in JSON.
func jsonValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case [16]byte:
		return uuid.UUID(v).String()
	case decimal.Decimal:
		return jsoniter.Number(v.String())
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}

	return value
}

/***** Raw column *****/

// RawColumnSerializer writes the first column of every row verbatim.
// It suits queries that already produce serialized chunks, e.g. SELECT json_agg(...) or FOR JSON.
type RawColumnSerializer struct{}

// Begin writes nothing.
func (RawColumnSerializer) Begin(_ io.Writer) error {
	return nil
}

// WriteRow writes the first column of the row.
func (RawColumnSerializer) WriteRow(w io.Writer, _ int, row Row) error {
	values, err := row.Values()
	if err != nil {
		return err
	}

	if len(values) == 0 || values[0] == nil {
		return nil
	}

	switch v := values[0].(type) {
	case []byte:
		_, err = w.Write(v)
	case string:
		_, err = io.WriteString(w, v)
	default:
		_, err = fmt.Fprint(w, v)
	}

	return err
}

// End writes nothing.
func (RawColumnSerializer) End(_ io.Writer) error {
	return nil
}
