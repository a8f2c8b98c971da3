package sqlpipe

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

// DBType enumerates the database types a Parameter value is normalised to before binding.
type DBType int

const (
	// DBTypeObject passes the value to the driver unchanged.
	DBTypeObject DBType = iota
	DBTypeString
	DBTypeAnsiString
	DBTypeInt16
	DBTypeInt32
	DBTypeInt64
	DBTypeBoolean
	DBTypeDouble
	DBTypeDecimal
	DBTypeDateTime
	DBTypeGuid
	DBTypeBinary
	DBTypeJSON
)

var dbTypeNames = map[DBType]string{
	DBTypeObject:     "object",
	DBTypeString:     "string",
	DBTypeAnsiString: "ansi_string",
	DBTypeInt16:      "int16",
	DBTypeInt32:      "int32",
	DBTypeInt64:      "int64",
	DBTypeBoolean:    "boolean",
	DBTypeDouble:     "double",
	DBTypeDecimal:    "decimal",
	DBTypeDateTime:   "datetime",
	DBTypeGuid:       "guid",
	DBTypeBinary:     "binary",
	DBTypeJSON:       "json",
}

func (t DBType) String() string {
	if name, ok := dbTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("dbtype(%d)", int(t))
}

// ParseDBType is the inverse of DBType.String.
func ParseDBType(name string) (DBType, bool) {
	for dbType, dbTypeName := range dbTypeNames {
		if dbTypeName == name {
			return dbType, true
		}
	}

	return DBTypeObject, false
}

// Parameter is a named, typed bind value attached to a Command.
//
// Size limits String, AnsiString (characters) and Binary (bytes) values; longer values are truncated.
// A Size of 0 leaves the length to the driver.
type Parameter struct {
	Name  string
	Type  DBType
	Value any
	Size  int
}

// Parameters is the ordered parameter set of a Command.
type Parameters = []Parameter

// NewParameter is a factory method for Parameter.
func NewParameter(name string, dbType DBType, value any, size int) Parameter {
	return Parameter{Name: name, Type: dbType, Value: value, Size: size}
}

// BindValue returns the value in the shape handed to the driver.
// A nil Value always binds as SQL NULL.
func (p Parameter) BindValue() (any, error) {
	if p.Value == nil {
		return nil, nil
	}

	value, err := p.normalize()
	if err != nil {
		return nil, errors.Join(ErrInvalidParameterValue, fmt.Errorf("parameter %q (%s): %w", p.Name, p.Type, err))
	}

	return value, nil
}

func (p Parameter) normalize() (any, error) {
	switch p.Type {
	case DBTypeObject:
		return p.Value, nil

	case DBTypeString, DBTypeAnsiString:
		s, err := toString(p.Value)
		if err != nil {
			return nil, err
		}
		return truncateRunes(s, p.Size), nil

	case DBTypeInt16:
		return toBoundedInt[int16](p.Value, math.MinInt16, math.MaxInt16)

	case DBTypeInt32:
		return toBoundedInt[int32](p.Value, math.MinInt32, math.MaxInt32)

	case DBTypeInt64:
		return toBoundedInt[int64](p.Value, math.MinInt64, math.MaxInt64)

	case DBTypeBoolean:
		if b, ok := p.Value.(bool); ok {
			return b, nil
		}

	case DBTypeDouble:
		switch v := p.Value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		}
		if i, err := toBoundedInt[int64](p.Value, math.MinInt64, math.MaxInt64); err == nil {
			return float64(i), nil
		}

	case DBTypeDecimal:
		return toDecimal(p.Value)

	case DBTypeDateTime:
		if t, ok := p.Value.(time.Time); ok {
			return t, nil
		}

	case DBTypeGuid:
		switch v := p.Value.(type) {
		case uuid.UUID:
			return v, nil
		case [16]byte:
			return uuid.UUID(v), nil
		case string:
			return uuid.Parse(v)
		}

	case DBTypeBinary:
		if b, ok := p.Value.([]byte); ok {
			if p.Size > 0 && len(b) > p.Size {
				return b[:p.Size], nil
			}
			return b, nil
		}

	case DBTypeJSON:
		return toJSON(p.Value)

	default:
		return nil, fmt.Errorf("unknown db type %d", int(p.Type))
	}

	return nil, fmt.Errorf("unsupported value type %T", p.Value)
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	return "", fmt.Errorf("unsupported value type %T", value)
}

func truncateRunes(s string, size int) string {
	if size <= 0 || utf8.RuneCountInString(s) <= size {
		return s
	}

	return string([]rune(s)[:size])
}

type boundedInt interface {
	~int16 | ~int32 | ~int64
}

func toBoundedInt[T boundedInt](value any, minVal, maxVal int64) (T, error) {
	var i int64

	switch v := value.(type) {
	case int:
		i = int64(v)
	case int8:
		i = int64(v)
	case int16:
		i = int64(v)
	case int32:
		i = int64(v)
	case int64:
		i = v
	case uint8:
		i = int64(v)
	case uint16:
		i = int64(v)
	case uint32:
		i = int64(v)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range", v)
		}
		i = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range", v)
		}
		i = int64(v)
	default:
		return 0, fmt.Errorf("unsupported value type %T", value)
	}

	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", i, minVal, maxVal)
	}

	return T(i), nil
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	}

	i, err := toBoundedInt[int64](value, math.MinInt64, math.MaxInt64)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return decimal.NewFromInt(i), nil
}

func toJSON(value any) (string, error) {
	var raw []byte

	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case jsoniter.RawMessage:
		raw = v
	default:
		encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}

	if !jsoniter.ConfigFastest.Valid(raw) {
		return "", errors.New("value is not valid json")
	}

	return string(raw), nil
}
