package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

var (
	errNoQuery              = errors.New("no query given, pass the sql text as argument or use -table")
	errQueryAndTable        = errors.New("sql text and -table can not be combined")
	errMalformedParam       = errors.New("malformed parameter, use name:type=value")
	errUnknownParamType     = errors.New("unknown parameter type")
	errParamsWithTable      = errors.New("-param can not be combined with -table")
	errUnparsableParamValue = errors.New("parameter value can not be parsed")
)

// paramFlags collects repeated -param flags.
type paramFlags []string

func (p *paramFlags) String() string {
	return strings.Join(*p, ",")
}

func (p *paramFlags) Set(value string) error {
	*p = append(*p, value)
	return nil
}

// buildCommand renders either the given SQL text with its parameters or a SELECT over table.
func buildCommand(text, table string, limit uint, params []string, timeout time.Duration) (*sqlpipe.Command, error) {
	var cmd *sqlpipe.Command

	switch {
	case text != "" && table != "":
		return nil, errQueryAndTable

	case table != "":
		if len(params) > 0 {
			return nil, errParamsWithTable
		}

		dataset := goqu.Dialect("postgres").From(table).Prepared(true)
		if limit > 0 {
			dataset = dataset.Limit(limit)
		}

		built, err := sqlpipe.CommandFromSQLBuilder(dataset)
		if err != nil {
			return nil, err
		}
		cmd = built

	case strings.TrimSpace(text) != "":
		cmd = sqlpipe.NewCommand(text)
		for _, raw := range params {
			parameter, err := parseParam(raw)
			if err != nil {
				return nil, err
			}
			cmd.AddParameter(parameter)
		}

	default:
		return nil, errNoQuery
	}

	if timeout > 0 {
		cmd.WithTimeout(timeout)
	}

	return cmd, nil
}

// parseParam parses name:type=value, e.g. year:int32=1969. Without a type the value binds as a string.
func parseParam(raw string) (sqlpipe.Parameter, error) {
	key, value, found := strings.Cut(raw, "=")
	if !found || key == "" {
		return sqlpipe.Parameter{}, fmt.Errorf("%w: %q", errMalformedParam, raw)
	}

	name, typeName, typed := strings.Cut(key, ":")
	dbType := sqlpipe.DBTypeString
	if typed {
		parsed, ok := sqlpipe.ParseDBType(typeName)
		if !ok {
			return sqlpipe.Parameter{}, fmt.Errorf("%w: %q", errUnknownParamType, typeName)
		}
		dbType = parsed
	}

	converted, err := convertParamValue(dbType, value)
	if err != nil {
		return sqlpipe.Parameter{}, errors.Join(errUnparsableParamValue, fmt.Errorf("parameter %q: %w", name, err))
	}

	return sqlpipe.NewParameter(name, dbType, converted, 0), nil
}

// convertParamValue turns command line text into the Go type the DBType normalisation accepts.
func convertParamValue(dbType sqlpipe.DBType, value string) (any, error) {
	switch dbType {
	case sqlpipe.DBTypeInt16, sqlpipe.DBTypeInt32, sqlpipe.DBTypeInt64:
		return strconv.ParseInt(value, 10, 64)
	case sqlpipe.DBTypeBoolean:
		return strconv.ParseBool(value)
	case sqlpipe.DBTypeDouble:
		return strconv.ParseFloat(value, 64)
	case sqlpipe.DBTypeDateTime:
		return time.Parse(time.RFC3339, value)
	case sqlpipe.DBTypeBinary:
		return []byte(value), nil
	default:
		return value, nil
	}
}
