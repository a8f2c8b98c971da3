package sqlpipe

import "context"

// Statement is the capability set every command-bound builder exposes.
type Statement interface {
	// SetCommand binds the command for the next execution.
	SetCommand(cmd *Command)

	// AddParameter attaches a parameter to the bound command, or to the next one bound.
	AddParameter(parameter Parameter)
}

// QueryMapper executes a bound command and hands each row to a RowConsumer.
//
// Sql and Param return the QueryMapper itself for chaining. Validation of the bound command happens in Map,
// so the chain can be completed in any order before executing it.
type QueryMapper interface {
	Statement
	Sql(cmd *Command) QueryMapper //nolint:revive // mirrors the SQL builder vocabulary
	Param(name string, dbType DBType, value any, size ...int) QueryMapper
	Map(ctx context.Context, consumer RowConsumer) error
}
