package sqlpipe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Command describes one SQL statement: its text, its parameters and an optional connection override.
//
// A Command is built for one logical query, consumed by exactly one pipeline call and discarded afterward.
// Parameters are referenced in the text with the named syntax :name.
type Command struct {
	text       string
	parameters Parameters
	args       []any
	connection Connection
	timeout    time.Duration
}

// SQLBuilder is implemented by query builders that render themselves to SQL, e.g. goqu datasets.
type SQLBuilder interface {
	ToSQL() (string, []any, error)
}

// NewCommand is a factory method for Command.
func NewCommand(text string, parameters ...Parameter) *Command {
	return &Command{
		text:       text,
		parameters: append(Parameters{}, parameters...),
	}
}

// CommandFromSQLBuilder renders a query builder into a Command.
// Prepared builders contribute their positional args, non-prepared ones inline all values into the text.
func CommandFromSQLBuilder(builder SQLBuilder) (*Command, error) {
	text, args, err := builder.ToSQL()
	if err != nil {
		return nil, errors.Join(ErrBuildingCommandFailed, err)
	}

	cmd := NewCommand(text)
	cmd.args = args

	return cmd, nil
}

// Text returns the SQL text.
func (c *Command) Text() string {
	return c.text
}

// Parameters returns the named parameters in the order they were added.
func (c *Command) Parameters() Parameters {
	return c.parameters
}

// Args returns the positional args supplied by a prepared SQLBuilder.
func (c *Command) Args() []any {
	return c.args
}

// Connection returns the connection override, nil if the pipeline's connection is to be used.
func (c *Command) Connection() Connection {
	return c.connection
}

// Timeout returns the per-call timeout, 0 meaning none.
func (c *Command) Timeout() time.Duration {
	return c.timeout
}

// WithConnection overrides the pipeline's connection for this command.
func (c *Command) WithConnection(conn Connection) *Command {
	c.connection = conn
	return c
}

// WithTimeout bounds the whole pipeline call (open, execute, iterate) for this command.
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	c.timeout = timeout
	return c
}

// WithText replaces the SQL text, e.g. from a CommandModifier.
func (c *Command) WithText(text string) *Command {
	c.text = text
	return c
}

// AddParameter appends a named parameter. Names are not checked for uniqueness here.
func (c *Command) AddParameter(parameter Parameter) *Command {
	c.parameters = append(c.parameters, parameter)
	return c
}

// Param appends a named parameter built from its parts.
func (c *Command) Param(name string, dbType DBType, value any, size int) *Command {
	return c.AddParameter(NewParameter(name, dbType, value, size))
}

// HasText reports whether the command carries non-blank SQL text.
func (c *Command) HasText() bool {
	return strings.TrimSpace(c.text) != ""
}

// Bind renders the SQL text and the positional args for the given sqlx bind type.
func (c *Command) Bind(bindType int) (string, []any, error) {
	if len(c.parameters) == 0 {
		return c.text, c.args, nil
	}

	if len(c.args) > 0 {
		return "", nil, ErrMixedParameterStyles
	}

	named := make(map[string]any, len(c.parameters))
	for _, parameter := range c.parameters {
		if _, exists := named[parameter.Name]; exists {
			return "", nil, fmt.Errorf("%w: %q", ErrDuplicateParameter, parameter.Name)
		}

		value, err := parameter.BindValue()
		if err != nil {
			return "", nil, err
		}

		named[parameter.Name] = value
	}

	query, args, err := sqlx.Named(c.text, named)
	if err != nil {
		return "", nil, errors.Join(ErrBindingParametersFailed, err)
	}

	return sqlx.Rebind(bindType, query), args, nil
}
