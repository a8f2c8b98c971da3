package sqlpipe

import "errors"

// Configuration errors. They are returned before any I/O takes place and never reach an ErrorHandler.
var (
	// ErrNilConnection is returned when a pipeline is constructed without a connection handle.
	ErrNilConnection = errors.New("connection is not defined")

	// ErrBlankConnectionString is returned when the connection handle carries a blank connection string.
	ErrBlankConnectionString = errors.New("connection string is not set")

	// ErrNoCommand is returned when Map, Stream or Exec is called without a bound command.
	ErrNoCommand = errors.New("command is not defined")

	// ErrBlankCommandText is returned when the bound command has no SQL text.
	ErrBlankCommandText = errors.New("command sql text is not set")

	// ErrNilRowConsumer is returned when Map is called without a row consumer.
	ErrNilRowConsumer = errors.New("row consumer is not defined")

	// ErrNilOutput is returned when Stream is called without an output sink.
	ErrNilOutput = errors.New("output sink is not defined")

	// ErrNilErrorHandlerBuilder is returned by WithErrorHandlerBuilder when nil is supplied.
	ErrNilErrorHandlerBuilder = errors.New("error handler builder must not be nil")

	// ErrNilRowSerializer is returned by WithRowSerializer when nil is supplied.
	ErrNilRowSerializer = errors.New("row serializer must not be nil")
)

// Execution errors raised by the pipeline itself, as opposed to the ones reported by the driver.
// They are offered to the ErrorHandlerBuilder like any driver error.
var (
	// ErrBindingParametersFailed is joined with the cause when named parameters cannot be bound.
	ErrBindingParametersFailed = errors.New("binding command parameters failed")

	// ErrDuplicateParameter is returned at execute time when two parameters share a name.
	ErrDuplicateParameter = errors.New("duplicate parameter name")

	// ErrMixedParameterStyles is returned at execute time when a command carries both named parameters and positional args.
	ErrMixedParameterStyles = errors.New("named parameters and positional args can not be mixed")

	// ErrInvalidParameterValue is joined with the cause when a value does not fit its DBType.
	ErrInvalidParameterValue = errors.New("parameter value does not match its db type")

	// ErrCommandModifierReturnedNil is returned when a CommandModifier drops the command.
	ErrCommandModifierReturnedNil = errors.New("command modifier returned no command")

	// ErrSerializingRowFailed is joined with the cause when a row can not be serialized to the output sink.
	ErrSerializingRowFailed = errors.New("serializing row failed")

	// ErrBuildingCommandFailed is joined with the cause when a query builder can not render its SQL.
	ErrBuildingCommandFailed = errors.New("building command from sql expression failed")
)
