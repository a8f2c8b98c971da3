package sqlpipe

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

// ErrorHandler consumes an execution failure instead of letting it propagate to the caller.
type ErrorHandler func(err error)

// ErrorHandlerBuilder produces the ErrorHandler for one failing command.
//
// CreateErrorHandler returns ok == false when no handler exists, which means:
// propagate the original error unchanged.
type ErrorHandlerBuilder interface {
	SetCommand(cmd *Command) ErrorHandlerBuilder
	CreateErrorHandler() (handler ErrorHandler, ok bool)
}

/***** Rethrow *****/

// RethrowErrorHandlerBuilder never produces a handler, so every failure propagates.
type RethrowErrorHandlerBuilder struct{}

// SetCommand is a no-op.
func (b RethrowErrorHandlerBuilder) SetCommand(_ *Command) ErrorHandlerBuilder {
	return b
}

// CreateErrorHandler always reports that there is no handler.
func (b RethrowErrorHandlerBuilder) CreateErrorHandler() (ErrorHandler, bool) {
	return nil, false
}

/***** Func *****/

// ErrorHandlerBuilderFunc builds a handler from the failing command; returning nil means propagate.
type ErrorHandlerBuilderFunc func(cmd *Command) ErrorHandler

// SetCommand binds the failing command.
func (f ErrorHandlerBuilderFunc) SetCommand(cmd *Command) ErrorHandlerBuilder {
	return &boundErrorHandlerBuilderFunc{build: f, cmd: cmd}
}

// CreateErrorHandler without a bound command calls f(nil).
func (f ErrorHandlerBuilderFunc) CreateErrorHandler() (ErrorHandler, bool) {
	return optionalHandler(f(nil))
}

type boundErrorHandlerBuilderFunc struct {
	build ErrorHandlerBuilderFunc
	cmd   *Command
}

func (b *boundErrorHandlerBuilderFunc) SetCommand(cmd *Command) ErrorHandlerBuilder {
	b.cmd = cmd
	return b
}

func (b *boundErrorHandlerBuilderFunc) CreateErrorHandler() (ErrorHandler, bool) {
	return optionalHandler(b.build(b.cmd))
}

func optionalHandler(handler ErrorHandler) (ErrorHandler, bool) {
	if handler == nil {
		return nil, false
	}

	return handler, true
}

/***** Logging *****/

// LoggingErrorHandlerBuilder logs the failing command and the error at error level and swallows the error.
type LoggingErrorHandlerBuilder struct {
	logger Logger
	cmd    *Command
}

// NewLoggingErrorHandlerBuilder is a factory method for LoggingErrorHandlerBuilder.
func NewLoggingErrorHandlerBuilder(logger Logger) *LoggingErrorHandlerBuilder {
	return &LoggingErrorHandlerBuilder{logger: logger}
}

// SetCommand binds the failing command.
func (b *LoggingErrorHandlerBuilder) SetCommand(cmd *Command) ErrorHandlerBuilder {
	b.cmd = cmd
	return b
}

// CreateErrorHandler returns no handler when no logger is configured.
func (b *LoggingErrorHandlerBuilder) CreateErrorHandler() (ErrorHandler, bool) {
	if b.logger == nil {
		return nil, false
	}

	text := commandText(b.cmd)

	return func(err error) {
		b.logger.Error("sql command failed", "error", err.Error(), "query", text)
	}, true
}

/***** Writer *****/

// WriterErrorHandlerBuilder writes a JSON error document to an output sink, e.g. an HTTP response body.
type WriterErrorHandlerBuilder struct {
	w   io.Writer
	cmd *Command
}

type errorDocument struct {
	Error   string `json:"error"`
	Command string `json:"command,omitempty"`
}

// NewWriterErrorHandlerBuilder is a factory method for WriterErrorHandlerBuilder.
func NewWriterErrorHandlerBuilder(w io.Writer) *WriterErrorHandlerBuilder {
	return &WriterErrorHandlerBuilder{w: w}
}

// SetCommand binds the failing command.
func (b *WriterErrorHandlerBuilder) SetCommand(cmd *Command) ErrorHandlerBuilder {
	b.cmd = cmd
	return b
}

// CreateErrorHandler returns no handler when no sink is configured.
func (b *WriterErrorHandlerBuilder) CreateErrorHandler() (ErrorHandler, bool) {
	if b.w == nil {
		return nil, false
	}

	text := commandText(b.cmd)

	return func(err error) {
		// the sink is the only channel left, a failing write has nowhere to go
		_ = jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(b.w).Encode(errorDocument{
			Error:   err.Error(),
			Command: text,
		})
	}, true
}

/***** Chain *****/

// ErrorHandlerChain combines several builders.
// Every link sees the failing command; the resulting handler runs the handlers of all links
// that produced one, in order. No handler from any link means propagate.
type ErrorHandlerChain struct {
	links []ErrorHandlerBuilder
}

// NewErrorHandlerChain is a factory method for ErrorHandlerChain. Nil links are skipped.
func NewErrorHandlerChain(links ...ErrorHandlerBuilder) *ErrorHandlerChain {
	chain := &ErrorHandlerChain{links: make([]ErrorHandlerBuilder, 0, len(links))}

	for _, link := range links {
		chain.Then(link)
	}

	return chain
}

// Then appends another link.
func (c *ErrorHandlerChain) Then(link ErrorHandlerBuilder) *ErrorHandlerChain {
	if link != nil {
		c.links = append(c.links, link)
	}

	return c
}

// SetCommand binds the failing command on every link.
func (c *ErrorHandlerChain) SetCommand(cmd *Command) ErrorHandlerBuilder {
	for i, link := range c.links {
		c.links[i] = link.SetCommand(cmd)
	}

	return c
}

// CreateErrorHandler collects the handlers of all links.
func (c *ErrorHandlerChain) CreateErrorHandler() (ErrorHandler, bool) {
	handlers := make([]ErrorHandler, 0, len(c.links))

	for _, link := range c.links {
		if handler, ok := link.CreateErrorHandler(); ok {
			handlers = append(handlers, handler)
		}
	}

	switch len(handlers) {
	case 0:
		return nil, false
	case 1:
		return handlers[0], true
	}

	return func(err error) {
		for _, handler := range handlers {
			handler(err)
		}
	}, true
}

func commandText(cmd *Command) string {
	if cmd == nil {
		return ""
	}

	return cmd.Text()
}
