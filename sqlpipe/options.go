package sqlpipe

// Options configures a Stream call.
type Options struct {
	// DefaultOutput is written verbatim to the sink when the result set has no rows.
	DefaultOutput []byte
}

// NewOptions builds Options from a textual or a binary default output.
func NewOptions[T string | []byte](defaultOutput T) Options {
	return Options{DefaultOutput: []byte(defaultOutput)}
}
