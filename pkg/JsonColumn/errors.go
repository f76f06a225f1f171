package jsoncolumn

import (
	"errors"
	"fmt"
)

var (
	// ErrNilDialect is wrapped in a CapabilityProbeError when no dialect is given.
	ErrNilDialect = errors.New("jsoncolumn: nil dialect")
	// ErrUnsupportedStorage is wrapped in a DeserializationError when the
	// driver hands back a type that cannot hold JSON text.
	ErrUnsupportedStorage = errors.New("jsoncolumn: unsupported storage value")
)

// SerializationError reports a value the codec could not encode.
// The write of the column is aborted.
type SerializationError struct {
	Codec string
	Value any
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("jsoncolumn: encode %T with %s: %v", e.Value, e.Codec, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// DeserializationError reports stored text that is not valid JSON.
type DeserializationError struct {
	Codec string
	Text  string
	Err   error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("jsoncolumn: decode %q with %s: %v", truncate(e.Text, 64), e.Codec, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// CapabilityProbeError reports a dialect that failed to answer whether it
// supports native JSON. No representation can be selected.
type CapabilityProbeError struct {
	Dialect string
	Err     error
}

func (e *CapabilityProbeError) Error() string {
	return fmt.Sprintf("jsoncolumn: probe native json on %s: %v", e.Dialect, e.Err)
}

func (e *CapabilityProbeError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
