// Package jsoncolumn is a column type that stores structured values in a
// relational column. Dialects with a native JSON type get the value handed
// to the driver as is; every other dialect gets JSON text in a unicode text
// column.
package jsoncolumn

import (
	"database/sql"
	"reflect"

	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
	jsoncodec "github.com/jecitDev/jec-go-jsonfield/pkg/jsonCodec"
	"github.com/jecitDev/jec-go-jsonfield/pkg/mutable"
)

// Representation is how a column holds its value in a given dialect.
type Representation int

const (
	TextEncoded Representation = iota
	NativeJSON
)

func (r Representation) String() string {
	switch r {
	case NativeJSON:
		return "native_json"
	case TextEncoded:
		return "text_encoded"
	default:
		return "unknown"
	}
}

// Field is the configuration of one JSON column. It is immutable once built
// and safe for concurrent use.
type Field struct {
	enforceString  bool
	enforceUnicode bool
	codec          jsoncodec.Codec
	jsonType       dialect.TypeRequest
	mutable        bool
}

type Option func(*Field)

// WithEnforceString stores text even when the dialect has native JSON.
func WithEnforceString(enforce bool) Option {
	return func(f *Field) { f.enforceString = enforce }
}

// WithEnforceUnicode writes non-ASCII characters literally in text output
// instead of \uXXXX escapes.
func WithEnforceUnicode(enforce bool) Option {
	return func(f *Field) { f.enforceUnicode = enforce }
}

// WithCodec swaps the JSON codec. nil keeps the default.
func WithCodec(c jsoncodec.Codec) Option {
	return func(f *Field) {
		if c != nil {
			f.codec = c
		}
	}
}

// WithJSONType picks the native JSON type requested from the dialect,
// e.g. dialect.TypeJSONB on postgres.
func WithJSONType(t dialect.TypeRequest) Option {
	return func(f *Field) {
		if t != "" {
			f.jsonType = t
		}
	}
}

func New(opts ...Option) *Field {
	f := &Field{
		codec:    jsoncodec.Default,
		jsonType: dialect.TypeJSON,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewMutable builds a change-tracked field, see Mutable.
func NewMutable(opts ...Option) *Field {
	return New(opts...).Mutable()
}

// Mutable returns a copy of f tagged as observable. Hosts reading through a
// mutable field receive JSON objects as *mutable.Dict.
func (f *Field) Mutable() *Field {
	cp := *f
	cp.mutable = true
	return &cp
}

func (f *Field) IsMutable() bool               { return f.mutable }
func (f *Field) EnforceString() bool           { return f.enforceString }
func (f *Field) EnforceUnicode() bool          { return f.enforceUnicode }
func (f *Field) Codec() jsoncodec.Codec        { return f.codec }
func (f *Field) JSONType() dialect.TypeRequest { return f.jsonType }

// Representation selects NativeJSON iff the dialect supports native JSON
// and the field does not enforce text.
func (f *Field) Representation(d dialect.Dialect) (Representation, error) {
	if f.enforceString {
		return TextEncoded, nil
	}
	if d == nil {
		return TextEncoded, &CapabilityProbeError{Dialect: "<nil>", Err: ErrNilDialect}
	}
	native, err := d.SupportsNativeJSON()
	if err != nil {
		return TextEncoded, &CapabilityProbeError{Dialect: d.Name(), Err: err}
	}
	if native {
		return NativeJSON, nil
	}
	return TextEncoded, nil
}

// RenderSchemaType returns the column type used in DDL.
func (f *Field) RenderSchemaType(d dialect.Dialect) (dialect.TypeDescriptor, error) {
	rep, err := f.Representation(d)
	if err != nil {
		return dialect.TypeDescriptor{}, err
	}
	if d == nil {
		return dialect.TypeDescriptor{}, &CapabilityProbeError{Dialect: "<nil>", Err: ErrNilDialect}
	}
	if rep == NativeJSON {
		return d.TypeDescriptor(f.jsonType), nil
	}
	return d.TypeDescriptor(dialect.TypeUnicodeText), nil
}

// ToStorage converts an in-memory value for a write. Native JSON values and
// nil pass through; everything else becomes JSON text.
func (f *Field) ToStorage(v any, d dialect.Dialect) (any, error) {
	rep, err := f.Representation(d)
	if err != nil {
		return nil, err
	}
	if rep == NativeJSON || isNull(v) {
		return v, nil
	}
	text, err := f.codec.Encode(mutable.Unwrap(v), !f.enforceUnicode)
	if err != nil {
		return nil, &SerializationError{Codec: f.codec.Name(), Value: v, Err: err}
	}
	return text, nil
}

// ToStorageLiteral converts a value that is rendered inline into a
// statement. The result is the same as ToStorage; quoting is the dialect's
// job, see Binding.Literal.
func (f *Field) ToStorageLiteral(v any, d dialect.Dialect) (any, error) {
	return f.ToStorage(v, d)
}

// FromStorage converts a stored value back on read. Text is accepted as
// string or []byte since drivers return either.
func (f *Field) FromStorage(sv any, d dialect.Dialect) (any, error) {
	rep, err := f.Representation(d)
	if err != nil {
		return nil, err
	}
	if rep == NativeJSON || sv == nil {
		return sv, nil
	}
	var text string
	switch s := sv.(type) {
	case string:
		text = s
	case []byte:
		text = string(s)
	case sql.RawBytes:
		text = string(s)
	default:
		return nil, &DeserializationError{
			Codec: f.codec.Name(),
			Text:  reflect.TypeOf(sv).String(),
			Err:   ErrUnsupportedStorage,
		}
	}
	out, err := f.codec.Decode(text)
	if err != nil {
		return nil, &DeserializationError{Codec: f.codec.Name(), Text: text, Err: err}
	}
	return out, nil
}

// isNull treats typed nil maps, slices and pointers as null.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
