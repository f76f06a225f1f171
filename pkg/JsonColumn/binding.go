package jsoncolumn

import (
	"database/sql"
	"database/sql/driver"
	"reflect"

	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
	"github.com/jecitDev/jec-go-jsonfield/pkg/mutable"
)

// Binding is a field bound to one dialect, ready for database/sql.
// Drivers only accept driver.Value, so native JSON values go through the
// dialect's NativeSerializer at this boundary.
type Binding struct {
	Field   *Field
	Dialect dialect.Dialect
}

// textField backs a zero Binding: JSON text with the default codec, which
// needs no dialect.
var textField = New(WithEnforceString(true), WithEnforceUnicode(true))

func (f *Field) Bind(d dialect.Dialect) Binding {
	return Binding{Field: f, Dialect: d}
}

func (b Binding) field() *Field {
	if b.Field == nil {
		return textField
	}
	return b.Field
}

// Value converts v to the driver value written for the column.
func (b Binding) Value(v any) (driver.Value, error) {
	f := b.field()
	rep, err := f.Representation(b.Dialect)
	if err != nil {
		return nil, err
	}
	sv, err := f.ToStorage(v, b.Dialect)
	if err != nil {
		return nil, err
	}
	if isNull(sv) {
		return nil, nil
	}
	if rep == TextEncoded {
		return sv, nil
	}
	dv, err := b.Dialect.NativeJSON().Marshal(mutable.Unwrap(sv))
	if err != nil {
		return nil, &SerializationError{Codec: "native:" + b.Dialect.Name(), Value: v, Err: err}
	}
	return dv, nil
}

// Param wraps v for use as a query argument.
func (b Binding) Param(v any) driver.Valuer {
	return valuerFunc(func() (driver.Value, error) { return b.Value(v) })
}

// Decode converts a driver value read from the column. Mutable fields
// return JSON objects as *mutable.Dict.
func (b Binding) Decode(src any) (any, error) {
	f := b.field()
	rep, err := f.Representation(b.Dialect)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, nil
	}

	var out any
	if rep == NativeJSON {
		out, err = b.Dialect.NativeJSON().Unmarshal(src)
		if err != nil {
			return nil, &DeserializationError{Codec: "native:" + b.Dialect.Name(), Text: textOf(src), Err: err}
		}
	} else {
		out, err = f.FromStorage(src, b.Dialect)
		if err != nil {
			return nil, err
		}
	}
	if f.mutable {
		out = mutable.Wrap(out)
	}
	return out, nil
}

// Dest returns a scanner that stores the decoded value in *dst.
func (b Binding) Dest(dst *any) sql.Scanner {
	return scannerFunc(func(src any) error {
		v, err := b.Decode(src)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	})
}

// Into returns a scanner that decodes into dst, a non-nil pointer such as
// *MyStruct or *map[string]string. A NULL column resets dst to its zero value.
func (b Binding) Into(dst any) sql.Scanner {
	return scannerFunc(func(src any) error {
		f := b.field()
		rep, err := f.Representation(b.Dialect)
		if err != nil {
			return err
		}
		if src == nil {
			rv := reflect.ValueOf(dst)
			if rv.Kind() == reflect.Pointer && !rv.IsNil() {
				rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
			}
			return nil
		}
		if rep == NativeJSON {
			if err := b.Dialect.NativeJSON().UnmarshalInto(src, dst); err != nil {
				return &DeserializationError{Codec: "native:" + b.Dialect.Name(), Text: textOf(src), Err: err}
			}
			return nil
		}
		text, ok := asText(src)
		if !ok {
			return &DeserializationError{Codec: f.codec.Name(), Text: reflect.TypeOf(src).String(), Err: ErrUnsupportedStorage}
		}
		if err := f.codec.DecodeInto(text, dst); err != nil {
			return &DeserializationError{Codec: f.codec.Name(), Text: text, Err: err}
		}
		return nil
	})
}

// Literal renders v as an inline SQL literal: ToStorageLiteral followed by
// the dialect's quoting. nil renders as NULL.
func (b Binding) Literal(v any) (string, error) {
	dv, err := b.Value(v)
	if err != nil {
		return "", err
	}
	if dv == nil {
		return "NULL", nil
	}
	text, ok := asText(dv)
	if !ok {
		return "", &SerializationError{Codec: b.field().codec.Name(), Value: v, Err: ErrUnsupportedStorage}
	}
	if b.Dialect == nil {
		return dialect.Custom{}.QuoteLiteral(text), nil
	}
	return b.Dialect.QuoteLiteral(text), nil
}

type valuerFunc func() (driver.Value, error)

func (fn valuerFunc) Value() (driver.Value, error) { return fn() }

type scannerFunc func(src any) error

func (fn scannerFunc) Scan(src any) error { return fn(src) }

func asText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case sql.RawBytes:
		return string(s), true
	}
	return "", false
}

func textOf(v any) string {
	if s, ok := asText(v); ok {
		return s
	}
	return reflect.TypeOf(v).String()
}
