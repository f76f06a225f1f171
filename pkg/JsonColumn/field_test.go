package jsoncolumn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
	jsoncodec "github.com/jecitDev/jec-go-jsonfield/pkg/jsonCodec"
)

var (
	nativeDialect = dialect.Postgres{}
	textDialect   = dialect.SQLite{}
)

func TestRepresentation(t *testing.T) {
	tests := []struct {
		name    string
		field   *Field
		dialect dialect.Dialect
		want    Representation
	}{
		{"NativeDefault", New(), nativeDialect, NativeJSON},
		{"NativeEnforceString", New(WithEnforceString(true)), nativeDialect, TextEncoded},
		{"TextDefault", New(), textDialect, TextEncoded},
		{"TextEnforceString", New(WithEnforceString(true)), textDialect, TextEncoded},
		{"MySQL", New(), dialect.MySQL{}, NativeJSON},
		{"SQLServer", New(), dialect.SQLServer{}, TextEncoded},
		{"SQLiteJSON1", New(), dialect.SQLite{JSON1: true}, NativeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.Representation(tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepresentationString(t *testing.T) {
	assert.Equal(t, "native_json", NativeJSON.String())
	assert.Equal(t, "text_encoded", TextEncoded.String())
	assert.Equal(t, "unknown", Representation(9).String())
}

func TestRenderSchemaType(t *testing.T) {
	td, err := New().RenderSchemaType(nativeDialect)
	require.NoError(t, err)
	assert.Equal(t, "JSON", td.Name)

	td, err = New(WithJSONType(dialect.TypeJSONB)).RenderSchemaType(nativeDialect)
	require.NoError(t, err)
	assert.Equal(t, "JSONB", td.Name)

	td, err = New(WithEnforceString(true), WithJSONType(dialect.TypeJSONB)).RenderSchemaType(nativeDialect)
	require.NoError(t, err)
	assert.Equal(t, "TEXT", td.Name)

	td, err = New().RenderSchemaType(dialect.SQLServer{})
	require.NoError(t, err)
	assert.Equal(t, "NVARCHAR(MAX)", td.Name)

	_, err = New(WithEnforceString(true)).RenderSchemaType(nil)
	var probeErr *CapabilityProbeError
	assert.True(t, errors.As(err, &probeErr))
}

// enforce_string on a native JSON dialect stores formatted text.
func TestEnforceStringOnNativeDialect(t *testing.T) {
	f := New(WithEnforceString(true))

	stored, err := f.ToStorage(map[string]any{"key": "val"}, nativeDialect)
	require.NoError(t, err)
	assert.Equal(t, `{"key": "val"}`, stored)

	back, err := f.FromStorage(stored, nativeDialect)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"key": "val"}, back)
}

func TestNativePassThrough(t *testing.T) {
	f := New()
	value := []any{"item0", "item1"}

	rep, err := f.Representation(nativeDialect)
	require.NoError(t, err)
	assert.Equal(t, NativeJSON, rep)

	stored, err := f.ToStorage(value, nativeDialect)
	require.NoError(t, err)
	assert.Equal(t, value, stored)
	assert.IsType(t, []any{}, stored)
}

func TestTextEncodedList(t *testing.T) {
	stored, err := New().ToStorage([]any{"item0", "item1"}, textDialect)
	require.NoError(t, err)
	assert.Equal(t, `["item0", "item1"]`, stored)
}

func TestMalformedStoredText(t *testing.T) {
	_, err := New().FromStorage("{not valid json", textDialect)
	require.Error(t, err)

	var decErr *DeserializationError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, "{not valid json", decErr.Text)
	assert.Equal(t, "json", decErr.Codec)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestUnsupportedStorageValue(t *testing.T) {
	_, err := New().FromStorage(42, textDialect)
	assert.ErrorIs(t, err, ErrUnsupportedStorage)
}

func TestRoundTrip(t *testing.T) {
	values := []any{
		map[string]any{"key": "val"},
		[]any{"item0", "item1"},
		map[string]any{
			"nested": map[string]any{"list": []any{1.5, "значение", false, nil}},
			"empty":  []any{},
		},
		"plain",
		int64(3),
		map[string]any{"id": int64(9007199254740993), "ratio": 0.25},
		true,
	}
	fields := []*Field{
		New(),
		New(WithEnforceString(true)),
		New(WithEnforceUnicode(true)),
		New(WithCodec(jsoncodec.GoJSON{})),
		New(WithCodec(jsoncodec.JSONIter{})),
		New(WithCodec(jsoncodec.Sonic{})),
	}

	for _, f := range fields {
		for _, d := range []dialect.Dialect{nativeDialect, textDialect} {
			for _, v := range values {
				stored, err := f.ToStorage(v, d)
				require.NoError(t, err)
				back, err := f.FromStorage(stored, d)
				require.NoError(t, err)
				assert.Equal(t, v, back, "codec=%s dialect=%s", f.Codec().Name(), d.Name())
			}
		}
	}
}

func TestTupleLikeNormalisation(t *testing.T) {
	f := New()
	stored, err := f.ToStorage([2]string{"a", "b"}, textDialect)
	require.NoError(t, err)
	assert.Equal(t, `["a", "b"]`, stored)

	back, err := f.FromStorage(stored, textDialect)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, back)
}

func TestNullPassThrough(t *testing.T) {
	var nilMap map[string]any
	var nilSlice []any

	for _, f := range []*Field{New(), New(WithEnforceString(true))} {
		for _, d := range []dialect.Dialect{nativeDialect, textDialect} {
			for _, v := range []any{nil, nilMap, nilSlice} {
				stored, err := f.ToStorage(v, d)
				require.NoError(t, err)
				assert.Nil(t, stored)
			}
			back, err := f.FromStorage(nil, d)
			require.NoError(t, err)
			assert.Nil(t, back)
		}
	}
}

func TestUnicodeControl(t *testing.T) {
	value := map[string]any{"key": "значение"}

	escaped, err := New().ToStorage(value, textDialect)
	require.NoError(t, err)
	assert.Equal(t, `{"key": "\u0437\u043d\u0430\u0447\u0435\u043d\u0438\u0435"}`, escaped)

	literal, err := New(WithEnforceUnicode(true)).ToStorage(value, textDialect)
	require.NoError(t, err)
	assert.Equal(t, `{"key": "значение"}`, literal)
}

func TestLiteralMatchesParam(t *testing.T) {
	values := []any{nil, map[string]any{"key": "val"}, []any{"item0", "item1"}, "x", 1.25}
	fields := []*Field{New(), New(WithEnforceString(true)), New(WithEnforceUnicode(true))}

	for _, f := range fields {
		for _, d := range []dialect.Dialect{nativeDialect, textDialect, dialect.SQLServer{}} {
			for _, v := range values {
				param, err := f.ToStorage(v, d)
				require.NoError(t, err)
				literal, err := f.ToStorageLiteral(v, d)
				require.NoError(t, err)
				assert.Equal(t, param, literal)
			}
		}
	}
}

func TestSerializationError(t *testing.T) {
	_, err := New().ToStorage(map[string]any{"ch": make(chan int)}, textDialect)
	require.Error(t, err)

	var serErr *SerializationError
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, "json", serErr.Codec)
	assert.Contains(t, err.Error(), "jsoncolumn: encode")
}

func TestCapabilityProbeError(t *testing.T) {
	boom := errors.New("driver exploded")
	flaky := dialect.Custom{
		DialectName: "flaky",
		Probe:       func() (bool, error) { return false, boom },
	}

	f := New()
	_, err := f.Representation(flaky)
	var probeErr *CapabilityProbeError
	require.True(t, errors.As(err, &probeErr))
	assert.Equal(t, "flaky", probeErr.Dialect)
	assert.ErrorIs(t, err, boom)

	_, err = f.ToStorage("x", flaky)
	assert.ErrorIs(t, err, boom)
	_, err = f.FromStorage(`"x"`, flaky)
	assert.ErrorIs(t, err, boom)
	_, err = f.RenderSchemaType(flaky)
	assert.ErrorIs(t, err, boom)

	_, err = f.Representation(nil)
	assert.ErrorIs(t, err, ErrNilDialect)

	// enforce_string never consults the dialect.
	rep, err := New(WithEnforceString(true)).Representation(flaky)
	require.NoError(t, err)
	assert.Equal(t, TextEncoded, rep)
}

func TestOptions(t *testing.T) {
	f := New()
	assert.False(t, f.EnforceString())
	assert.False(t, f.EnforceUnicode())
	assert.Equal(t, "json", f.Codec().Name())
	assert.Equal(t, dialect.TypeJSON, f.JSONType())
	assert.False(t, f.IsMutable())

	f = New(WithCodec(nil), WithJSONType(""))
	assert.Equal(t, "json", f.Codec().Name())
	assert.Equal(t, dialect.TypeJSON, f.JSONType())

	m := f.Mutable()
	assert.True(t, m.IsMutable())
	assert.False(t, f.IsMutable())
	assert.True(t, NewMutable(WithEnforceString(true)).EnforceString())
}
