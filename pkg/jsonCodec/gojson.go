package jsoncodec

import (
	"bytes"

	gojson "github.com/goccy/go-json"
)

// GoJSON is a codec backed by github.com/goccy/go-json.
type GoJSON struct{}

// Encode serializes v without HTML escaping.
func (GoJSON) Encode(v any, asciiEscape bool) (string, error) {
	b, err := gojson.MarshalWithOption(v, gojson.DisableHTMLEscape())
	if err != nil {
		return "", err
	}
	return format(b, asciiEscape), nil
}

// Decode parses text into the generic JSON data model.
func (GoJSON) Decode(text string) (any, error) {
	data := []byte(text)
	if !gojson.Valid(data) {
		return nil, syntaxError(gojson.Unmarshal, data)
	}
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

// DecodeInto parses text into dst.
func (GoJSON) DecodeInto(text string, dst any) error {
	return gojson.Unmarshal([]byte(text), dst)
}

// Name returns "go-json".
func (GoJSON) Name() string { return "go-json" }
