package jsoncodec

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Std is the standard-library JSON codec and the package default.
type Std struct{}

// Encode serializes v with encoding/json.
func (Std) Encode(v any, asciiEscape bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return format(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), asciiEscape), nil
}

// Decode parses text into the generic JSON data model.
func (Std) Decode(text string) (any, error) {
	data := []byte(text)
	if !json.Valid(data) {
		return nil, syntaxError(json.Unmarshal, data)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

// syntaxError returns the error unmarshal reports for data already known to
// be invalid.
func syntaxError(unmarshal func([]byte, any) error, data []byte) error {
	var discard any
	if err := unmarshal(data, &discard); err != nil {
		return err
	}
	return errors.New("invalid json text")
}

// DecodeInto parses text into dst.
func (Std) DecodeInto(text string, dst any) error {
	return json.Unmarshal([]byte(text), dst)
}

// Name returns "json".
func (Std) Name() string { return "json" }
