package jsoncodec

import jsoniter "github.com/json-iterator/go"

var iterAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// iterNumberAPI decodes into interface values with numbers kept as text.
var iterNumberAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// JSONIter is a codec backed by github.com/json-iterator/go, configured to
// match encoding/json key ordering.
type JSONIter struct{}

// Encode serializes v without HTML escaping.
func (JSONIter) Encode(v any, asciiEscape bool) (string, error) {
	b, err := iterAPI.Marshal(v)
	if err != nil {
		return "", err
	}
	return format(b, asciiEscape), nil
}

// Decode parses text into the generic JSON data model.
func (JSONIter) Decode(text string) (any, error) {
	var out any
	if err := iterNumberAPI.UnmarshalFromString(text, &out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

// DecodeInto parses text into dst.
func (JSONIter) DecodeInto(text string, dst any) error {
	return iterAPI.UnmarshalFromString(text, dst)
}

// Name returns "jsoniter".
func (JSONIter) Name() string { return "jsoniter" }
