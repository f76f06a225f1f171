package jsoncodec

import "github.com/bytedance/sonic"

var sonicAPI = sonic.Config{
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
}.Froze()

// sonicNumberAPI decodes into interface values with numbers kept as text.
var sonicNumberAPI = sonic.Config{
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

// Sonic is a codec backed by github.com/bytedance/sonic.
type Sonic struct{}

// Encode serializes v without HTML escaping.
func (Sonic) Encode(v any, asciiEscape bool) (string, error) {
	b, err := sonicAPI.Marshal(v)
	if err != nil {
		return "", err
	}
	return format(b, asciiEscape), nil
}

// Decode parses text into the generic JSON data model.
func (Sonic) Decode(text string) (any, error) {
	var out any
	if err := sonicNumberAPI.UnmarshalFromString(text, &out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

// DecodeInto parses text into dst.
func (Sonic) DecodeInto(text string, dst any) error {
	return sonicAPI.UnmarshalFromString(text, dst)
}

// Name returns "sonic".
func (Sonic) Name() string { return "sonic" }
