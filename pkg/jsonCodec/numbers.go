package jsoncodec

import (
	"strconv"
	"strings"
)

// number is what the decoders produce with number preservation on:
// encoding/json.Number and jsoniter.Number both satisfy it.
type number interface {
	String() string
	Float64() (float64, error)
}

// normalizeNumbers replaces preserved numbers in a decoded tree: integer
// literals that fit become int64, everything else float64.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case number:
		return numberValue(t)
	}
	return v
}

func numberValue(n number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	f, _ := n.Float64()
	return f
}
