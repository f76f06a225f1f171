// Package jsoncodec holds the JSON encoders a JSON column can delegate to.
//
// Every codec produces the same text layout so a column can switch codecs
// without rewriting stored rows: ", " between items, ": " after keys, HTML
// characters left as-is, and optionally every non-ASCII rune escaped.
package jsoncodec

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Codec encodes values to JSON text and back.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes v. With asciiEscape every non-ASCII rune is written
	// as a \uXXXX escape.
	Encode(v any, asciiEscape bool) (string, error)
	// Decode parses text into the generic JSON data model
	// (map[string]any, []any, string, int64, float64, bool, nil). Integer
	// literals that fit in int64 decode exactly; other numbers are float64.
	Decode(text string) (any, error)
	// DecodeInto parses text into dst, which must be a non-nil pointer.
	DecodeInto(text string, dst any) error
	Name() string
}

// Default is the codec used when a column does not pick one.
var Default Codec = Std{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "", "json":
		return Std{}, true
	case "go-json":
		return GoJSON{}, true
	case "jsoniter":
		return JSONIter{}, true
	case "sonic":
		return Sonic{}, true
	default:
		return nil, false
	}
}

// Names lists the names accepted by ByName.
func Names() []string {
	return []string{"json", "go-json", "jsoniter", "sonic"}
}

// MustEncode is a helper for tests.
func MustEncode(c Codec, v any, asciiEscape bool) string {
	if c == nil {
		c = Default
	}
	s, err := c.Encode(v, asciiEscape)
	if err != nil {
		panic(fmt.Errorf("codec %s encode failed: %w", c.Name(), err))
	}
	return s
}

// format rewrites compact JSON into the spaced text layout.
// Non-ASCII bytes only ever occur inside string literals of valid JSON.
func format(compact []byte, asciiEscape bool) string {
	var sb strings.Builder
	sb.Grow(len(compact) + len(compact)/8)

	inString := false
	escaped := false
	for i := 0; i < len(compact); {
		c := compact[i]
		if inString {
			if c >= utf8.RuneSelf {
				r, size := utf8.DecodeRune(compact[i:])
				if asciiEscape {
					writeEscapedRune(&sb, r)
				} else {
					sb.Write(compact[i : i+size])
				}
				i += size
				escaped = false
				continue
			}
			if c == '\\' && !escaped && !asciiEscape {
				if r, ok := lineSeparatorEscape(compact[i:]); ok {
					sb.WriteRune(r)
					i += 6
					continue
				}
			}
			sb.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			i++
			continue
		}

		sb.WriteByte(c)
		switch c {
		case '"':
			inString = true
		case ',', ':':
			sb.WriteByte(' ')
		}
		i++
	}
	return sb.String()
}

// lineSeparatorEscape reports whether b starts with the \u2028 or \u2029
// escape encoders emit for JavaScript safety, and the rune it stands for.
func lineSeparatorEscape(b []byte) (rune, bool) {
	if len(b) < 6 || b[1] != 'u' {
		return 0, false
	}
	switch strings.ToLower(string(b[2:6])) {
	case "2028":
		return '\u2028', true
	case "2029":
		return '\u2029', true
	}
	return 0, false
}

const hexDigits = "0123456789abcdef"

func writeEscapedRune(sb *strings.Builder, r rune) {
	if r > 0xFFFF {
		r1, r2 := utf16.EncodeRune(r)
		writeUnit(sb, r1)
		writeUnit(sb, r2)
		return
	}
	writeUnit(sb, r)
}

func writeUnit(sb *strings.Builder, r rune) {
	sb.WriteString(`\u`)
	sb.WriteByte(hexDigits[(r>>12)&0xF])
	sb.WriteByte(hexDigits[(r>>8)&0xF])
	sb.WriteByte(hexDigits[(r>>4)&0xF])
	sb.WriteByte(hexDigits[r&0xF])
}
