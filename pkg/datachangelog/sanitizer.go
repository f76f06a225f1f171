package datachangelog

import (
	"math"
	"strings"
)

// Sanitizer handles sanitization of sensitive document keys
type Sanitizer struct {
	sensitiveFields map[string]bool
	redactionChar   string
}

// NewSanitizer creates a new sanitizer instance
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	fieldMap := make(map[string]bool)
	for _, field := range sensitiveFields {
		fieldMap[strings.ToLower(field)] = true
	}

	return &Sanitizer{
		sensitiveFields: fieldMap,
		redactionChar:   "*",
	}
}

// IsSensitive checks if a field is marked as sensitive
func (s *Sanitizer) IsSensitive(fieldName string) bool {
	return s.sensitiveFields[strings.ToLower(fieldName)]
}

// SanitizeValue masks a sensitive value. Strings keep a fifth of their
// characters; anything else is fully masked.
func (s *Sanitizer) SanitizeValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case string:
		return s.redactString(v)
	case []byte:
		return s.redactString(string(v))
	default:
		return "****"
	}
}

// SanitizeMap masks sensitive keys of a document, recursing into nested
// objects and arrays.
func (s *Sanitizer) SanitizeMap(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}

	result := make(map[string]interface{}, len(data))
	for key, value := range data {
		if s.IsSensitive(key) {
			result[key] = s.SanitizeValue(value)
			continue
		}
		result[key] = s.sanitizeNested(value)
	}

	return result
}

func (s *Sanitizer) sanitizeNested(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return s.SanitizeMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = s.sanitizeNested(item)
		}
		return out
	default:
		return value
	}
}

// redactString redacts a string using 80:20 masking or full masking for short strings
func (s *Sanitizer) redactString(value string) string {
	runes := []rune(value)
	n := len(runes)
	if n == 0 {
		return value
	}

	// Rule 1: short values → fully masked
	if n <= 4 {
		return strings.Repeat(s.redactionChar, n)
	}

	// Rule 2: 80:20 masking
	visible := int(math.Ceil(float64(n) * 0.2))
	if visible < 2 {
		visible = 2
	}

	// Split visible chars between start & end
	prefixLen := visible / 2
	suffixLen := visible - prefixLen

	return string(runes[:prefixLen]) +
		strings.Repeat(s.redactionChar, n-prefixLen-suffixLen) +
		string(runes[n-suffixLen:])
}

// SanitizeFieldDiffs sanitizes a slice of FieldDiff. Values of sensitive
// keys are masked, nested objects of other keys are sanitized recursively.
func (s *Sanitizer) SanitizeFieldDiffs(diffs []FieldDiff) []FieldDiff {
	if diffs == nil {
		return nil
	}

	result := make([]FieldDiff, 0, len(diffs))
	for _, diff := range diffs {
		if s.IsSensitive(diff.FieldName) {
			diff.OldValue = s.SanitizeValue(diff.OldValue)
			diff.NewValue = s.SanitizeValue(diff.NewValue)
			diff.Sanitized = true
		} else {
			diff.OldValue = s.sanitizeNested(diff.OldValue)
			diff.NewValue = s.sanitizeNested(diff.NewValue)
		}
		result = append(result, diff)
	}

	return result
}
