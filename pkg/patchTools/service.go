package patchtools

import (
	"fmt"
	"strconv"
	"time"

	jsoncodec "github.com/jecitDev/jec-go-jsonfield/pkg/jsonCodec"
	"github.com/jecitDev/jec-go-jsonfield/pkg/mutable"
)

// Value types a Data entry can carry. An empty Type is a string.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeTime   = "time"
	TypeNull   = "null"
	TypeJSON   = "json"
	// TypeRemove deletes the key; Value is ignored.
	TypeRemove = "remove"
)

// Data sets one top-level key of a JSON object from its text form, the
// shape patch requests arrive in from forms and query strings.
type Data struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// ParseValue converts d.Value into the JSON data model: integers become
// int64, floats float64, times are normalised to RFC3339 in UTC.
func ParseValue(d Data) (any, error) {
	switch d.Type {
	case "", TypeString:
		return d.Value, nil

	case TypeInt:
		intValue, err := strconv.ParseInt(d.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int value for field %s: %v", d.Field, err)
		}
		return intValue, nil

	case TypeFloat:
		floatValue, err := strconv.ParseFloat(d.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value for field %s: %v", d.Field, err)
		}
		return floatValue, nil

	case TypeBool:
		boolValue, err := strconv.ParseBool(d.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid bool value for field %s: %v", d.Field, err)
		}
		return boolValue, nil

	case TypeTime:
		timeValue, err := time.Parse(time.RFC3339, d.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid time value for field %s: %v", d.Field, err)
		}
		return timeValue.UTC().Format(time.RFC3339), nil

	case TypeNull:
		return nil, nil

	case TypeJSON:
		v, err := jsoncodec.Default.Decode(d.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid json value for field %s: %v", d.Field, err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("unsupported value type %q for field %s", d.Type, d.Field)
	}
}

// Apply writes every entry of patch into doc. All values are parsed before
// the first write, so a bad entry leaves doc untouched.
func Apply(doc *mutable.Dict, patch []Data) error {
	if doc == nil {
		return fmt.Errorf("patch target is nil")
	}

	values := make([]any, len(patch))
	for i, d := range patch {
		if d.Field == "" {
			return fmt.Errorf("patch entry %d has no field", i)
		}
		if d.Type == TypeRemove {
			continue
		}
		v, err := ParseValue(d)
		if err != nil {
			return err
		}
		values[i] = v
	}

	for i, d := range patch {
		if d.Type == TypeRemove {
			doc.Delete(d.Field)
			continue
		}
		doc.Set(d.Field, values[i])
	}
	return nil
}
