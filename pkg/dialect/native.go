package dialect

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	jsoncodec "github.com/jecitDev/jec-go-jsonfield/pkg/jsonCodec"
)

// NativeSerializer converts values at the driver boundary of a native JSON
// column. database/sql drivers only accept driver.Value, so structured
// values are sent as JSON text and parsed back on read.
type NativeSerializer interface {
	Marshal(v any) (driver.Value, error)
	// Unmarshal accepts what the driver returns for a JSON column: []byte,
	// string, or an already decoded value which is passed through.
	Unmarshal(src any) (any, error)
	UnmarshalInto(src any, dst any) error
}

// JSONText sends native JSON values as compact JSON text, which every
// JSON-capable driver accepts for both json and jsonb columns. Reads follow
// the jsoncodec data model, so integers come back as exact int64.
type JSONText struct{}

func (JSONText) Marshal(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	switch raw := v.(type) {
	case json.RawMessage:
		return string(raw), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (JSONText) Unmarshal(src any) (any, error) {
	switch s := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return jsoncodec.Std{}.Decode(string(s))
	case string:
		return jsoncodec.Std{}.Decode(s)
	default:
		return src, nil
	}
}

func (JSONText) UnmarshalInto(src any, dst any) error {
	switch s := src.(type) {
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	default:
		// Drivers that decode JSON themselves hand back structured values.
		b, err := json.Marshal(src)
		if err != nil {
			return fmt.Errorf("dialect: re-encode %T: %w", src, err)
		}
		return json.Unmarshal(b, dst)
	}
}
