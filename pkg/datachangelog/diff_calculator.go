package datachangelog

import (
	"reflect"
	"sort"
	"strings"

	"github.com/jecitDev/jec-go-jsonfield/pkg/mutable"
)

// Diff kinds, shared with mutable.ChangeKind.
const (
	KindAdded    = string(mutable.Added)
	KindModified = string(mutable.Modified)
	KindRemoved  = string(mutable.Removed)
)

// DiffCalculator computes differences between before and after documents
type DiffCalculator struct {
	excludedFields []string
}

// NewDiffCalculator creates a new DiffCalculator instance
func NewDiffCalculator(excludedFields []string) *DiffCalculator {
	return &DiffCalculator{
		excludedFields: excludedFields,
	}
}

// CalculateDiff computes the differences between before and after maps.
// The result is sorted by field name.
func (dc *DiffCalculator) CalculateDiff(before, after map[string]interface{}) []FieldDiff {
	var diffs []FieldDiff

	for key, newValue := range after {
		if dc.isFieldExcluded(key) {
			continue
		}

		oldValue, exists := before[key]
		switch {
		case !exists:
			diffs = append(diffs, FieldDiff{
				FieldName: key,
				FieldType: getFieldType(newValue),
				Kind:      KindAdded,
				NewValue:  newValue,
			})
		case !reflect.DeepEqual(oldValue, newValue):
			diffs = append(diffs, FieldDiff{
				FieldName: key,
				FieldType: getFieldType(newValue),
				Kind:      KindModified,
				OldValue:  oldValue,
				NewValue:  newValue,
			})
		}
	}

	// Check for deleted fields (in before but not in after)
	for key, oldValue := range before {
		if dc.isFieldExcluded(key) {
			continue
		}
		if _, exists := after[key]; !exists {
			diffs = append(diffs, FieldDiff{
				FieldName: key,
				FieldType: getFieldType(oldValue),
				Kind:      KindRemoved,
				OldValue:  oldValue,
			})
		}
	}

	sortDiffs(diffs)
	return diffs
}

// FromMutable converts the changes tracked by a mutable.Dict.
func (dc *DiffCalculator) FromMutable(changes []mutable.Change) []FieldDiff {
	var diffs []FieldDiff
	for _, c := range changes {
		if dc.isFieldExcluded(c.Key) {
			continue
		}
		typed := c.New
		if c.Kind == mutable.Removed {
			typed = c.Old
		}
		diffs = append(diffs, FieldDiff{
			FieldName: c.Key,
			FieldType: getFieldType(typed),
			Kind:      string(c.Kind),
			OldValue:  c.Old,
			NewValue:  c.New,
		})
	}
	sortDiffs(diffs)
	return diffs
}

// DocumentDiff diffs two column values. Objects are compared key by key;
// any other value is reported as a single change of the "$" field.
func (dc *DiffCalculator) DocumentDiff(before, after interface{}) []FieldDiff {
	before, after = mutable.Unwrap(before), mutable.Unwrap(after)
	bm, bok := before.(map[string]interface{})
	am, aok := after.(map[string]interface{})
	if (bok || before == nil) && (aok || after == nil) {
		return dc.CalculateDiff(bm, am)
	}
	if reflect.DeepEqual(before, after) {
		return nil
	}

	kind := KindModified
	typed := after
	switch {
	case before == nil:
		kind = KindAdded
	case after == nil:
		kind = KindRemoved
		typed = before
	}
	return []FieldDiff{{
		FieldName: "$",
		FieldType: getFieldType(typed),
		Kind:      kind,
		OldValue:  before,
		NewValue:  after,
	}}
}

// getFieldType returns a string representation of the field's type
func getFieldType(value interface{}) string {
	if value == nil {
		return "null"
	}

	switch v := value.(type) {
	case bool:
		return "boolean"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}
		return "number"
	case float32:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}, *mutable.Dict:
		return "object"
	default:
		return reflect.TypeOf(value).String()
	}
}

// isFieldExcluded checks if a field is in the excluded list
func (dc *DiffCalculator) isFieldExcluded(fieldName string) bool {
	for _, excluded := range dc.excludedFields {
		if strings.EqualFold(excluded, fieldName) {
			return true
		}
	}
	return false
}

// CalculateDiffStats calculates statistics about the differences
func CalculateDiffStats(diffs []FieldDiff) DiffStats {
	stats := DiffStats{TotalFields: len(diffs)}

	for _, diff := range diffs {
		if diff.Sanitized {
			stats.SanitizedCount++
		}

		switch diff.Kind {
		case KindAdded:
			stats.AddedFields++
		case KindRemoved:
			stats.RemovedFields++
		default:
			stats.ChangedFields++
		}
	}

	return stats
}

// DiffStats represents statistics about field differences
type DiffStats struct {
	TotalFields    int
	ChangedFields  int
	AddedFields    int
	RemovedFields  int
	SanitizedCount int
}

// HasSignificantChanges returns true if there are meaningful changes
func (ds DiffStats) HasSignificantChanges() bool {
	return ds.AddedFields > 0 || ds.ChangedFields > 0 || ds.RemovedFields > 0
}

func sortDiffs(diffs []FieldDiff) {
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].FieldName < diffs[j].FieldName })
}
