package mutable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDictTracksChanges(t *testing.T) {
	d := NewDict(map[string]any{"a": "1", "b": "2", "c": "3"})
	assert.False(t, d.Changed())
	assert.Empty(t, d.Changes())

	d.Set("a", "one")
	d.Delete("b")
	d.Set("d", "4")
	assert.True(t, d.Changed())

	assert.Equal(t, []Change{
		{Key: "a", Kind: Modified, Old: "1", New: "one"},
		{Key: "b", Kind: Removed, Old: "2"},
		{Key: "d", Kind: Added, New: "4"},
	}, d.Changes())

	assert.Equal(t, map[string]any{"a": "1", "b": "2", "c": "3"}, d.Snapshot())

	d.MarkClean()
	assert.False(t, d.Changed())
	assert.Empty(t, d.Changes())
	assert.Equal(t, []string{"a", "c", "d"}, d.Keys())
}

func TestDictSetSameValue(t *testing.T) {
	d := NewDict(map[string]any{"a": "1"})
	d.Set("a", "1")
	assert.True(t, d.Changed())
	assert.Empty(t, d.Changes())
}

func TestDictDeleteMissing(t *testing.T) {
	d := NewDict(nil)
	assert.False(t, d.Delete("nope"))
	assert.False(t, d.Changed())
}

func TestDictUpdateAndClear(t *testing.T) {
	d := NewDict(map[string]any{"a": 1.0})
	d.Update(nil)
	assert.False(t, d.Changed())

	d.Update(map[string]any{"b": 2.0, "c": 3.0})
	assert.Equal(t, 3, d.Len())
	assert.True(t, d.Changed())

	d.MarkClean()
	d.Clear()
	assert.Equal(t, 0, d.Len())
	assert.Len(t, d.Changes(), 3)

	d.MarkClean()
	d.Clear()
	assert.False(t, d.Changed())
}

func TestDictCopiesInput(t *testing.T) {
	src := map[string]any{"a": "1"}
	d := NewDict(src)
	src["a"] = "changed"

	v, ok := d.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	m := d.Map()
	m["a"] = "also changed"
	v, _ = d.Get("a")
	assert.Equal(t, "1", v)
}

func TestDictOnChange(t *testing.T) {
	d := NewDict(nil)
	calls := 0
	d.OnChange(func(got *Dict) {
		assert.Same(t, d, got)
		calls++
	})

	d.Set("a", 1)
	d.Delete("a")
	d.Delete("a")
	d.Update(map[string]any{"b": 2})
	d.Clear()
	assert.Equal(t, 4, calls)
}

func TestWrapUnwrap(t *testing.T) {
	wrapped := Wrap(map[string]any{"a": "b"})
	d, ok := wrapped.(*Dict)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": "b"}, Unwrap(d))

	assert.Equal(t, []any{"x"}, Wrap([]any{"x"}))
	assert.Equal(t, "s", Unwrap("s"))
	assert.Nil(t, Wrap(nil))

	var nilDict *Dict
	assert.Nil(t, Unwrap(nilDict))
}

func TestDictJSON(t *testing.T) {
	d := NewDict(map[string]any{"key": "val"})
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key": "val"}`, string(b))

	var back Dict
	require.NoError(t, json.Unmarshal([]byte(`{"x": [1, 2.5]}`), &back))
	assert.Equal(t, map[string]any{"x": []any{int64(1), 2.5}}, back.Map())
	assert.False(t, back.Changed())

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &back))
}
