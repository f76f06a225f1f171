// Package mutable provides the observable mapping a host data layer wraps
// around decoded JSON objects, so in-place edits schedule a write without the
// caller reassigning the whole value.
//
// Only top-level keys are observed. Editing a nested map obtained through
// Get is not detected; Set the key again to mark the Dict changed.
package mutable

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	jsoncodec "github.com/jecitDev/jec-go-jsonfield/pkg/jsonCodec"
)

// ChangeKind classifies one key-level change.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Removed  ChangeKind = "removed"
)

// Change is the difference for one key since the last MarkClean.
type Change struct {
	Key  string     `json:"key"`
	Kind ChangeKind `json:"kind"`
	Old  any        `json:"old,omitempty"`
	New  any        `json:"new,omitempty"`
}

// Dict is a change-tracking map[string]any.
type Dict struct {
	mu        sync.RWMutex
	data      map[string]any
	snapshot  map[string]any
	changed   bool
	listeners []func(*Dict)
}

// NewDict wraps a copy of m. The new Dict starts clean.
func NewDict(m map[string]any) *Dict {
	d := &Dict{data: copyMap(m)}
	d.snapshot = copyMap(d.data)
	return d
}

// Wrap turns a decoded JSON object into a *Dict and returns any other value
// unchanged.
func Wrap(v any) any {
	if m, ok := v.(map[string]any); ok {
		return NewDict(m)
	}
	return v
}

// Unwrap returns the plain map behind a *Dict, or v itself.
func Unwrap(v any) any {
	if d, ok := v.(*Dict); ok {
		if d == nil {
			return nil
		}
		return d.Map()
	}
	return v
}

// OnChange registers fn to run after every mutation.
func (d *Dict) OnChange(fn func(*Dict)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *Dict) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.data[key]
	return v, ok
}

// Set assigns key and marks the Dict changed, even when the value is equal.
func (d *Dict) Set(key string, value any) {
	d.mu.Lock()
	if d.data == nil {
		d.data = map[string]any{}
	}
	d.data[key] = value
	d.changed = true
	d.mu.Unlock()
	d.notify()
}

// Delete removes key and reports whether it was present.
func (d *Dict) Delete(key string) bool {
	d.mu.Lock()
	_, ok := d.data[key]
	if ok {
		delete(d.data, key)
		d.changed = true
	}
	d.mu.Unlock()
	if ok {
		d.notify()
	}
	return ok
}

// Update assigns every key of m.
func (d *Dict) Update(m map[string]any) {
	if len(m) == 0 {
		return
	}
	d.mu.Lock()
	if d.data == nil {
		d.data = map[string]any{}
	}
	for k, v := range m {
		d.data[k] = v
	}
	d.changed = true
	d.mu.Unlock()
	d.notify()
}

// Clear removes every key.
func (d *Dict) Clear() {
	d.mu.Lock()
	wasEmpty := len(d.data) == 0
	d.data = map[string]any{}
	if !wasEmpty {
		d.changed = true
	}
	d.mu.Unlock()
	if !wasEmpty {
		d.notify()
	}
}

func (d *Dict) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.data)
}

// Keys returns the keys in sorted order.
func (d *Dict) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.data))
	for k := range d.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a shallow copy of the current contents.
func (d *Dict) Map() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyMap(d.data)
}

// Snapshot returns a shallow copy of the contents as of the last MarkClean.
func (d *Dict) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyMap(d.snapshot)
}

// Changed reports whether the Dict was mutated since it was loaded or last
// marked clean.
func (d *Dict) Changed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.changed
}

// MarkClean records the current contents as persisted.
func (d *Dict) MarkClean() {
	d.mu.Lock()
	d.snapshot = copyMap(d.data)
	d.changed = false
	d.mu.Unlock()
}

// Changes lists key-level differences since the last MarkClean, sorted by key.
func (d *Dict) Changes() []Change {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var changes []Change
	for k, nv := range d.data {
		ov, existed := d.snapshot[k]
		switch {
		case !existed:
			changes = append(changes, Change{Key: k, Kind: Added, New: nv})
		case !reflect.DeepEqual(ov, nv):
			changes = append(changes, Change{Key: k, Kind: Modified, Old: ov, New: nv})
		}
	}
	for k, ov := range d.snapshot {
		if _, ok := d.data[k]; !ok {
			changes = append(changes, Change{Key: k, Kind: Removed, Old: ov})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes
}

// MarshalJSON encodes the Dict as a plain JSON object.
func (d *Dict) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Map())
}

// UnmarshalJSON replaces the contents and leaves the Dict clean. Numbers
// follow the jsoncodec data model.
func (d *Dict) UnmarshalJSON(data []byte) error {
	v, err := jsoncodec.Std{}.Decode(string(data))
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if v != nil && !ok {
		return fmt.Errorf("mutable: cannot unmarshal %T into Dict", v)
	}
	d.mu.Lock()
	d.data = m
	d.snapshot = copyMap(m)
	d.changed = false
	d.mu.Unlock()
	return nil
}

func (d *Dict) notify() {
	d.mu.RLock()
	listeners := append([]func(*Dict){}, d.listeners...)
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(d)
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
