// Package blackboard provides the key/value store shared by the leaves of a
// behavior tree. Every leaf runs on its own goroutine, so all access is
// synchronized.
package blackboard

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Blackboard is a thread-safe key/value store.
//
// The zero value is ready to use; the internal map is created on the first
// write.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any
}

// New returns a Blackboard seeded with a shallow copy of seed.
func New(seed map[string]any) *Blackboard {
	b := new(Blackboard)
	b.Merge(seed)
	return b
}

func (b *Blackboard) init() {
	if b.data == nil {
		b.data = make(map[string]any)
	}
}

// Get returns the value stored under key, or nil.
func (b *Blackboard) Get(key string) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data[key]
}

// Set stores value under key.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data[key] = value
}

// Merge stores every entry of values.
func (b *Blackboard) Merge(values map[string]any) {
	if len(values) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	maps.Copy(b.data, values)
}

// Update replaces the value under key with fn(old, ok), atomically with
// respect to every other Blackboard method. fn must not call back into b.
func (b *Blackboard) Update(key string, fn func(old any, ok bool) any) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	old, ok := b.data[key]
	v := fn(old, ok)
	b.data[key] = v
	return v
}

// Has reports whether key is present.
func (b *Blackboard) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok
}

// Delete removes key.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Keys returns every key, sorted.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.data))
}

// Clear removes every entry.
func (b *Blackboard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.data)
}

// Len returns the number of entries.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the data. Mutable values (slices, maps,
// pointers) are shared with the blackboard and must not be modified.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.data)
}

// Lookup returns the value under key as a T. It reports an error if the key
// is missing or holds a value of another type.
func Lookup[T any](b *Blackboard, key string) (T, error) {
	var zero T
	v := b.Get(key)
	if v == nil {
		if !b.Has(key) {
			return zero, fmt.Errorf("blackboard: key %q not set", key)
		}
		return zero, fmt.Errorf("blackboard: key %q is nil", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("blackboard: key %q holds %T, want %T", key, v, zero)
	}
	return t, nil
}
