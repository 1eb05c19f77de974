package lzc

import (
	"iter"
	"reflect"
	"slices"
)

// Byte is a value carried with the byte (uchar) wire tag, which the
// container format distinguishes from the uint8 tag.
type Byte uint8

// A Map is an insertion-ordered property map. The zero value is not
// usable; construct with [NewMap].
type Map struct {
	keys []string
	vals map[string]any
}

// NewMap returns an empty property map.
func NewMap() *Map {
	return &Map{vals: make(map[string]any)}
}

// Set stores v under key. Setting an existing key replaces its value
// in place without changing its position.
func (m *Map) Set(key string, v any) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

// Delete removes key, if present.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	if i := slices.Index(m.keys, key); i >= 0 {
		m.keys = append(m.keys[:i], m.keys[i+1:]...)
	}
}

// Len returns the number of keys.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string { return slices.Clone(m.keys) }

// All iterates the entries in insertion order.
func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range m.keys {
			if !yield(k, m.vals[k]) {
				return
			}
		}
	}
}

// Clear removes all entries.
func (m *Map) Clear() {
	m.keys = m.keys[:0]
	clear(m.vals)
}

// Equal reports whether m and o hold the same keys in the same order
// with equal values. Nested maps are compared recursively.
func (m *Map) Equal(o *Map) bool {
	if m == nil || o == nil {
		return m == o
	}
	if !slices.Equal(m.keys, o.keys) {
		return false
	}
	for _, k := range m.keys {
		if !valueEqual(m.vals[k], o.vals[k]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case *Map:
		bv, ok := b.(*Map)
		return ok && av.Equal(bv)
	case []*Map:
		bv, ok := b.([]*Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !av[i].Equal(bv[i]) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}
