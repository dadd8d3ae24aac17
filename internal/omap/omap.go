// Package omap implements a fixed-capacity, build-once sorted map with
// binary-search lookup, the Go counterpart of modm-canopen's ConstexprMap.
//
// A Builder accumulates entries, Build sorts them once and freezes the
// result, and the built Map never grows. The capacity given to NewBuilder
// only preallocates storage: Insert does not enforce it and keeps
// appending past it. This keeps the object dictionary free of heap churn
// after start-up, matching the "no dynamic allocation at runtime"
// constraint of the device core.
package omap

import "sort"

// Map is a sorted, fixed-size key/value table supporting O(log n) lookup.
type Map[K comparable, V any] struct {
	keys []K
	vals []V
	less func(a, b K) bool
}

// Builder accumulates (key, value) pairs before a single sort/freeze.
type Builder[K comparable, V any] struct {
	keys []K
	vals []V
	less func(a, b K) bool
}

// NewBuilder creates a builder with the given capacity hint and ordering.
func NewBuilder[K comparable, V any](capacity int, less func(a, b K) bool) *Builder[K, V] {
	return &Builder[K, V]{
		keys: make([]K, 0, capacity),
		vals: make([]V, 0, capacity),
		less: less,
	}
}

// Insert appends a pair. Order does not matter; Build sorts everything.
func (b *Builder[K, V]) Insert(key K, value V) {
	b.keys = append(b.keys, key)
	b.vals = append(b.vals, value)
}

// Len returns the number of pairs inserted so far.
func (b *Builder[K, V]) Len() int { return len(b.keys) }

// Build sorts the accumulated pairs by key and returns the immutable map.
func (b *Builder[K, V]) Build() *Map[K, V] {
	idx := make([]int, len(b.keys))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return b.less(b.keys[idx[i]], b.keys[idx[j]]) })

	m := &Map[K, V]{
		keys: make([]K, len(idx)),
		vals: make([]V, len(idx)),
		less: b.less,
	}
	for i, j := range idx {
		m.keys[i] = b.keys[j]
		m.vals[i] = b.vals[j]
	}
	return m
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int { return len(m.keys) }

func (m *Map[K, V]) search(key K) (int, bool) {
	i := sort.Search(len(m.keys), func(i int) bool { return !m.less(m.keys[i], key) })
	if i < len(m.keys) && !m.less(key, m.keys[i]) {
		return i, true
	}
	return i, false
}

// Lookup returns the value stored for key and whether it was found.
func (m *Map[K, V]) Lookup(key K) (V, bool) {
	if i, ok := m.search(key); ok {
		return m.vals[i], true
	}
	var zero V
	return zero, false
}

// LookupRef returns a pointer to the stored value so callers can mutate it
// in place after the map has been built.
func (m *Map[K, V]) LookupRef(key K) (*V, bool) {
	if i, ok := m.search(key); ok {
		return &m.vals[i], true
	}
	return nil, false
}

// Keys returns the keys in sorted order.
func (m *Map[K, V]) Keys() []K { return m.keys }

// Each visits every (key, value) pair in sorted key order.
func (m *Map[K, V]) Each(fn func(key K, value V)) {
	for i := range m.keys {
		fn(m.keys[i], m.vals[i])
	}
}
