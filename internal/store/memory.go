package store

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no entry exists for a given key.
	ErrNotFound = errors.New("no entry for key")
)

// Map is a concurrency-safe in-memory mapping. Entries are never evicted.
type Map[K cmp.Ordered, V any] struct {
	mu sync.RWMutex

	data map[K]V
}

// NewMap creates an empty Map.
func NewMap[K cmp.Ordered, V any]() *Map[K, V] {
	return &Map[K, V]{
		data: make(map[K]V),
	}
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return v, nil
}

// Put inserts or overwrites the value for key.
func (m *Map[K, V]) Put(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
}

// Keys returns all keys in ascending order.
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	keys := make([]K, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Len returns the number of stored entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// List holds an ordered sequence that is only ever replaced as a whole.
// Readers get copies, so a reader never observes a partially written list.
type List[T any] struct {
	mu sync.RWMutex

	items     []T
	updatedAt time.Time
}

// NewList creates an empty List.
func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Snapshot returns a copy of the current items. Before the first Replace it
// returns an empty, non-nil slice.
func (l *List[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Replace swaps the whole sequence for items. The caller's slice is copied.
func (l *List[T]) Replace(items []T, at time.Time) {
	next := make([]T, len(items))
	copy(next, items)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = next
	l.updatedAt = at
}

// UpdatedAt returns the time passed to the most recent Replace.
func (l *List[T]) UpdatedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updatedAt
}
