package notify

import (
	"fmt"
	"maps"
	"sync"
)

// Map is a keyed collection that raises MapChange events for every
// structural mutation.
type Map[K comparable, V any] struct {
	Source
	mu      sync.RWMutex
	entries map[K]V
	changes handlers[func(MapChange)]
}

// NewMap returns a map holding a copy of entries.
func NewMap[K comparable, V any](entries map[K]V) *Map[K, V] {
	m := &Map[K, V]{entries: make(map[K]V, len(entries))}
	maps.Copy(m.entries, entries)
	return m
}

// OnMapChanged subscribes h to structural changes.
func (m *Map[K, V]) OnMapChanged(h func(MapChange)) func() {
	return m.changes.add(h)
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Get returns the value stored under k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[k]
	return v, ok
}

// At returns the value stored under k or ErrKeyNotFound.
func (m *Map[K, V]) At(k K) (V, error) {
	v, ok := m.Get(k)
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrKeyNotFound, k)
	}
	return v, nil
}

// Set stores v under k, raising Add or Replace.
func (m *Map[K, V]) Set(k K, v V) {
	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[K]V)
	}
	old, existed := m.entries[k]
	m.entries[k] = v
	m.mu.Unlock()

	if existed {
		m.raise(MapChange{
			Action:   Replace,
			NewItems: []KeyValue{{Key: k, Value: v}},
			OldItems: []KeyValue{{Key: k, Value: old}},
		}, false)
		return
	}
	m.raise(MapChange{Action: Add, NewItems: []KeyValue{{Key: k, Value: v}}}, true)
}

// Delete removes k, reporting whether it was present.
func (m *Map[K, V]) Delete(k K) bool {
	m.mu.Lock()
	old, existed := m.entries[k]
	delete(m.entries, k)
	m.mu.Unlock()
	if !existed {
		return false
	}
	m.raise(MapChange{Action: Remove, OldItems: []KeyValue{{Key: k, Value: old}}}, true)
	return true
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
	m.raise(MapChange{Action: Reset}, true)
}

func (m *Map[K, V]) raise(ch MapChange, lenChanged bool) {
	for _, h := range m.changes.snapshot() {
		h(ch)
	}
	if lenChanged {
		m.RaisePropertyChanged(m, "Len")
	}
	m.RaisePropertyChanged(m, ItemsProperty)
}
