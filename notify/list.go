package notify

import (
	"fmt"
	"iter"
	"slices"
	"sync"
)

// List is an ordered collection that raises CollectionChange events for every
// structural mutation and a "Len" property change whenever its length moves.
type List[T any] struct {
	Source
	mu         sync.RWMutex
	items      []T
	collection handlers[func(CollectionChange)]
}

// NewList returns a list holding a copy of items.
func NewList[T any](items ...T) *List[T] {
	return &List[T]{items: slices.Clone(items)}
}

// OnCollectionChanged subscribes h to structural changes.
func (l *List[T]) OnCollectionChanged(h func(CollectionChange)) func() {
	return l.collection.add(h)
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// At returns the item at index i.
func (l *List[T]) At(i int) (T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.items) {
		var zero T
		return zero, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, len(l.items))
	}
	return l.items[i], nil
}

// Items returns a copy of the current items.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// All iterates over a snapshot of the items.
func (l *List[T]) All() iter.Seq[T] {
	return slices.Values(l.Items())
}

// LastIndexFunc returns the index of the last item satisfying pred, or -1.
func (l *List[T]) LastIndexFunc(pred func(T) bool) int {
	return FindLastIndex(l.All(), pred)
}

// Add appends v.
func (l *List[T]) Add(v T) {
	l.mu.Lock()
	i := len(l.items)
	l.items = append(l.items, v)
	l.mu.Unlock()
	l.raise(CollectionChange{Action: Add, NewIndex: i, NewItems: []any{v}, OldIndex: -1}, true)
}

// Insert places v at index i, shifting later items.
func (l *List[T]) Insert(i int, v T) error {
	l.mu.Lock()
	if i < 0 || i > len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return fmt.Errorf("%w: insert at %d, length %d", ErrIndexOutOfRange, i, n)
	}
	l.items = slices.Insert(l.items, i, v)
	l.mu.Unlock()
	l.raise(CollectionChange{Action: Add, NewIndex: i, NewItems: []any{v}, OldIndex: -1}, true)
	return nil
}

// RemoveAt removes the item at index i.
func (l *List[T]) RemoveAt(i int) error {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return fmt.Errorf("%w: remove at %d, length %d", ErrIndexOutOfRange, i, n)
	}
	old := l.items[i]
	l.items = slices.Delete(l.items, i, i+1)
	l.mu.Unlock()
	l.raise(CollectionChange{Action: Remove, NewIndex: -1, OldIndex: i, OldItems: []any{old}}, true)
	return nil
}

// Set replaces the item at index i.
func (l *List[T]) Set(i int, v T) error {
	l.mu.Lock()
	if i < 0 || i >= len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return fmt.Errorf("%w: set at %d, length %d", ErrIndexOutOfRange, i, n)
	}
	old := l.items[i]
	l.items[i] = v
	l.mu.Unlock()
	l.raise(CollectionChange{Action: Replace, NewIndex: i, NewItems: []any{v}, OldIndex: i, OldItems: []any{old}}, false)
	return nil
}

// Move relocates the item at index from to index to.
func (l *List[T]) Move(from, to int) error {
	l.mu.Lock()
	n := len(l.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		l.mu.Unlock()
		return fmt.Errorf("%w: move %d->%d, length %d", ErrIndexOutOfRange, from, to, n)
	}
	v := l.items[from]
	l.items = slices.Delete(l.items, from, from+1)
	l.items = slices.Insert(l.items, to, v)
	l.mu.Unlock()
	l.raise(CollectionChange{Action: Move, NewIndex: to, NewItems: []any{v}, OldIndex: from, OldItems: []any{v}}, false)
	return nil
}

// Clear removes every item.
func (l *List[T]) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
	l.raise(CollectionChange{Action: Reset, NewIndex: -1, OldIndex: -1}, true)
}

func (l *List[T]) raise(ch CollectionChange, lenChanged bool) {
	for _, h := range l.collection.snapshot() {
		h(ch)
	}
	if lenChanged {
		l.RaisePropertyChanged(l, "Len")
	}
	l.RaisePropertyChanged(l, ItemsProperty)
}

// FindLastIndex returns the zero-based position of the last element of seq
// satisfying pred, or -1 when none does.
func FindLastIndex[T any](seq iter.Seq[T], pred func(T) bool) int {
	last := -1
	i := 0
	for v := range seq {
		if pred(v) {
			last = i
		}
		i++
	}
	return last
}
