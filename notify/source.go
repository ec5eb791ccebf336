package notify

import (
	"maps"
	"slices"
	"sync"
)

// handlers is a concurrency-safe, ordered set of subscribed callbacks.
type handlers[H any] struct {
	mu   sync.Mutex
	next uint64
	set  map[uint64]H
}

func (hs *handlers[H]) add(h H) func() {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.set == nil {
		hs.set = make(map[uint64]H)
	}
	id := hs.next
	hs.next++
	hs.set[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			hs.mu.Lock()
			delete(hs.set, id)
			hs.mu.Unlock()
		})
	}
}

// snapshot returns the current handlers in subscription order.
func (hs *handlers[H]) snapshot() []H {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if len(hs.set) == 0 {
		return nil
	}
	ids := slices.Sorted(maps.Keys(hs.set))
	out := make([]H, 0, len(ids))
	for _, id := range ids {
		out = append(out, hs.set[id])
	}
	return out
}

func (hs *handlers[H]) len() int {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return len(hs.set)
}

// Source is an embeddable PropertyNotifier. The zero value is ready to use.
//
//	type Person struct {
//		notify.Source
//		name string
//	}
//
//	func (p *Person) SetName(v string) { notify.Set(&p.Source, p, &p.name, v, "Name") }
type Source struct {
	property handlers[PropertyHandler]
}

// OnPropertyChanged subscribes h to property changes.
func (s *Source) OnPropertyChanged(h PropertyHandler) func() {
	return s.property.add(h)
}

// RaisePropertyChanged notifies every subscriber that property changed on sender.
func (s *Source) RaisePropertyChanged(sender any, property string) {
	for _, h := range s.property.snapshot() {
		h(sender, property)
	}
}

// PropertySubscribers reports how many handlers are currently subscribed.
func (s *Source) PropertySubscribers() int {
	return s.property.len()
}

// Set assigns v to *field and raises property on sender when the value
// actually changed. It reports whether a change was raised.
func Set[T comparable](s *Source, sender any, field *T, v T, property string) bool {
	if *field == v {
		return false
	}
	*field = v
	s.RaisePropertyChanged(sender, property)
	return true
}
