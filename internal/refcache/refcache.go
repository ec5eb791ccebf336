// Package refcache implements a reference-counted keyed cache.
//
// An entry exists exactly while its count is positive. Acquire and Release
// mutate counts only under the cache lock; the create callback also runs
// under the lock and must therefore be cheap and must not re-enter the cache.
// Expensive initialisation belongs to the caller, after Acquire returns.
package refcache

import "sync"

type entry[V comparable] struct {
	value V
	count int
}

// Cache maps keys to counted values. The zero value is ready to use.
type Cache[K comparable, V comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
}

// Acquire returns the value stored under key, incrementing its count, or
// stores the result of create with a count of one. created reports which
// happened.
func (c *Cache[K, V]) Acquire(key K, create func() V) (v V, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.count++
		return e.value, false
	}
	if c.entries == nil {
		c.entries = make(map[K]*entry[V])
	}
	v = create()
	c.entries[key] = &entry[V]{value: v, count: 1}
	return v, true
}

// Release decrements the count of key on behalf of v. The entry is removed
// when the count reaches zero; evicted is true only when v was the value
// removed. A release for a value that no longer owns the key is ignored and
// reports evicted as false.
func (c *Cache[K, V]) Release(key K, v V) (remaining int, evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.value != v {
		return 0, false
	}
	e.count--
	if e.count > 0 {
		return e.count, false
	}
	delete(c.entries, key)
	return 0, true
}

// Count returns the current count of key.
func (c *Cache[K, V]) Count(key K) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.count
	}
	return 0
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Values returns a snapshot of the resident values.
func (c *Cache[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]V, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.value)
	}
	return out
}
