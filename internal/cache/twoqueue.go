package cache

import (
	lruv1 "github.com/hashicorp/golang-lru"
)

// twoQCache adapts hashicorp/golang-lru's (v1, non-generic) TwoQueueCache.
// The underlying cache stores interface{} values; Get type-asserts back
// to V, which is safe because Set is the only writer and is generic over
// the same V.
type twoQCache[V any] struct {
	counters
	inner *lruv1.TwoQueueCache
}

func new2Q[V any](capacity int) *twoQCache[V] {
	inner, err := lruv1.New2Q(capacity)
	if err != nil {
		inner, _ = lruv1.New2Q(1)
	}
	return &twoQCache[V]{inner: inner}
}

func (c *twoQCache[V]) Get(key string) (V, bool) {
	raw, ok := c.inner.Get(key)
	if !ok {
		c.miss()
		var zero V
		return zero, false
	}
	c.hit()
	return raw.(V), true
}

func (c *twoQCache[V]) Set(key string, value V) {
	_, existed := c.inner.Peek(key)
	before := c.inner.Len()
	c.inner.Add(key, value)
	after := c.inner.Len()
	// TwoQueueCache has no eviction callback; a new key that didn't grow
	// Len must have pushed something else out of one of the two queues.
	if !existed && after <= before {
		c.evict(1)
	}
}

func (c *twoQCache[V]) Delete(key string) {
	c.inner.Remove(key)
}

func (c *twoQCache[V]) Clear() {
	c.inner.Purge()
}

func (c *twoQCache[V]) Stats() Stats {
	return c.snapshot()
}

func (c *twoQCache[V]) Len() int {
	return c.inner.Len()
}
