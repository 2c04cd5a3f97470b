package cache

import (
	lruv1 "github.com/hashicorp/golang-lru"
)

// arcCache adapts hashicorp/golang-lru's (v1) adaptive replacement cache.
type arcCache[V any] struct {
	counters
	inner *lruv1.ARCCache
}

func newARC[V any](capacity int) *arcCache[V] {
	inner, err := lruv1.NewARC(capacity)
	if err != nil {
		inner, _ = lruv1.NewARC(1)
	}
	return &arcCache[V]{inner: inner}
}

func (c *arcCache[V]) Get(key string) (V, bool) {
	raw, ok := c.inner.Get(key)
	if !ok {
		c.miss()
		var zero V
		return zero, false
	}
	c.hit()
	return raw.(V), true
}

func (c *arcCache[V]) Set(key string, value V) {
	existed := c.inner.Contains(key)
	before := c.inner.Len()
	c.inner.Add(key, value)
	after := c.inner.Len()
	if !existed && after <= before {
		c.evict(1)
	}
}

func (c *arcCache[V]) Delete(key string) {
	c.inner.Remove(key)
}

func (c *arcCache[V]) Clear() {
	c.inner.Purge()
}

func (c *arcCache[V]) Stats() Stats {
	return c.snapshot()
}

func (c *arcCache[V]) Len() int {
	return c.inner.Len()
}
