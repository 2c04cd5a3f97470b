package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// lruCache adapts hashicorp/golang-lru/v2's generic LRU to the Cache
// interface.
type lruCache[V any] struct {
	counters
	inner *lru.Cache[string, V]
}

func newLRU[V any](capacity int) *lruCache[V] {
	c := &lruCache[V]{}
	inner, err := lru.NewWithEvict[string, V](capacity, func(string, V) {
		c.evict(1)
	})
	if err != nil {
		// Only returns an error for capacity <= 0, already guarded in New.
		inner, _ = lru.New[string, V](1)
	}
	c.inner = inner
	return c
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.hit()
	} else {
		c.miss()
	}
	return v, ok
}

func (c *lruCache[V]) Set(key string, value V) {
	c.inner.Add(key, value)
}

func (c *lruCache[V]) Delete(key string) {
	c.inner.Remove(key)
}

func (c *lruCache[V]) Clear() {
	c.inner.Purge()
}

func (c *lruCache[V]) Stats() Stats {
	return c.snapshot()
}

func (c *lruCache[V]) Len() int {
	return c.inner.Len()
}
