package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheStrategiesShareContract(t *testing.T) {
	for _, strategy := range []Strategy{StrategyLRU, Strategy2Q, StrategyARC, StrategyRadix} {
		t.Run(string(strategy), func(t *testing.T) {
			c := New[string](strategy, 2)

			_, ok := c.Get("a")
			assert.False(t, ok)

			c.Set("a", "1")
			v, ok := c.Get("a")
			assert.True(t, ok)
			assert.Equal(t, "1", v)

			c.Set("b", "2")
			c.Set("c", "3") // forces eviction at capacity 2

			assert.LessOrEqual(t, c.Len(), 2)

			c.Delete("c")
			_, ok = c.Get("c")
			assert.False(t, ok)

			stats := c.Stats()
			assert.GreaterOrEqual(t, stats.Hits, uint64(1))
			assert.GreaterOrEqual(t, stats.Misses, uint64(1))

			c.Clear()
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestRadixCacheSharesCommonPrefixes(t *testing.T) {
	c := New[int](StrategyRadix, 10)
	c.Set("project:alpha", 1)
	c.Set("project:alpha-beta", 2)
	c.Set("project:gamma", 3)

	v, ok := c.Get("project:alpha-beta")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = c.Get("project:alpha")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestNewFallsBackToLRUForUnknownStrategy(t *testing.T) {
	c := New[int](Strategy("bogus"), 4)
	c.Set("x", 1)
	v, ok := c.Get("x")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
