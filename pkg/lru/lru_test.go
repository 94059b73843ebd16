package lru

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAdd(t *testing.T) {
	c := New[string, int](4)

	c.Add("a", 1)
	c.Add("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](3)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch "a" so "b" becomes the oldest.
	_, _ = c.Get("a")
	assert.True(t, c.Add("d", 4))

	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"d", "a", "c"}, c.Keys())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestAddExistingUpdatesInPlace(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)

	assert.False(t, c.Add("a", 10))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	v, _ := c.Get("a")
	assert.Equal(t, 10, v)
}

func TestRemoveAndPurge(t *testing.T) {
	c := New[int, string](0)
	assert.Equal(t, 128, c.Capacity())

	c.Add(1, "x")
	c.Add(2, "y")
	assert.True(t, c.Remove(1))
	assert.False(t, c.Remove(1))
	assert.Equal(t, 1, c.Len())

	_, _ = c.Get(2)
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestConcurrentAccess(t *testing.T) {
	c := New[string, int](16)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%40)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}
