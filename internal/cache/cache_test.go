// ABOUTME: Tests for the metadata TTL cache.
// ABOUTME: Validates expiry, LRU eviction, GetOrLoad, cleanup, and concurrency safety.

package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMissing(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	_, ok := c.Get("never-set")
	assert.False(t, ok)
}

func TestCache_SetGet(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	c.Set("version", "Quarkdown 1.6.0")
	v, ok := c.Get("version")
	require.True(t, ok)
	assert.Equal(t, "Quarkdown 1.6.0", v)
}

func TestCache_Expiry(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	defer c.Close()

	c.Set("k", 1)
	_, ok := c.Get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry removed on read")
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // a is now most recent
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_SetOverwritesWithoutEviction(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	assert.Equal(t, 2, c.Len())
	v, _ := c.Get("a")
	assert.Equal(t, 10, v)
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	calls := 0
	load := func() (any, error) {
		calls++
		return []string{"html", "pdf"}, nil
	}

	v, err := c.GetOrLoad("formats", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"html", "pdf"}, v)

	_, err = c.GetOrLoad("formats", load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	_, err := c.GetOrLoad("help", func() (any, error) { return nil, errors.New("jvm missing") })
	require.Error(t, err)

	_, ok := c.Get("help")
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	c.Set("k", 1)
	c.Delete("k")
	c.Delete("absent")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_RunCleanup(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.runCleanup()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.order.Len())
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestCache_Concurrency(t *testing.T) {
	c := New(time.Minute, 50)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k-%d", (i*j)%70)
				c.Set(key, j)
				_, _ = c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
