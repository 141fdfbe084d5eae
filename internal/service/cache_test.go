package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetExpire(t *testing.T) {
	c := NewCache(time.Hour)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, time.Millisecond)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("b")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, 2, stats["total_items"])
	assert.Equal(t, 1, stats["expired_items"])
	assert.Equal(t, uint64(1), stats["hits"])
	assert.Equal(t, uint64(1), stats["misses"])

	c.cleanup()
	assert.Equal(t, 1, c.Size())

	c.Delete("a")
	assert.Equal(t, 0, c.Size())
}

func TestCache_GetOrLoad(t *testing.T) {
	c := NewCache(time.Hour)
	defer c.Close()
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(ctx, "k", time.Minute, loader)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}
	assert.Equal(t, 1, calls)

	c.Clear()
	_, err := c.GetOrLoad(ctx, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// failures are not cached
	boom := errors.New("boom")
	_, err = c.GetOrLoad(ctx, "bad", time.Minute, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("bad")
	assert.False(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.GetOrLoad(cancelled, "other", time.Minute, loader)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache_GetOrLoadOverlappingClear(t *testing.T) {
	c := NewCache(time.Hour)
	defer c.Close()
	ctx := context.Background()

	v, err := c.GetOrLoad(ctx, "k", time.Minute, func(context.Context) (interface{}, error) {
		c.Clear()
		return "old", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	_, ok := c.Get("k")
	assert.False(t, ok, "a load that overlapped Clear must not be stored")

	v, err = c.GetOrLoad(ctx, "k", time.Minute, func(context.Context) (interface{}, error) {
		return "new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	cached, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", cached)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := NewCache(time.Millisecond)
	c.Close()
	assert.NotPanics(t, c.Close)
}
