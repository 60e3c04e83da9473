package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "session:s1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "session:s1", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "session:s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "session:s1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_GetError(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:submit:s1", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:submit:s1", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:submit:s1", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}

func TestRateLimiter_FixedWindowResets(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := New(mr.Addr()).RateLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := rl.Allow(ctx, "rl:k", 1, time.Minute)
		require.NoError(t, err)
		mr.FastForward(20 * time.Second)
	}
	mr.FastForward(time.Second)
	// later hits did not extend the window opened by the first one
	ok, n, err := rl.Allow(ctx, "rl:k", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}
