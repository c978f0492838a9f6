package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisCounter(t *testing.T) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return NewRedisCounter(rc), mr
}

func TestRedisCounter_StopsAtCeiling(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCounter(t)

	for i := 1; i <= 10; i++ {
		n, ok, err := c.IncrIfBelow(ctx, "quota:session:s", 10, time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, n)
	}
	n, ok, err := c.IncrIfBelow(ctx, "quota:session:s", 10, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 10, n)

	got, err := c.Get(ctx, "quota:session:s")
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestRedisCounter_TTLSetOnFirstUse(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCounter(t)

	_, _, err := c.IncrIfBelow(ctx, "quota:session:s", 10, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("quota:session:s"))

	mr.FastForward(30 * time.Minute)
	_, _, err = c.IncrIfBelow(ctx, "quota:session:s", 10, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, mr.TTL("quota:session:s"))

	mr.FastForward(31 * time.Minute)
	got, err := c.Get(ctx, "quota:session:s")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestRedisCounter_MissingKeyIsZero(t *testing.T) {
	c, _ := newRedisCounter(t)
	n, err := c.Get(context.Background(), "quota:session:none")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGate_RedisOutageKeepsCeiling(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	g := NewGate("s", 10, time.Hour, NewRedisCounter(rc), NewMemoryCounter(), zap.NewNop())

	for i := 0; i < 10; i++ {
		require.True(t, g.TryConsume(ctx))
	}
	// Every call on a closed client fails, like an unreachable server.
	require.NoError(t, rc.Close())
	for i := 0; i < 20; i++ {
		assert.False(t, g.TryConsume(ctx))
	}
	assert.Equal(t, 10, g.Count(ctx))
}
