package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenCounter struct{}

func (brokenCounter) Get(ctx context.Context, key string) (int, error) {
	return 0, errors.New("redis down")
}

func (brokenCounter) IncrIfBelow(ctx context.Context, key string, ceiling int, ttl time.Duration) (int, bool, error) {
	return 0, false, errors.New("redis down")
}

// flakyCounter wraps a memory counter and fails every call while down is set.
type flakyCounter struct {
	*MemoryCounter
	down bool
}

func (c *flakyCounter) Get(ctx context.Context, key string) (int, error) {
	if c.down {
		return 0, errors.New("redis down")
	}
	return c.MemoryCounter.Get(ctx, key)
}

func (c *flakyCounter) IncrIfBelow(ctx context.Context, key string, ceiling int, ttl time.Duration) (int, bool, error) {
	if c.down {
		return 0, false, errors.New("redis down")
	}
	return c.MemoryCounter.IncrIfBelow(ctx, key, ceiling, ttl)
}

func TestGate_MonotonicUntilCeiling(t *testing.T) {
	ctx := context.Background()
	g := NewGate("s1", 10, time.Hour, NewMemoryCounter(), nil, zap.NewNop())

	prev := g.Count(ctx)
	for i := 0; i < 10; i++ {
		require.False(t, g.LimitReached(ctx))
		require.True(t, g.TryConsume(ctx))
		n := g.Count(ctx)
		require.Equal(t, prev+1, n)
		prev = n
	}
	assert.True(t, g.LimitReached(ctx))
	assert.Equal(t, 0, g.Remaining(ctx))

	for i := 0; i < 5; i++ {
		assert.False(t, g.TryConsume(ctx))
	}
	assert.Equal(t, 10, g.Count(ctx))
	assert.Equal(t, Usage{Count: 10, Ceiling: 10, LimitReached: true}, g.Usage(ctx))
}

func TestGate_LastUnit(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()
	c.Set("quota:session:s9", 9, time.Hour)
	g := NewGate("s9", 10, time.Hour, c, nil, zap.NewNop())

	assert.Equal(t, 1, g.Remaining(ctx))
	assert.True(t, g.TryConsume(ctx))
	assert.True(t, g.LimitReached(ctx))
	assert.False(t, g.TryConsume(ctx))
}

func TestGate_SessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()
	a := NewGate("a", 2, time.Hour, c, nil, zap.NewNop())
	b := NewGate("b", 2, time.Hour, c, nil, zap.NewNop())

	require.True(t, a.TryConsume(ctx))
	require.True(t, a.TryConsume(ctx))
	assert.False(t, a.TryConsume(ctx))
	assert.True(t, b.TryConsume(ctx))
	assert.Equal(t, 1, b.Count(ctx))
}

func TestGate_FallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	g := NewGate("s", 1, time.Hour, brokenCounter{}, NewMemoryCounter(), zap.NewNop())

	assert.True(t, g.TryConsume(ctx))
	assert.Equal(t, 1, g.Count(ctx))
	assert.False(t, g.TryConsume(ctx))
}

func TestMemoryCounter_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCounter()
	c.now = func() time.Time { return now }

	n, ok, err := c.IncrIfBelow(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, n)

	now = now.Add(2 * time.Minute)
	n, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGate_OutageAfterCeilingGrantsNothing(t *testing.T) {
	ctx := context.Background()
	primary := &flakyCounter{MemoryCounter: NewMemoryCounter()}
	g := NewGate("s", 10, time.Hour, primary, NewMemoryCounter(), zap.NewNop())

	for i := 0; i < 10; i++ {
		require.True(t, g.TryConsume(ctx))
	}
	primary.down = true
	for i := 0; i < 20; i++ {
		assert.False(t, g.TryConsume(ctx))
	}
	assert.Equal(t, Usage{Count: 10, Ceiling: 10, LimitReached: true}, g.Usage(ctx))
}

func TestGate_OutageMidSessionKeepsCeiling(t *testing.T) {
	ctx := context.Background()
	primary := &flakyCounter{MemoryCounter: NewMemoryCounter()}
	g := NewGate("s", 10, time.Hour, primary, NewMemoryCounter(), zap.NewNop())

	granted := 0
	consume := func(n int) {
		for i := 0; i < n; i++ {
			if g.TryConsume(ctx) {
				granted++
			}
		}
	}

	consume(4)
	require.Equal(t, 4, g.Count(ctx))

	primary.down = true
	consume(3)
	assert.Equal(t, 7, g.Count(ctx))

	// The primary comes back still holding 4.
	primary.down = false
	assert.Equal(t, 7, g.Count(ctx))
	consume(10)

	assert.Equal(t, 10, granted)
	assert.Equal(t, 10, g.Count(ctx))
	assert.True(t, g.LimitReached(ctx))
}

func TestGate_NonPositiveTTLUsesDefault(t *testing.T) {
	ctx := context.Background()
	g := NewGate("s", 2, 0, NewMemoryCounter(), nil, zap.NewNop())

	granted := 0
	for i := 0; i < 5; i++ {
		if g.TryConsume(ctx) {
			granted++
		}
	}
	assert.Equal(t, 2, granted)
	assert.Equal(t, 2, g.Count(ctx))
}

func TestMemoryCounter_RaiseNeverLowers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	c.Raise("k", 3, time.Hour)
	c.Raise("k", 1, time.Hour)
	n, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
