package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter stores per-session usage counts.
type Counter interface {
	// Get returns the current count for key.
	Get(ctx context.Context, key string) (int, error)
	// IncrIfBelow increments key when its value is below ceiling. It returns
	// the new count and whether the increment happened.
	IncrIfBelow(ctx context.Context, key string, ceiling int, ttl time.Duration) (int, bool, error)
}

// consumeScript increments KEYS[1] only while it is below ARGV[1] and
// returns the new value, or 0 when refused. The TTL is set on first use so
// the counter dies with the session.
var consumeScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0')
if v >= tonumber(ARGV[1]) then
  return 0
end
v = redis.call('INCR', KEYS[1])
if v == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return v
`)

// RedisCounter keeps counts in Redis so they survive process restarts.
type RedisCounter struct {
	rc *redis.Client
}

func NewRedisCounter(rc *redis.Client) *RedisCounter {
	return &RedisCounter{rc: rc}
}

func (c *RedisCounter) Get(ctx context.Context, key string) (int, error) {
	n, err := c.rc.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (c *RedisCounter) IncrIfBelow(ctx context.Context, key string, ceiling int, ttl time.Duration) (int, bool, error) {
	res, err := consumeScript.Run(ctx, c.rc, []string{key}, ceiling, ttl.Milliseconds()).Int()
	if err != nil {
		return 0, false, err
	}
	if res == 0 {
		return ceiling, false, nil
	}
	return res, true, nil
}

type memoryEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryCounter is the in-process fallback.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: map[string]memoryEntry{}, now: time.Now}
}

// Set forces the count for key, for seeding sessions in tests.
func (c *MemoryCounter) Set(key string, n int, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{count: n, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryCounter) getLocked(key string) int {
	e, ok := c.entries[key]
	if !ok {
		return 0
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return 0
	}
	return e.count
}

func (c *MemoryCounter) Get(ctx context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key), nil
}

func (c *MemoryCounter) IncrIfBelow(ctx context.Context, key string, ceiling int, ttl time.Duration) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.getLocked(key)
	if n >= ceiling {
		return n, false, nil
	}
	e, ok := c.entries[key]
	if !ok {
		e.expiresAt = c.now().Add(ttl)
	}
	e.count = n + 1
	c.entries[key] = e
	return e.count, true, nil
}

// Raise lifts the count for key to at least n. Lower counts are never
// written over higher ones.
func (c *MemoryCounter) Raise(key string, n int, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getLocked(key) >= n {
		return
	}
	e, ok := c.entries[key]
	if !ok {
		e.expiresAt = c.now().Add(ttl)
	}
	e.count = n
	c.entries[key] = e
}
