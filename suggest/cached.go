package suggest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cppla/branch/models"
)

// Cache stores opaque values with a ttl.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Cached memoizes list suggestions by prompt. Free-text results
// (encouragement, recap) are always generated fresh.
type Cached struct {
	Client
	cache Cache
	ttl   time.Duration
}

func NewCached(inner Client, cache Cache, ttl time.Duration) *Cached {
	return &Cached{Client: inner, cache: cache, ttl: ttl}
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "suggest:" + hex.EncodeToString(sum[:])
}

func (c *Cached) remember(ctx context.Context, prompt string, load func() ([]string, error)) ([]string, error) {
	key := cacheKey(prompt)
	if b, ok := c.cache.Get(ctx, key); ok {
		var list []string
		if json.Unmarshal(b, &list) == nil {
			return list, nil
		}
	}
	list, err := load()
	if err != nil || len(list) == 0 {
		return list, err
	}
	if b, err := json.Marshal(list); err == nil {
		c.cache.Set(ctx, key, b, c.ttl)
	}
	return list, nil
}

func (c *Cached) Focus(ctx context.Context, history []models.CheckIn) ([]string, error) {
	return c.remember(ctx, focusPrompt(history), func() ([]string, error) { return c.Client.Focus(ctx, history) })
}

func (c *Cached) Goals(ctx context.Context, focus string) ([]string, error) {
	return c.remember(ctx, goalsPrompt(focus), func() ([]string, error) { return c.Client.Goals(ctx, focus) })
}

func (c *Cached) Replies(ctx context.Context, checkIn models.CheckIn, author, from models.User) ([]string, error) {
	return c.remember(ctx, repliesPrompt(checkIn, author, from), func() ([]string, error) {
		return c.Client.Replies(ctx, checkIn, author, from)
	})
}
