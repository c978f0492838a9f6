// Package quota limits how many write or suggestion actions a session may
// perform.
package quota

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultCeiling is the number of actions allowed per session.
	DefaultCeiling = 10
	// DefaultTTL is how long a session's counter lives when none is given.
	DefaultTTL = 24 * time.Hour
)

// Usage is the counter state shown to the user.
type Usage struct {
	Count        int  `json:"count"`
	Ceiling      int  `json:"ceiling"`
	LimitReached bool `json:"limit_reached"`
}

// Gate counts actions for one session. Counts only grow; once the ceiling is
// reached TryConsume refuses for the rest of the session.
type Gate struct {
	sessionID string
	ceiling   int
	ttl       time.Duration
	primary   Counter
	fallback  *MemoryCounter
	log       *zap.SugaredLogger

	mu sync.Mutex
	// seen is the highest count this gate has observed or granted. Neither
	// counter may report less, and no unit is granted at or above ceiling.
	seen int
}

// NewGate builds a gate for sessionID. When primary fails the gate counts in
// fallback, seeded with what it has already seen from primary.
func NewGate(sessionID string, ceiling int, ttl time.Duration, primary Counter, fallback *MemoryCounter, logger *zap.Logger) *Gate {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if fallback == nil {
		fallback = NewMemoryCounter()
	}
	if primary == nil {
		primary = fallback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		sessionID: sessionID,
		ceiling:   ceiling,
		ttl:       ttl,
		primary:   primary,
		fallback:  fallback,
		log:       logger.Sugar(),
	}
}

func (g *Gate) key() string {
	return "quota:session:" + g.sessionID
}

// TryConsume takes one unit and reports whether it was available.
func (g *Gate) TryConsume(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seen >= g.ceiling {
		return false
	}
	n, ok, err := g.primary.IncrIfBelow(ctx, g.key(), g.ceiling, g.ttl)
	if err != nil {
		g.log.Warnw("quota counter unavailable, using memory", "session", g.sessionID, "seen", g.seen, "error", err)
		g.fallback.Raise(g.key(), g.seen, g.ttl)
		n, ok, _ = g.fallback.IncrIfBelow(ctx, g.key(), g.ceiling, g.ttl)
	}
	if ok && n <= g.seen {
		// A counter that lost its state cannot hand out units already spent.
		n = g.seen + 1
	}
	if n > g.seen {
		g.seen = n
	}
	return ok
}

// Count returns the units consumed so far. It never goes below a count the
// gate has already reported.
func (g *Gate) Count(ctx context.Context) int {
	n, err := g.primary.Get(ctx, g.key())
	if err != nil {
		n, _ = g.fallback.Get(ctx, g.key())
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if n > g.seen {
		g.seen = n
	}
	return g.seen
}

func (g *Gate) LimitReached(ctx context.Context) bool {
	return g.Count(ctx) >= g.ceiling
}

func (g *Gate) Remaining(ctx context.Context) int {
	if r := g.ceiling - g.Count(ctx); r > 0 {
		return r
	}
	return 0
}

func (g *Gate) Ceiling() int {
	return g.ceiling
}

func (g *Gate) Usage(ctx context.Context) Usage {
	n := g.Count(ctx)
	return Usage{Count: n, Ceiling: g.ceiling, LimitReached: n >= g.ceiling}
}
