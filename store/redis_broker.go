package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker carries change events over Redis pub/sub. Pod-scoped events go
// to branch:pod:<id>, notification events to branch:user:<id>.
type RedisBroker struct {
	rc  *redis.Client
	log *zap.SugaredLogger
}

// NewRedisBroker wraps an existing client.
func NewRedisBroker(rc *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{rc: rc, log: logger.Sugar()}
}

// Publish sends ev as JSON to its channel.
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.rc.Publish(ctx, channelForEvent(ev), payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Collection, err)
	}
	return nil
}

// Subscribe listens on the channels implied by filters until the returned
// subscription is closed.
func (b *RedisBroker) Subscribe(ctx context.Context, filters []Filter, h Handler) (Subscription, error) {
	seen := map[string]bool{}
	var channels []string
	for _, f := range filters {
		ch := channelForFilter(f)
		if !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}

	ps := b.rc.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	go func() {
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warnf("dropping malformed event on %s: %v", msg.Channel, err)
				continue
			}
			if matchAny(filters, ev) {
				h(ev)
			}
		}
	}()

	return ps, nil
}
