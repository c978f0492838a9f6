package store

import (
	"context"
	"sync"
)

// MemoryBroker delivers events in-process, synchronously on the publisher's
// goroutine.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[int]*memorySubscription
	next int
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[int]*memorySubscription{}}
}

type memorySubscription struct {
	broker  *MemoryBroker
	id      int
	filters []Filter
	handler Handler
}

func (s *memorySubscription) Close() error {
	s.broker.mu.Lock()
	delete(s.broker.subs, s.id)
	s.broker.mu.Unlock()
	return nil
}

// Publish hands ev to every matching subscriber.
func (b *MemoryBroker) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	targets := make([]*memorySubscription, 0, len(b.subs))
	for _, s := range b.subs {
		if matchAny(s.filters, ev) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.handler(ev)
	}
	return nil
}

// Subscribe registers h for events matching any of filters.
func (b *MemoryBroker) Subscribe(ctx context.Context, filters []Filter, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	s := &memorySubscription{broker: b, id: b.next, filters: filters, handler: h}
	b.subs[s.id] = s
	return s, nil
}

// Subscribers returns the number of live subscriptions.
func (b *MemoryBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
