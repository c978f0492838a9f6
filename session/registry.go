package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Factory builds an unstarted controller for a session id.
type Factory func(sessionID string) *Controller

type entry struct {
	ctrl    *Controller
	expires time.Time
}

// Registry holds one controller per session and closes controllers that sat
// idle longer than the idle timeout.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	factory Factory
	idle    time.Duration
	now     func() time.Time
	log     *zap.SugaredLogger
}

func NewRegistry(factory Factory, idle time.Duration, logger *zap.Logger) *Registry {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Registry{
		entries: map[string]*entry{},
		factory: factory,
		idle:    idle,
		now:     time.Now,
		log:     logger.Sugar(),
	}
}

// Get returns the live controller for sessionID, starting one for id when
// none exists yet.
func (r *Registry) Get(ctx context.Context, sessionID string, id Identity) (*Controller, error) {
	r.mu.Lock()
	expired := r.collectExpiredLocked()
	if e, ok := r.entries[sessionID]; ok {
		e.expires = r.now().Add(r.idle)
		r.mu.Unlock()
		closeAll(expired)
		return e.ctrl, nil
	}
	r.mu.Unlock()
	closeAll(expired)

	ctrl := r.factory(sessionID)
	if err := ctrl.Start(ctx, id); err != nil {
		_ = ctrl.Close()
		return nil, err
	}

	r.mu.Lock()
	if e, ok := r.entries[sessionID]; ok {
		// lost a race with a concurrent request for the same session
		e.expires = r.now().Add(r.idle)
		r.mu.Unlock()
		_ = ctrl.Close()
		return e.ctrl, nil
	}
	r.entries[sessionID] = &entry{ctrl: ctrl, expires: r.now().Add(r.idle)}
	r.mu.Unlock()
	return ctrl, nil
}

// Lookup returns the controller for sessionID without creating one.
func (r *Registry) Lookup(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	e.expires = r.now().Add(r.idle)
	return e.ctrl, true
}

// Close ends a session, e.g. on logout.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()
	if ok {
		_ = e.ctrl.Close()
	}
}

// Sweep closes idle sessions. It runs on every Get and may also be called
// periodically.
func (r *Registry) Sweep() {
	r.mu.Lock()
	expired := r.collectExpiredLocked()
	r.mu.Unlock()
	closeAll(expired)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll ends every session, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Controller, 0, len(r.entries))
	for id, e := range r.entries {
		all = append(all, e.ctrl)
		delete(r.entries, id)
	}
	r.mu.Unlock()
	closeAll(all)
}

func (r *Registry) collectExpiredLocked() []*Controller {
	now := r.now()
	var out []*Controller
	for id, e := range r.entries {
		if now.After(e.expires) {
			out = append(out, e.ctrl)
			delete(r.entries, id)
			r.log.Infow("session expired", "session", id)
		}
	}
	return out
}

func closeAll(list []*Controller) {
	for _, c := range list {
		_ = c.Close()
	}
}
