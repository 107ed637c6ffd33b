package recording

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/agentsea/agentd/internal/clock"
)

// RegistryOptions bounds the registry. Zero values mean unlimited.
type RegistryOptions struct {
	MaxActiveSessions   int
	MaxEventsPerSession int
}

// Registry owns every Session by id. The map lock covers structural changes
// only; per-session traffic goes through each session's own locks.
type Registry struct {
	clock clock.Clock
	opts  RegistryOptions
	newID func() string

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []*Session // creation order
	issued   map[string]struct{}
}

func NewRegistry(c clock.Clock, opts RegistryOptions) *Registry {
	return &Registry{
		clock:    c,
		opts:     opts,
		newID:    func() string { return uuid.New().String() },
		sessions: make(map[string]*Session),
		issued:   make(map[string]struct{}),
	}
}

// Create inserts a new active session. The session is fully built before it
// becomes visible to readers.
func (r *Registry) Create(description string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if max := r.opts.MaxActiveSessions; max > 0 {
		active := 0
		for _, s := range r.order {
			if s.Active() {
				active++
			}
		}
		if active >= max {
			return nil, fmt.Errorf("create session: %d sessions active: %w", active, ErrResourceExhausted)
		}
	}
	// ids of deleted sessions stay retired
	id := r.newID()
	for _, used := r.issued[id]; used; _, used = r.issued[id] {
		id = r.newID()
	}
	r.issued[id] = struct{}{}
	sess := newSession(id, description, r.clock.Now(), NewEventStore(r.clock, r.opts.MaxEventsPerSession))
	r.sessions[id] = sess
	r.order = append(r.order, sess)
	return sess, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return sess, nil
}

// List returns every session in creation order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, len(r.order))
	copy(out, r.order)
	return out
}

// ListActive returns the active sessions in creation (start time) order.
func (r *Registry) ListActive() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.order))
	for _, s := range r.order {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out
}

// Stop transitions the session to stopped. Stopping a stopped session returns
// it unchanged; stopped reports whether this call did the transition.
func (r *Registry) Stop(id string) (sess *Session, stopped bool, err error) {
	sess, err = r.Get(id)
	if err != nil {
		return nil, false, err
	}
	return sess, sess.stop(r.clock.Now()), nil
}

// Delete removes the session and its events, stopping it first if needed.
// stopped reports whether the delete performed the stop.
func (r *Registry) Delete(id string) (sess *Session, stopped bool, err error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, false, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	delete(r.sessions, id)
	for i, s := range r.order {
		if s == sess {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	stopped = sess.stop(r.clock.Now())
	sess.events.clear()
	return sess, stopped, nil
}
