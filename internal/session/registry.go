package session

import (
	"errors"
	"sort"
	"sync"

	"recorder/internal/logging"
)

// Target identifies the browser context a session records.
type Target string

// Registry tracks at most one session per target.
type Registry struct {
	mu       sync.Mutex
	sessions map[Target]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Target]*Session)}
}

// Attach returns the session for target, calling create when there is
// none. created reports whether a new session was made.
func (r *Registry) Attach(target Target, create func() (*Session, error)) (s *Session, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[target]; ok {
		return s, false, nil
	}
	s, err = create()
	if err != nil {
		return nil, false, err
	}
	r.sessions[target] = s
	logging.Session("attached session %s to %s", s.ID(), target)
	return s, true, nil
}

// Get returns the session attached to target.
func (r *Registry) Get(target Target) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[target]
	return s, ok
}

// Targets returns the attached targets in sorted order.
func (r *Registry) Targets() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Target, 0, len(r.sessions))
	for t := range r.sessions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Detach closes and forgets the session for target. It reports whether
// one was attached.
func (r *Registry) Detach(target Target) (bool, error) {
	r.mu.Lock()
	s, ok := r.sessions[target]
	delete(r.sessions, target)
	r.mu.Unlock()

	if !ok {
		return false, nil
	}
	logging.Session("detaching session %s from %s", s.ID(), target)
	return true, s.Close()
}

// Close detaches every session.
func (r *Registry) Close() error {
	var errs []error
	for _, t := range r.Targets() {
		if _, err := r.Detach(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
