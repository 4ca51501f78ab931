// Package timers provides named one-shot timers with teardown support.
// Every timer in the client core (idle window, heartbeat, pong wait,
// reconnect delay) is registered here so nothing can outlive its owner.
package timers

import (
	"sync"
	"time"
)

// Set holds named one-shot timers. Scheduling a name that already has a
// pending timer replaces it, so at most one timer per name is ever armed.
type Set struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

func NewSet() *Set {
	return &Set{pending: make(map[string]*time.Timer)}
}

// Schedule arms fn to run once after d. A pending timer under the same
// name is cancelled first. No-op after StopAll.
func (s *Set) Schedule(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.pending[name]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		// A superseded timer can still reach here if it fired during the
		// swap; only the current owner of the slot may proceed.
		if s.pending[name] != t || s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.pending, name)
		s.mu.Unlock()
		fn()
	})
	s.pending[name] = t
}

// Cancel stops the pending timer under name, if any.
func (s *Set) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[name]; ok {
		t.Stop()
		delete(s.pending, name)
	}
}

// Pending reports whether a timer is currently armed under name.
func (s *Set) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[name]
	return ok
}

// StopAll cancels every pending timer and rejects further scheduling.
// Called on component teardown.
func (s *Set) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for name, t := range s.pending {
		t.Stop()
		delete(s.pending, name)
	}
}
