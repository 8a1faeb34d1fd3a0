// Package state holds continuation tokens between inference turns.
//
// A token is an opaque value the inference service hands back with a
// response; replaying it on the next call for the same investigation lets the
// service reuse its prior reasoning. Tokens are only ever keyed by the
// investigation id that produced them.
package state

import (
	"context"
	"sync"
	"time"
)

// DefaultRetention is how long an unused token survives.
const DefaultRetention = 24 * time.Hour

// DefaultSweepInterval is how often expired tokens are collected.
const DefaultSweepInterval = 5 * time.Minute

type entry struct {
	token    string
	lastUsed time.Time
}

// Store maps investigation ids to continuation tokens with expiry.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time // swappable for tests
}

// NewStore creates an empty reasoning-state store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the token for an investigation id, bumping its last-used
// timestamp. The second return is false when no token exists.
func (s *Store) Get(investigationID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[investigationID]
	if !ok {
		return "", false
	}
	e.lastUsed = s.now()
	s.entries[investigationID] = e
	return e.token, true
}

// Put stores or replaces the token for an investigation id.
func (s *Store) Put(investigationID, token string) {
	if investigationID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[investigationID] = entry{token: token, lastUsed: s.now()}
}

// Clear removes the token for an investigation id.
func (s *Store) Clear(investigationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, investigationID)
}

// Len returns the number of stored tokens.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes tokens unused for longer than retention and returns how many
// were removed.
func (s *Store) Sweep(retention time.Duration) int {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := s.now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.lastUsed.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Store) Run(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(retention)
		}
	}
}
