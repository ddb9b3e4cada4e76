// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or evicted sessions.
var ErrNotFound = errors.New("session not found")

const defaultTTL = time.Hour

// Store keeps sessions in memory. Sessions idle for longer than the TTL
// are evicted on access.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store. A non-positive ttl uses one hour.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{sessions: make(map[string]*State), ttl: ttl, now: time.Now}
}

// Create starts a new session and returns its id.
func (s *Store) Create() (string, *State) {
	id := uuid.NewString()
	st := NewState()
	st.touched = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	s.sessions[id] = st
	return id, st
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*State, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	st, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return st, nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	return len(s.sessions)
}

func (s *Store) evictLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, st := range s.sessions {
		if st.lastTouched().Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
