// Package session holds per-client transient state: a pending registration
// awaiting verification and one-shot flash messages. Sessions are keyed by
// an opaque id carried in a cookie; entries live until cleared or until the
// process restarts.
package session

import (
	"sync"

	"github.com/google/uuid"

	"finsd/internal/domain"
)

// Flash is a one-shot message rendered on the next page view.
type Flash struct {
	Level   string
	Message string
}

type state struct {
	pending *domain.PendingRegistration
	flashes []Flash
}

// Store is an in-memory session store safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*state
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*state)}
}

// NewID mints a fresh opaque session id.
func (s *Store) NewID() string {
	return uuid.NewString()
}

func (s *Store) get(id string) *state {
	st, ok := s.sessions[id]
	if !ok {
		st = &state{}
		s.sessions[id] = st
	}
	return st
}

// SetPending parks a registration submission in the session, replacing any
// previous one.
func (s *Store) SetPending(id string, p domain.PendingRegistration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(id).pending = &p
}

// Pending returns the session's pending registration, if any.
func (s *Store) Pending(id string) (domain.PendingRegistration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok || st.pending == nil {
		return domain.PendingRegistration{}, false
	}
	return *st.pending, true
}

// ClearPending drops the session's pending registration.
func (s *Store) ClearPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[id]; ok {
		st.pending = nil
	}
}

// AddFlash queues a message for the next page view.
func (s *Store) AddFlash(id, level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(id)
	st.flashes = append(st.flashes, Flash{Level: level, Message: message})
}

// Flashes drains and returns the session's queued messages.
func (s *Store) Flashes(id string) []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok || len(st.flashes) == 0 {
		return nil
	}
	out := st.flashes
	st.flashes = nil
	return out
}
