package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/a2amesh/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access. Each
// returned session is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create registers a new session. Creating an id that already exists returns
// the existing session unchanged.
func (s *InMemoryStore) Create(_ context.Context, appName, userID, sessionID string) (*core.Session, error) {
	if sessionID == "" {
		sessionID = core.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone(), nil
	}

	sess := core.NewSession(appName, userID, sessionID)
	s.sessions[sessionID] = sess

	return sess.Clone(), nil
}

// Get returns a clone of the session or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	return sess.Clone(), nil
}

// List returns clones of every session owned by (appName, userID), oldest first.
func (s *InMemoryStore) List(_ context.Context, appName, userID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Session, 0)
	for _, sess := range s.sessions {
		if sess.AppName == appName && sess.UserID == userID {
			out = append(out, sess.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })

	return out, nil
}

// Delete removes a session or returns ErrNotFound.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	delete(s.sessions, sessionID)

	return nil
}

// AppendEvent adds an event to an existing session.
func (s *InMemoryStore) AppendEvent(_ context.Context, sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	sess.AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(_ context.Context, sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	sess.ApplyStateDelta(delta)

	return nil
}
