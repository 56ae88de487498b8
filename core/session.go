package core

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Session represents a conversational container owned by a user of an app.
// It tracks mutable key/value state plus an ordered event history and is safe
// for concurrent access.
//
// Contract:
//   - State mutations update Updated
//   - GetEvents returns a defensive copy
//   - GetConversationHistory keeps user/assistant/tool roles and drops partial fragments
//   - Clone deep copies maps and slices
type Session struct {
	ID      string         `json:"id"`
	AppName string         `json:"app_name"`
	UserID  string         `json:"user_id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates a new empty session.
func NewSession(appName, userID, id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, AppName: appName, UserID: userID, State: map[string]any{}, Events: []Event{}, Created: now, Updated: now}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair in session state.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now().UTC()
}

// ApplyStateDelta merges the provided key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.State, delta)
	s.Updated = time.Now().UTC()
}

// AddEvent appends an event to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now().UTC()
}

// GetEvents returns a defensive copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// GetConversationHistory returns events suitable for model context.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}
		switch ev.Content.Role {
		case RoleUser, RoleAssistant, RoleTool:
			res = append(res, ev)
		}
	}
	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:      s.ID,
		AppName: s.AppName,
		UserID:  s.UserID,
		State:   make(map[string]any, len(s.State)),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	maps.Copy(clone.State, s.State)
	copy(clone.Events, s.Events)
	return clone
}

// SessionStore persists sessions and their evolving state / event history.
// Get returns an error wrapping the store's not-found sentinel for unknown ids.
type SessionStore interface {
	Create(ctx context.Context, appName, userID, sessionID string) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	List(ctx context.Context, appName, userID string) ([]*Session, error)
	Delete(ctx context.Context, sessionID string) error
	AppendEvent(ctx context.Context, sessionID string, event Event) error
	ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error
}

// Memory is a long-term fact remembered for a user.
type Memory struct {
	ID        string         `json:"id"`
	Scope     string         `json:"scope"`
	Content   string         `json:"content"`
	Topic     string         `json:"topic,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SearchResult is a memory with a relevance score.
type SearchResult struct {
	Memory
	Score float64 `json:"score"`
}

// MemoryStore stores and retrieves long-term memories. Memories are scoped by
// an opaque scope key, normally the user id, so they outlive single sessions.
type MemoryStore interface {
	Store(ctx context.Context, m Memory) (Memory, error)
	Search(ctx context.Context, scope, query string, limit int) ([]SearchResult, error)
	List(ctx context.Context, scope string) ([]Memory, error)
	Delete(ctx context.Context, scope, memoryID string) error
}

// ArtifactStore persists binary artifacts scoped by session identifier.
type ArtifactStore interface {
	Save(ctx context.Context, sessionID, name string, data []byte) error
	Get(ctx context.Context, sessionID, name string) ([]byte, error)
	List(ctx context.Context, sessionID string) ([]string, error)
	Delete(ctx context.Context, sessionID, name string) error
}
