package testutil

import (
	"github.com/hupe1980/a2amesh/core"
)

// SessionBuilder constructs sessions for tests.
//
//	sess := NewSessionBuilder("sess-1").User("u1").State("k", "v").Events(ev1, ev2).Build()
type SessionBuilder struct {
	id      string
	appName string
	userID  string
	state   map[string]any
	events  []core.Event
}

// NewSessionBuilder creates a builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, appName: "test", userID: "user", state: map[string]any{}}
}

// App sets the owning application.
func (b *SessionBuilder) App(name string) *SessionBuilder { b.appName = name; return b }

// User sets the owning user.
func (b *SessionBuilder) User(id string) *SessionBuilder { b.userID = id; return b }

// State sets a state key.
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Events appends events to the history.
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns the session.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.appName, b.userID, b.id)

	for k, v := range b.state {
		s.SetState(k, v)
	}

	for _, ev := range b.events {
		s.AddEvent(ev)
	}

	return s
}
