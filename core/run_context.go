package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/a2amesh/logging"
)

// RunContext carries the per-run execution scope passed to Agent.Run:
//   - the ambient cancellation Context
//   - identifiers (app, user, session, run) and agent info
//   - the user Content that started the run
//   - emit / resume channels shared with the runner
//   - backing stores and a model-call limiter
//   - a session snapshot plus staged state / artifact deltas
//
// State mutations performed via SetState accumulate in StateDelta until
// EmitEvent attaches them to the next emitted event.
type RunContext struct {
	Context       context.Context
	AppName       string
	UserID        string
	SessionID     string
	RunID         string
	Agent         AgentInfo
	UserContent   Content
	Emit          chan<- Event
	Resume        <-chan struct{}
	SessionStore  SessionStore
	ArtifactStore ArtifactStore
	MemoryStore   MemoryStore
	Limiter       *ModelLimiter
	Session       *Session
	StateDelta    map[string]any
	Artifacts     []string

	*loggerAdapter
}

// RunContextOptions groups the inputs for NewRunContext.
type RunContextOptions struct {
	AppName       string
	UserID        string
	SessionID     string
	RunID         string
	Agent         AgentInfo
	UserContent   Content
	MaxModelCalls int
	Emit          chan<- Event
	Resume        <-chan struct{}
	Session       *Session
	SessionStore  SessionStore
	ArtifactStore ArtifactStore
	MemoryStore   MemoryStore
	Logger        logging.Logger
}

// NewRunContext constructs a RunContext with empty state and artifact deltas.
func NewRunContext(ctx context.Context, opts RunContextOptions) *RunContext {
	return &RunContext{
		Context:       ctx,
		AppName:       opts.AppName,
		UserID:        opts.UserID,
		SessionID:     opts.SessionID,
		RunID:         opts.RunID,
		Agent:         opts.Agent,
		UserContent:   opts.UserContent,
		Emit:          opts.Emit,
		Resume:        opts.Resume,
		Session:       opts.Session,
		SessionStore:  opts.SessionStore,
		ArtifactStore: opts.ArtifactStore,
		MemoryStore:   opts.MemoryStore,
		Limiter:       NewModelLimiter(opts.MaxModelCalls),
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		loggerAdapter: newLoggerAdapter(opts.Logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged value if present, else the session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// GetStateString returns the state value for k when it is a non-empty string.
func (rc *RunContext) GetStateString(k string) (string, bool) {
	v, ok := rc.GetState(k)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// SetState stages a state mutation in the delta buffer.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// State returns the session state merged with the staged delta.
func (rc *RunContext) State() map[string]any {
	out := map[string]any{}
	if rc.Session != nil {
		rc.Session.mu.RLock()
		maps.Copy(out, rc.Session.State)
		rc.Session.mu.RUnlock()
	}
	maps.Copy(out, rc.StateDelta)
	return out
}

// SaveArtifact stores bytes in the ArtifactStore and stages the name for the next emitted event.
func (rc *RunContext) SaveArtifact(name string, data []byte) error {
	if rc.ArtifactStore == nil {
		return fmt.Errorf("artifact store not configured")
	}

	if err := rc.ArtifactStore.Save(rc.Context, rc.SessionID, name, data); err != nil {
		return err
	}

	rc.Artifacts = append(rc.Artifacts, name)

	return nil
}

// SearchMemory queries the MemoryStore within the user's scope.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return rc.MemoryStore.Search(rc.Context, rc.UserID, q, limit)
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := rc.SessionStore.Get(rc.Context, rc.SessionID)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// GetAgentName returns the logical agent name for this run.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// WithAgent returns a shallow copy bound to a different agent identity with
// fresh delta buffers.
func (rc *RunContext) WithAgent(info AgentInfo) *RunContext {
	c := *rc
	c.Agent = info
	c.StateDelta = map[string]any{}
	c.Artifacts = []string{}
	return &c
}

// EmitEvent merges pending StateDelta / Artifacts into the event and emits it.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	if len(rc.Artifacts) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		for _, id := range rc.Artifacts {
			ev.Actions.ArtifactDelta[id] = 1
		}
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}
	rc.Artifacts = []string{}

	return nil
}

// WaitForResume blocks until the runner signals that the last event was
// persisted, or the context is cancelled.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
