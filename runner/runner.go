package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/a2amesh/artifact"
	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/memory"
	"github.com/hupe1980/a2amesh/session"
)

// AfterRunHook observes the final session of a successful run. Errors are
// logged and never fail the run.
type AfterRunHook func(ctx context.Context, sess *core.Session) error

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations bounds concurrent runs; Run blocks while the
	// limit is reached.
	MaxConcurrentInvocations int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run (0 = unlimited).
	MaxModelCalls int
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	// AfterRun hooks run in order once the agent finished without error.
	AfterRun []AfterRunHook
	Logger   logging.Logger
}

// Runner coordinates agent execution: it resolves the session, creates the
// run context, streams events, applies side‑effects and persists history.
// Public methods are safe for concurrent use.
type Runner struct {
	appName string
	agent   core.Agent
	opts    Options
	sem     *semaphore.Weighted

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner for agent within appName.
func New(appName string, agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentInvocations: 10,
		EventBufferSize:          100,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}

	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.MaxConcurrentInvocations <= 0 {
		opts.MaxConcurrentInvocations = 1
	}

	return &Runner{
		appName:    appName,
		agent:      agent,
		opts:       opts,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrentInvocations)),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// AppName returns the application name sessions are created under.
func (r *Runner) AppName() string { return r.appName }

// Agent returns the root agent.
func (r *Runner) Agent() core.Agent { return r.agent }

// SessionStore returns the configured session store.
func (r *Runner) SessionStore() core.SessionStore { return r.opts.SessionStore }

// ArtifactStore returns the configured artifact store.
func (r *Runner) ArtifactStore() core.ArtifactStore { return r.opts.ArtifactStore }

// MemoryStore returns the configured memory store.
func (r *Runner) MemoryStore() core.MemoryStore { return r.opts.MemoryStore }

// Run starts the agent asynchronously for (userID, sessionID). The session is
// created when it does not exist; the user content is appended before the
// agent starts. The events channel is closed when the run ends; the error
// channel carries at most one error and is closed afterwards.
func (r *Runner) Run(ctx context.Context, userID, sessionID string, content core.Content) (string, <-chan core.Event, <-chan error, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", nil, nil, err
	}

	sess, err := r.getOrCreateSession(ctx, userID, sessionID)
	if err != nil {
		r.sem.Release(1)
		return "", nil, nil, err
	}

	runID := core.NewID()

	userEvent := core.NewUserContentEvent(runID, &content)
	if err := r.opts.SessionStore.AppendEvent(ctx, sess.ID, userEvent); err != nil {
		r.sem.Release(1)
		return "", nil, nil, fmt.Errorf("append user event: %w", err)
	}
	sess.AddEvent(userEvent)

	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	agentEmit := make(chan core.Event, r.opts.EventBufferSize)
	resume := make(chan struct{}, 1)

	rc := core.NewRunContext(runCtx, core.RunContextOptions{
		AppName:       r.appName,
		UserID:        userID,
		SessionID:     sess.ID,
		RunID:         runID,
		Agent:         core.AgentInfo{Name: r.agent.Name(), Type: fmt.Sprintf("%T", r.agent)},
		UserContent:   content,
		MaxModelCalls: r.opts.MaxModelCalls,
		Emit:          agentEmit,
		Resume:        resume,
		Session:       sess,
		SessionStore:  r.opts.SessionStore,
		ArtifactStore: r.opts.ArtifactStore,
		MemoryStore:   r.opts.MemoryStore,
		Logger:        r.opts.Logger,
	})

	eventsCh := make(chan core.Event, r.opts.EventBufferSize)
	errorsCh := make(chan error, 1)
	agentErr := make(chan error, 1)

	r.opts.Logger.Info("runner.run.start", "run_id", runID, "session_id", sess.ID, "user_id", userID, "agent", r.agent.Name())

	go func() {
		defer close(agentEmit)
		agentErr <- r.runAgent(rc)
	}()

	go func() {
		defer r.sem.Release(1)
		defer r.finishRun(runID)
		defer close(errorsCh)
		defer close(eventsCh)

		err := r.processEvents(runCtx, cancel, sess.ID, agentEmit, eventsCh, resume)
		if aerr := <-agentErr; err == nil {
			err = aerr
		}

		if err == nil {
			r.afterRun(runCtx, sess.ID)
			r.opts.Logger.Info("runner.run.complete", "run_id", runID, "session_id", sess.ID)
			return
		}

		r.opts.Logger.Error("runner.run.error", "run_id", runID, "session_id", sess.ID, "error", err)
		errorsCh <- err
	}()

	return runID, eventsCh, errorsCh, nil
}

// RunSync runs the agent and collects every forwarded event.
func (r *Runner) RunSync(ctx context.Context, userID, sessionID string, content core.Content) ([]core.Event, error) {
	_, eventsCh, errorsCh, err := r.Run(ctx, userID, sessionID, content)
	if err != nil {
		return nil, err
	}

	events := make([]core.Event, 0)
	for ev := range eventsCh {
		events = append(events, ev)
	}

	return events, <-errorsCh
}

// Cancel aborts an active run. It returns false when the run is unknown or
// already finished.
func (r *Runner) Cancel(runID string) bool {
	r.mu.RLock()
	cancel, ok := r.activeRuns[runID]
	r.mu.RUnlock()

	if ok {
		cancel()
		r.opts.Logger.Info("runner.run.cancel", "run_id", runID)
	}

	return ok
}

// ActiveRuns returns the number of runs in flight.
func (r *Runner) ActiveRuns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeRuns)
}

func (r *Runner) getOrCreateSession(ctx context.Context, userID, sessionID string) (*core.Session, error) {
	if sessionID != "" {
		sess, err := r.opts.SessionStore.Get(ctx, sessionID)
		if err == nil {
			if sess.UserID != userID || sess.AppName != r.appName {
				return nil, fmt.Errorf("session %s belongs to another app or user", sessionID)
			}
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("get session: %w", err)
		}
	}

	sess, err := r.opts.SessionStore.Create(ctx, r.appName, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return sess, nil
}

func (r *Runner) runAgent(rc *core.RunContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("agent %s panicked: %v", r.agent.Name(), p)
		}
	}()

	return r.agent.Run(rc)
}

// processEvents persists and forwards agent events until the agent closes its
// emit channel. After a persistence failure the run is cancelled and the
// remaining events are drained so the agent goroutine can exit.
func (r *Runner) processEvents(ctx context.Context, cancel context.CancelFunc, sessionID string, in <-chan core.Event, out chan<- core.Event, resume chan<- struct{}) error {
	var failed error

	for ev := range in {
		if failed != nil {
			continue
		}

		if !ev.IsPartial() {
			if err := r.persist(ctx, sessionID, ev); err != nil {
				failed = err
				cancel()
				continue
			}
		}

		select {
		case out <- ev:
		case <-ctx.Done():
		}

		if !ev.IsPartial() {
			select {
			case resume <- struct{}{}:
			default:
			}
		}
	}

	return failed
}

func (r *Runner) persist(ctx context.Context, sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.opts.SessionStore.ApplyDelta(ctx, sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("apply state delta: %w", err)
		}
	}

	if err := r.opts.SessionStore.AppendEvent(ctx, sessionID, ev); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	return nil
}

func (r *Runner) afterRun(ctx context.Context, sessionID string) {
	if len(r.opts.AfterRun) == 0 {
		return
	}

	sess, err := r.opts.SessionStore.Get(ctx, sessionID)
	if err != nil {
		r.opts.Logger.Warn("runner.after_run.session", "session_id", sessionID, "error", err)
		return
	}

	for i, hook := range r.opts.AfterRun {
		if err := hook(ctx, sess); err != nil {
			r.opts.Logger.Warn("runner.after_run.error", "session_id", sessionID, "hook", i, "error", err)
		}
	}
}

func (r *Runner) finishRun(runID string) {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	delete(r.activeRuns, runID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
}
