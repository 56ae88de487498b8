package flow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/tool"
)

type testAgent struct {
	name        string
	llm         model.Model
	instruction string
	dynamic     bool
	tools       map[string]tool.Tool
	beforeModel []BeforeModelCallback
	maxHistory  int
	preload     bool
	toolTimeout time.Duration
}

func (a *testAgent) GetName() string       { return a.name }
func (a *testAgent) GetModel() model.Model { return a.llm }
func (a *testAgent) ResolveInstructions(*core.RunContext) (string, bool, error) {
	return a.instruction, !a.dynamic, nil
}
func (a *testAgent) GetTools() map[string]tool.Tool              { return a.tools }
func (a *testAgent) BeforeModelCallbacks() []BeforeModelCallback { return a.beforeModel }
func (a *testAgent) MaxHistoryMessages() int                     { return a.maxHistory }
func (a *testAgent) IsStreamingEnabled() bool                    { return false }
func (a *testAgent) IsMemoryPreloadEnabled() bool                { return a.preload }
func (a *testAgent) ToolTimeout() time.Duration                  { return a.toolTimeout }

// harness plays the runner: it persists non-partial events into the session
// and signals resume.
type harness struct {
	rc     *core.RunContext
	sess   *core.Session
	emit   chan core.Event
	done   chan struct{}
	mu     sync.Mutex
	events []core.Event
}

type harnessOptions struct {
	userText      string
	memory        core.MemoryStore
	maxModelCalls int
	history       []core.Event
	state         map[string]any
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	emit := make(chan core.Event, 16)
	resume := make(chan struct{}, 1)

	sess := core.NewSession("app", "u1", "s1")
	sess.ApplyStateDelta(opts.state)
	for _, ev := range opts.history {
		sess.AddEvent(ev)
	}

	uc := core.NewTextContent(core.RoleUser, opts.userText)
	sess.AddEvent(core.NewUserContentEvent("r1", &uc))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	h := &harness{
		sess: sess,
		emit: emit,
		done: make(chan struct{}),
		rc: core.NewRunContext(ctx, core.RunContextOptions{
			AppName:       "app",
			UserID:        "u1",
			SessionID:     "s1",
			RunID:         "r1",
			Agent:         core.AgentInfo{Name: "agent", Type: "llm"},
			UserContent:   uc,
			MaxModelCalls: opts.maxModelCalls,
			Emit:          emit,
			Resume:        resume,
			Session:       sess,
			MemoryStore:   opts.memory,
			Logger:        logging.NoOpLogger{},
		}),
	}

	go func() {
		defer close(h.done)
		for ev := range emit {
			if !ev.IsPartial() {
				sess.ApplyStateDelta(ev.Actions.StateDelta)
				sess.AddEvent(ev)
				resume <- struct{}{}
			}
			h.mu.Lock()
			h.events = append(h.events, ev)
			h.mu.Unlock()
		}
	}()

	return h
}

func (h *harness) finish() []core.Event {
	close(h.emit)
	<-h.done
	return h.events
}

type fakeMemory struct {
	results []core.SearchResult
	queries []string
}

func (f *fakeMemory) Store(_ context.Context, m core.Memory) (core.Memory, error) { return m, nil }
func (f *fakeMemory) Search(_ context.Context, _ string, q string, _ int) ([]core.SearchResult, error) {
	f.queries = append(f.queries, q)
	return f.results, nil
}
func (f *fakeMemory) List(context.Context, string) ([]core.Memory, error) { return nil, nil }
func (f *fakeMemory) Delete(context.Context, string, string) error        { return nil }

func texts(evs []core.Event) []string {
	var out []string
	for _, ev := range evs {
		if t := strings.TrimSpace(ev.Text()); t != "" {
			out = append(out, t)
		}
	}
	return out
}
