package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/a2amesh/agent"
	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/memory"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/session"
	"github.com/hupe1980/a2amesh/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func userText(s string) core.Content { return core.NewTextContent(core.RoleUser, s) }

// funcAgent adapts a function to core.Agent.
type funcAgent struct {
	name string
	run  func(rc *core.RunContext) error
}

func (a *funcAgent) Name() string                  { return a.name }
func (a *funcAgent) Description() string           { return "test agent" }
func (a *funcAgent) Run(rc *core.RunContext) error { return a.run(rc) }

func TestRunSync_TextAnswerIsPersisted(t *testing.T) {
	llm := model.NewScriptedModel("m").AddText("Shaken, not stirred.")
	r := New("cocktails", agent.NewLLMAgent("cocktail_agent", llm))

	events, err := r.RunSync(context.Background(), "u1", "s1", userText("martini?"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Shaken, not stirred.", events[0].Text())
	assert.Equal(t, "cocktail_agent", events[0].Author)

	sess, err := r.SessionStore().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "cocktails", sess.AppName)
	assert.Equal(t, "u1", sess.UserID)
	require.Len(t, sess.Events, 2)
	assert.Equal(t, core.RoleUser, sess.Events[0].Content.Role)
	assert.Equal(t, "martini?", sess.Events[0].Text())
}

func TestRunSync_ToolStateDeltaIsApplied(t *testing.T) {
	remember := tool.NewFunctionTool("remember", "stores a value", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		tc.SetState("agent", "weather_agent")
		return "ok", nil
	})

	llm := model.NewScriptedModel("m").
		AddFunctionCall("c1", "remember", map[string]any{}).
		AddText("done")

	r := New("app", agent.NewLLMAgent("host", llm, func(o *agent.LLMAgentOptions) {
		o.Tools = []tool.Tool{remember}
	}))

	events, err := r.RunSync(context.Background(), "u1", "s1", userText("go"))
	require.NoError(t, err)
	require.Len(t, events, 3)

	sess, err := r.SessionStore().Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "weather_agent", sess.State["agent"])

	// The second model call saw the persisted tool response.
	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Contents, 3)
}

func TestRunSync_SecondTurnReusesSession(t *testing.T) {
	llm := model.NewScriptedModel("m").AddText("one").AddText("two")
	r := New("app", agent.NewLLMAgent("a", llm))

	_, err := r.RunSync(context.Background(), "u1", "s1", userText("first"))
	require.NoError(t, err)
	_, err = r.RunSync(context.Background(), "u1", "s1", userText("second"))
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Contents, 3)

	_, err = r.RunSync(context.Background(), "intruder", "s1", userText("hi"))
	assert.Error(t, err)
}

func TestRunSync_AfterRunReceivesFinalSession(t *testing.T) {
	store := memory.NewInMemoryStore()
	bank := memory.NewBank(store)

	var seen atomic.Int32
	llm := model.NewScriptedModel("m").AddText("Margarita uses tequila.")
	r := New("app", agent.NewLLMAgent("a", llm), func(o *Options) {
		o.MemoryStore = store
		o.AfterRun = []AfterRunHook{
			func(_ context.Context, sess *core.Session) error {
				seen.Store(int32(len(sess.Events)))
				return errors.New("ignored")
			},
			bank.AddSessionToMemory,
		}
	})

	_, err := r.RunSync(context.Background(), "u1", "s1", userText("margarita?"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return seen.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		res, _ := store.Search(context.Background(), "u1", "tequila", 5)
		return len(res) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRunSync_AgentErrorSkipsAfterRun(t *testing.T) {
	called := false
	r := New("app", &funcAgent{name: "boom", run: func(rc *core.RunContext) error {
		return errors.New("kaput")
	}}, func(o *Options) {
		o.AfterRun = []AfterRunHook{func(context.Context, *core.Session) error {
			called = true
			return nil
		}}
	})

	_, err := r.RunSync(context.Background(), "u1", "s1", userText("x"))
	require.EqualError(t, err, "kaput")
	assert.False(t, called)
}

func TestRunSync_PanicBecomesError(t *testing.T) {
	r := New("app", &funcAgent{name: "p", run: func(rc *core.RunContext) error {
		panic("oops")
	}})

	_, err := r.RunSync(context.Background(), "u1", "s1", userText("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestCancel(t *testing.T) {
	started := make(chan struct{})
	r := New("app", &funcAgent{name: "blocker", run: func(rc *core.RunContext) error {
		close(started)
		<-rc.Done()
		return rc.Err()
	}})

	runID, events, errs, err := r.Run(context.Background(), "u1", "s1", userText("wait"))
	require.NoError(t, err)

	<-started
	assert.Equal(t, 1, r.ActiveRuns())
	assert.True(t, r.Cancel(runID))

	for range events {
	}
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.False(t, r.Cancel("unknown"))
}

type failingStore struct {
	*session.InMemoryStore
	appends atomic.Int32
}

func (s *failingStore) AppendEvent(ctx context.Context, id string, ev core.Event) error {
	if s.appends.Add(1) > 1 {
		return errors.New("disk full")
	}
	return s.InMemoryStore.AppendEvent(ctx, id, ev)
}

func TestRun_PersistenceFailureStopsAgent(t *testing.T) {
	store := &failingStore{InMemoryStore: session.NewInMemoryStore()}
	r := New("app", &funcAgent{name: "chatty", run: func(rc *core.RunContext) error {
		for i := 0; i < 10; i++ {
			if err := rc.EmitEvent(core.NewMessageEvent(rc.RunID, "chatty", "hi")); err != nil {
				return err
			}
			if err := rc.WaitForResume(); err != nil {
				return err
			}
		}
		return nil
	}}, func(o *Options) {
		o.SessionStore = store
		o.EventBufferSize = 0
	})

	events, err := r.RunSync(context.Background(), "u1", "s1", userText("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, events)
}

func TestRunSync_ModelCallLimit(t *testing.T) {
	loop := tool.NewFunctionTool("loop", "loops", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return "again", nil
	})

	llm := model.NewScriptedModel("m").
		AddFunctionCall("c1", "loop", map[string]any{}).
		AddFunctionCall("c2", "loop", map[string]any{}).
		AddText("never")

	r := New("app", agent.NewLLMAgent("a", llm, func(o *agent.LLMAgentOptions) {
		o.Tools = []tool.Tool{loop}
	}), func(o *Options) { o.MaxModelCalls = 2 })

	_, err := r.RunSync(context.Background(), "u1", "s1", userText("x"))
	require.ErrorIs(t, err, core.ErrModelCallLimit)
}
