package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/tool"
)

type mockToolset struct{ mock.Mock }

func (m *mockToolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	args := m.Called(ctx)
	tools, _ := args.Get(0).([]tool.Tool)
	return tools, args.Error(1)
}

func (m *mockToolset) Close() error { return m.Called().Error(0) }

// drainRunContext consumes emitted events the way the runner does.
func drainRunContext(t *testing.T) (*core.RunContext, func() []core.Event) {
	t.Helper()

	emit := make(chan core.Event, 16)
	resume := make(chan struct{}, 1)
	sess := core.NewSession("app", "u1", "s1")
	uc := core.NewTextContent(core.RoleUser, "find me a margarita")
	sess.AddEvent(core.NewUserContentEvent("r1", &uc))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	rc := core.NewRunContext(ctx, core.RunContextOptions{
		AppName:     "app",
		UserID:      "u1",
		SessionID:   "s1",
		RunID:       "r1",
		Agent:       core.AgentInfo{Name: "cocktail_agent", Type: "llm"},
		UserContent: uc,
		Emit:        emit,
		Resume:      resume,
		Session:     sess,
		Logger:      logging.NoOpLogger{},
	})

	var events []core.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range emit {
			if !ev.IsPartial() {
				sess.AddEvent(ev)
				resume <- struct{}{}
			}
			events = append(events, ev)
		}
	}()

	return rc, func() []core.Event {
		close(emit)
		<-done
		return events
	}
}

func TestLLMAgent_UsesToolsetTools(t *testing.T) {
	search := tool.NewFunctionTool("search_cocktail_by_name", "Search", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return "Margarita: tequila, lime, triple sec", nil
	})

	ts := new(mockToolset)
	ts.On("Tools", mock.Anything).Return([]tool.Tool{search}, nil).Once()
	ts.On("Close").Return(nil).Once()

	llm := model.NewScriptedModel("m").
		AddFunctionCall("c1", "search_cocktail_by_name", map[string]any{"name": "margarita"}).
		AddText("A margarita needs tequila.")

	var afterCalled bool
	a := NewLLMAgent("cocktail_agent", llm, func(o *LLMAgentOptions) {
		o.Description = "cocktails"
		o.Toolsets = []tool.Toolset{ts}
		o.AfterAgent = []AfterAgentCallback{func(*core.RunContext) error {
			afterCalled = true
			return errors.New("ignored")
		}}
	})

	rc, finish := drainRunContext(t)
	require.NoError(t, a.Run(rc))
	events := finish()

	require.Len(t, events, 3)
	assert.Equal(t, "A margarita needs tequila.", events[2].Text())
	assert.True(t, afterCalled)
	assert.Equal(t, "cocktails", a.Description())

	require.NoError(t, a.Close())
	ts.AssertExpectations(t)
}

func TestLLMAgent_ToolsetError(t *testing.T) {
	ts := new(mockToolset)
	ts.On("Tools", mock.Anything).Return(nil, errors.New("mcp unreachable"))

	a := NewLLMAgent("weather_agent", model.NewScriptedModel("m"), func(o *LLMAgentOptions) {
		o.Toolsets = []tool.Toolset{ts}
	})

	rc, finish := drainRunContext(t)
	err := a.Run(rc)
	finish()

	assert.ErrorContains(t, err, "mcp unreachable")
}

func TestLLMAgent_StaticToolWinsOverToolset(t *testing.T) {
	local := tool.NewFunctionTool("dup", "local", nil, func(*core.ToolContext, map[string]any) (any, error) { return "local", nil })
	remote := tool.NewFunctionTool("dup", "remote", nil, func(*core.ToolContext, map[string]any) (any, error) { return "remote", nil })

	ts := new(mockToolset)
	ts.On("Tools", mock.Anything).Return([]tool.Tool{remote}, nil)

	a := NewLLMAgent("a", model.NewScriptedModel("m"), func(o *LLMAgentOptions) {
		o.Tools = []tool.Tool{local}
		o.Toolsets = []tool.Toolset{ts}
	})

	rc, finish := drainRunContext(t)
	defer finish()

	tools, err := a.resolveTools(rc)
	require.NoError(t, err)
	assert.Equal(t, "local", tools["dup"].Description())
}

func TestLLMAgent_DefaultInstruction(t *testing.T) {
	llm := model.NewScriptedModel("m").AddText("hi")
	a := NewLLMAgent("helper", llm)

	rc, finish := drainRunContext(t)
	require.NoError(t, a.Run(rc))
	finish()

	assert.Equal(t, "You are helper, a helpful AI assistant.", llm.Requests()[0].Instructions)
}
