package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/a2amesh/a2akit"
)

// hostAgent answers by keyword and records the requests it saw.
type hostAgent struct {
	mu       sync.Mutex
	requests []*a2asrv.RequestContext
}

func (h *hostAgent) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
	h.mu.Lock()
	h.requests = append(h.requests, reqCtx)
	h.mu.Unlock()

	u := a2akit.NewTaskUpdater(q, reqCtx)
	if reqCtx.StoredTask == nil {
		if err := u.Submit(ctx, reqCtx.Message); err != nil {
			return err
		}
	}
	if err := u.StartWork(ctx, nil); err != nil {
		return err
	}

	switch a2akit.UserInput(reqCtx.Message, " ") {
	case "fail":
		return u.Failed(ctx, u.NewAgentMessage(a2a.TextPart{Text: "Error: upstream down"}))
	case "silent":
		return u.Complete(ctx, nil)
	}

	if err := u.AddArtifact(ctx, "answer", a2a.TextPart{Text: "**Sunny** in LA"}); err != nil {
		return err
	}
	return u.Complete(ctx, nil)
}

func (h *hostAgent) Cancel(context.Context, *a2asrv.RequestContext, eventqueue.Queue) error {
	return a2a.ErrUnsupportedOperation
}

func serveHost(t *testing.T) (*hostAgent, string) {
	t.Helper()

	host := &hostAgent{}
	var srv http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.ServeHTTP(w, r)
	}))
	srv = a2akit.NewServer(a2a.AgentCard{
		Name:         "Hosting Agent - ADK",
		URL:          ts.URL,
		Version:      "1.0.0",
		Capabilities: a2a.AgentCapabilities{Streaming: true},
	}, host)
	t.Cleanup(ts.Close)

	return host, ts.URL
}

func TestConversation_Ask(t *testing.T) {
	host, url := serveHost(t)

	conv, err := Connect(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conv.Close() })
	assert.Equal(t, "Hosting Agent - ADK", conv.Card().Name)

	reply, err := conv.Ask(context.Background(), "weather in LA, CA")
	require.NoError(t, err)
	assert.Equal(t, "**Sunny** in LA", reply.Text)
	assert.Equal(t, a2a.TaskStateCompleted, reply.State)
	assert.False(t, reply.Failed)
	assert.NotEmpty(t, conv.ContextID())

	_, err = conv.Ask(context.Background(), "and tomorrow?")
	require.NoError(t, err)

	host.mu.Lock()
	defer host.mu.Unlock()
	require.Len(t, host.requests, 2)
	assert.Regexp(t, regexp.MustCompile(`^message-[0-9a-f]{16}$`), host.requests[0].Message.ID)
	assert.Equal(t, host.requests[0].ContextID, host.requests[1].ContextID)
}

func TestConversation_FailedAndSilent(t *testing.T) {
	_, url := serveHost(t)

	conv, err := Connect(context.Background(), url, nil)
	require.NoError(t, err)

	reply, err := conv.Ask(context.Background(), "fail")
	require.NoError(t, err)
	assert.True(t, reply.Failed)
	assert.Equal(t, "Task failed: Error: upstream down", reply.Text)

	reply, err = conv.Ask(context.Background(), "silent")
	require.NoError(t, err)
	assert.Equal(t, NoTextResponse, reply.Text)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "http://127.0.0.1:1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch agent card")
}

type fakeAsker struct {
	reply Reply
	err   error
}

func (f fakeAsker) Ask(context.Context, string) (Reply, error) { return f.reply, f.err }

func ready(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func TestModel_SubmitAndReply(t *testing.T) {
	m := ready(NewModel(fakeAsker{reply: Reply{Text: "A margarita has tequila."}}))
	assert.Contains(t, m.View(), Title)

	m = typeText(m, "What is a margarita?")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.loading)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Thinking...")

	next, _ = m.Update(m.ask("What is a margarita?")())
	m = next.(Model)
	assert.False(t, m.loading)
	require.Len(t, m.history, 2)
	assert.Equal(t, roleAgent, m.history[1].role)
	assert.Contains(t, m.renderHistory(), "margarita")
}

func TestModel_ErrorsAndFailures(t *testing.T) {
	m := ready(NewModel(fakeAsker{err: errors.New("connection refused")}))

	next, _ := m.Update(m.ask("hi")())
	m = next.(Model)
	require.Len(t, m.history, 1)
	assert.Equal(t, roleError, m.history[0].role)
	assert.True(t, strings.HasPrefix(m.history[0].content, "An error occurred: connection refused"))

	next, _ = m.Update(replyMsg{Text: "Task failed: boom", Failed: true})
	m = next.(Model)
	assert.Equal(t, roleError, m.history[1].role)
}

func TestModel_EmptyInputIgnored(t *testing.T) {
	m := ready(NewModel(fakeAsker{}))

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, next.(Model).history)
}

func TestNewMessageID(t *testing.T) {
	a, b := NewMessageID(), NewMessageID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "message-"))
	assert.Len(t, a, len("message-")+16)
}
