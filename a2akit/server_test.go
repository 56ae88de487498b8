package a2akit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ a2asrv.AgentExecutor = (*scriptedExecutor)(nil)

// scriptedExecutor reacts to the user's text.
type scriptedExecutor struct {
	mu          sync.Mutex
	lastRequest *a2asrv.RequestContext
}

func (e *scriptedExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
	e.mu.Lock()
	e.lastRequest = reqCtx
	e.mu.Unlock()

	input := UserInput(reqCtx.Message, " ")

	if input == "message" {
		return q.Write(ctx, a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "direct reply"}))
	}

	u := NewTaskUpdater(q, reqCtx)
	if reqCtx.StoredTask == nil {
		if err := u.Submit(ctx, reqCtx.Message); err != nil {
			return err
		}
	}
	if err := u.StartWork(ctx, nil); err != nil {
		return err
	}

	switch input {
	case "ask":
		return u.RequiresInput(ctx, u.NewAgentMessage(a2a.TextPart{Text: "which city?"}))
	case "fail":
		return u.Failed(ctx, u.NewAgentMessage(a2a.TextPart{Text: "Error: upstream exploded"}))
	case "panic":
		panic("executor bug")
	}

	if err := u.AddArtifact(ctx, "answer", a2a.TextPart{Text: "echo: " + input}); err != nil {
		return err
	}

	return u.Complete(ctx, nil)
}

func (e *scriptedExecutor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
	if reqCtx.StoredTask.Metadata["cancelable"] == true {
		return NewTaskUpdater(q, reqCtx).Cancel(ctx, nil)
	}
	return a2a.ErrUnsupportedOperation
}

func (e *scriptedExecutor) last() *a2asrv.RequestContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRequest
}

func testCard(streaming bool) a2a.AgentCard {
	return a2a.AgentCard{
		Name:               "Echo Agent",
		Description:        "echoes",
		Version:            "1.0.0",
		Capabilities:       a2a.AgentCapabilities{Streaming: streaming},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills:             []a2a.AgentSkill{{ID: "echo", Name: "Echo", Description: "echo", Tags: []string{"echo"}}},
	}
}

func newTestServer(t *testing.T, streaming bool, store a2asrv.TaskStore) (*a2aclient.Client, *scriptedExecutor, *httptest.Server) {
	t.Helper()

	exec := &scriptedExecutor{}
	srv := NewServer(testCard(streaming), exec, func(o *ServerOptions) { o.TaskStore = store })
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	card := srv.Card()
	card.URL = ts.URL

	client, err := NewClient(context.Background(), &card, func(o *ClientOptions) { o.HTTPClient = ts.Client() })
	require.NoError(t, err)

	return client, exec, ts
}

func userMessage(text string) *a2a.MessageSendParams {
	return &a2a.MessageSendParams{Message: a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})}
}

func firstText(t *testing.T, parts a2a.ContentParts) string {
	t.Helper()
	require.NotEmpty(t, parts)
	tp, ok := parts[0].(a2a.TextPart)
	require.True(t, ok, "expected text part, got %T", parts[0])
	return tp.Text
}

func TestServer_AgentCardPaths(t *testing.T) {
	_, _, ts := newTestServer(t, true, nil)

	for _, path := range []string{AgentCardPath, LegacyAgentCardPath, V1CardPath} {
		card, err := NewCardResolver(ts.Client()).Resolve(context.Background(), ts.URL, path)
		require.NoError(t, err, path)
		assert.Equal(t, "Echo Agent", card.Name)
		assert.Equal(t, ProtocolVersion, card.ProtocolVersion)
		assert.Equal(t, a2a.TransportProtocolJSONRPC, card.PreferredTransport)
		assert.True(t, card.Capabilities.Streaming)
	}

	_, err := NewCardResolver(ts.Client()).Resolve(context.Background(), ts.URL, "/missing")
	assert.Error(t, err)
}

func TestServer_SendMessageCompletesTask(t *testing.T) {
	client, _, _ := newTestServer(t, true, nil)
	ctx := context.Background()

	res, err := client.SendMessage(ctx, userMessage("hello"))
	require.NoError(t, err)

	task, ok := res.(*a2a.Task)
	require.True(t, ok, "expected task, got %T", res)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "answer", task.Artifacts[0].Name)
	assert.Equal(t, "echo: hello", firstText(t, task.Artifacts[0].Parts))
	require.Len(t, task.History, 1)
	assert.Equal(t, a2a.MessageRoleUser, task.History[0].Role)
	assert.NotEmpty(t, task.ContextID)

	zero := 0
	got, err := client.GetTask(ctx, &a2a.TaskQueryParams{ID: task.ID, HistoryLength: &zero})
	require.NoError(t, err)
	assert.Empty(t, got.History)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
}

func TestServer_SendMessageReturnsMessage(t *testing.T) {
	client, _, _ := newTestServer(t, true, nil)

	res, err := client.SendMessage(context.Background(), userMessage("message"))
	require.NoError(t, err)

	msg, ok := res.(*a2a.Message)
	require.True(t, ok, "expected message, got %T", res)
	assert.Equal(t, "direct reply", firstText(t, msg.Parts))
}

func TestServer_FollowUpOnInputRequired(t *testing.T) {
	client, exec, _ := newTestServer(t, true, nil)
	ctx := context.Background()

	res, err := client.SendMessage(ctx, userMessage("ask"))
	require.NoError(t, err)
	task := res.(*a2a.Task)
	assert.Equal(t, a2a.TaskStateInputRequired, task.Status.State)
	assert.Equal(t, "which city?", firstText(t, task.Status.Message.Parts))

	follow := userMessage("Seattle")
	follow.Message.TaskID = task.ID
	follow.Message.ContextID = task.ContextID

	res, err = client.SendMessage(ctx, follow)
	require.NoError(t, err)
	done := res.(*a2a.Task)

	assert.Equal(t, task.ID, done.ID)
	assert.Equal(t, a2a.TaskStateCompleted, done.Status.State)
	require.NotNil(t, exec.last().StoredTask)
	assert.Equal(t, task.ContextID, exec.last().ContextID)

	// user ask, user follow-up, agent question
	assert.Len(t, done.History, 3)

	again := userMessage("Portland")
	again.Message.TaskID = task.ID
	_, err = client.SendMessage(ctx, again)
	assert.ErrorIs(t, err, a2a.ErrInvalidParams)
}

func TestServer_FailedStatusAndPanics(t *testing.T) {
	client, _, _ := newTestServer(t, true, nil)
	ctx := context.Background()

	res, err := client.SendMessage(ctx, userMessage("fail"))
	require.NoError(t, err)
	task := res.(*a2a.Task)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Equal(t, "Error: upstream exploded", firstText(t, task.Status.Message.Parts))

	_, err = client.SendMessage(ctx, userMessage("panic"))
	assert.Error(t, err)
}

func TestServer_Stream(t *testing.T) {
	client, _, _ := newTestServer(t, true, nil)

	var (
		kinds []string
		agg   ResultAggregator
		last  a2a.SendMessageResult
	)

	for ev, err := range client.SendStreamingMessage(context.Background(), userMessage("hi")) {
		require.NoError(t, err)

		switch ev.(type) {
		case *a2a.Task:
			kinds = append(kinds, "task")
		case *a2a.TaskStatusUpdateEvent:
			kinds = append(kinds, "status-update")
		case *a2a.TaskArtifactUpdateEvent:
			kinds = append(kinds, "artifact-update")
		}

		last, err = agg.Apply(ev)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"task", "status-update", "artifact-update", "status-update"}, kinds)

	task, ok := last.(*a2a.Task)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "echo: hi", firstText(t, task.Artifacts[0].Parts))
}

func TestServer_StreamFallsBackToSend(t *testing.T) {
	client, _, _ := newTestServer(t, false, nil)

	var events []a2a.Event
	for ev, err := range client.SendStreamingMessage(context.Background(), userMessage("hi")) {
		require.NoError(t, err)
		events = append(events, ev)
	}

	require.Len(t, events, 1)
	task, ok := events[0].(*a2a.Task)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
}

func TestServer_CancelTask(t *testing.T) {
	store, err := NewSQLiteTaskStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client, _, _ := newTestServer(t, true, store)
	ctx := context.Background()

	_, err = client.CancelTask(ctx, &a2a.TaskIDParams{ID: "missing"})
	assert.ErrorIs(t, err, a2a.ErrTaskNotFound)

	res, err := client.SendMessage(ctx, userMessage("hello"))
	require.NoError(t, err)
	_, err = client.CancelTask(ctx, &a2a.TaskIDParams{ID: res.(*a2a.Task).ID})
	assert.ErrorIs(t, err, a2a.ErrTaskNotCancelable)

	res, err = client.SendMessage(ctx, userMessage("ask"))
	require.NoError(t, err)
	waiting := res.(*a2a.Task)
	_, err = client.CancelTask(ctx, &a2a.TaskIDParams{ID: waiting.ID})
	assert.ErrorIs(t, err, a2a.ErrUnsupportedOperation)

	stored, err := store.Get(ctx, waiting.ID)
	require.NoError(t, err)
	stored.Metadata = map[string]any{"cancelable": true}
	require.NoError(t, store.Save(ctx, stored))

	canceled, err := client.CancelTask(ctx, &a2a.TaskIDParams{ID: waiting.ID})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)
}

func TestServer_ProtocolErrors(t *testing.T) {
	_, _, ts := newTestServer(t, true, nil)

	cases := map[string]int{
		`{not json`: -32700,
		`{"jsonrpc":"1.0","id":1,"method":"tasks/get"}`:                -32600,
		`{"jsonrpc":"2.0","id":1,"method":"tasks/list","params":{}}`:   -32601,
		`{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{}}`:    -32602,
		`{"jsonrpc":"2.0","id":1,"method":"message/send","params":{}}`: -32602,
	}

	for body, code := range cases {
		resp, err := ts.Client().Post(ts.URL, "application/json", strings.NewReader(body))
		require.NoError(t, err)

		var out struct {
			Error *struct {
				Code int `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out), body)
		resp.Body.Close()

		require.NotNil(t, out.Error, body)
		assert.Equal(t, code, out.Error.Code, body)
	}

	resp, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

type recordingInterceptor struct {
	a2aclient.PassthroughInterceptor
	mu      sync.Mutex
	methods []string
}

func (r *recordingInterceptor) Before(ctx context.Context, req *a2aclient.Request) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = append(r.methods, req.Method)
	return ctx, nil
}

func TestNewClient_Interceptors(t *testing.T) {
	srv := NewServer(testCard(true), &scriptedExecutor{})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	card := srv.Card()
	card.URL = ts.URL
	card.PreferredTransport = ""

	rec := &recordingInterceptor{}
	client, err := NewClient(context.Background(), &card, func(o *ClientOptions) {
		o.HTTPClient = ts.Client()
		o.Interceptors = []a2aclient.CallInterceptor{rec, LoggingInterceptor{Logger: testLogger{}}}
	})
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(), userMessage("hello"))
	require.NoError(t, err)

	assert.Equal(t, []string{"SendMessage"}, rec.methods)
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
