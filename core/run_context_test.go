package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArtifactStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (f *fakeArtifactStore) Save(_ context.Context, sid, name string, b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[sid+"/"+name] = append([]byte{}, b...)
	return nil
}

func (f *fakeArtifactStore) Get(_ context.Context, sid, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[sid+"/"+name], nil
}

func (f *fakeArtifactStore) List(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakeArtifactStore) Delete(context.Context, string, string) error   { return nil }

type fakeMemoryStore struct{ scopes []string }

func (f *fakeMemoryStore) Store(_ context.Context, m Memory) (Memory, error) { return m, nil }
func (f *fakeMemoryStore) Search(_ context.Context, scope, _ string, _ int) ([]SearchResult, error) {
	f.scopes = append(f.scopes, scope)
	return []SearchResult{{Memory: Memory{Content: "likes mojitos"}, Score: 1}}, nil
}
func (f *fakeMemoryStore) List(context.Context, string) ([]Memory, error) { return nil, nil }
func (f *fakeMemoryStore) Delete(context.Context, string, string) error   { return nil }

func newTestRunContext(emit chan Event) *RunContext {
	sess := NewSession("app", "user-1", "sess-1")
	sess.SetState("persisted", "yes")
	return NewRunContext(context.Background(), RunContextOptions{
		AppName:       "app",
		UserID:        "user-1",
		SessionID:     "sess-1",
		RunID:         "run-1",
		Agent:         AgentInfo{Name: "agent", Type: "llm"},
		Emit:          emit,
		Session:       sess,
		ArtifactStore: &fakeArtifactStore{},
		MemoryStore:   &fakeMemoryStore{},
	})
}

func TestRunContext_StateLayering(t *testing.T) {
	rc := newTestRunContext(make(chan Event, 1))

	v, ok := rc.GetState("persisted")
	require.True(t, ok)
	assert.Equal(t, "yes", v)

	rc.SetState("persisted", "staged")
	s, ok := rc.GetStateString("persisted")
	require.True(t, ok)
	assert.Equal(t, "staged", s)

	merged := rc.State()
	assert.Equal(t, "staged", merged["persisted"])
}

func TestRunContext_EmitEventAttachesDeltas(t *testing.T) {
	emit := make(chan Event, 1)
	rc := newTestRunContext(emit)

	rc.SetState("k", "v")
	require.NoError(t, rc.SaveArtifact("a.txt", []byte("x")))
	require.NoError(t, rc.EmitEvent(NewMessageEvent("run-1", "agent", "hi")))

	ev := <-emit
	assert.Equal(t, "v", ev.Actions.StateDelta["k"])
	assert.Equal(t, 1, ev.Actions.ArtifactDelta["a.txt"])
	assert.Empty(t, rc.StateDelta)
	assert.Empty(t, rc.Artifacts)
}

func TestRunContext_EmitEventCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := NewRunContext(ctx, RunContextOptions{Emit: make(chan Event)})
	err := rc.EmitEvent(NewEvent("r", "a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunContext_SearchMemoryUsesUserScope(t *testing.T) {
	rc := newTestRunContext(make(chan Event, 1))
	ms := rc.MemoryStore.(*fakeMemoryStore)

	res, err := rc.SearchMemory("drinks", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, []string{"user-1"}, ms.scopes)
}

func TestModelLimiter(t *testing.T) {
	l := NewModelLimiter(2)
	require.NoError(t, l.Increment())
	require.NoError(t, l.Increment())
	assert.ErrorIs(t, l.Increment(), ErrModelCallLimit)
	assert.Equal(t, 3, l.Count())

	assert.Equal(t, -1, NewModelLimiter(0).Remaining())
}
