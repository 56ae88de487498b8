package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/tool"
)

type stubTool struct {
	name        string
	delay       time.Duration
	result      any
	err         error
	panicMsg    any
	actionState map[string]any
	transferTo  string
}

func (mt *stubTool) Name() string               { return mt.name }
func (mt *stubTool) Description() string        { return "stub tool" }
func (mt *stubTool) Parameters() map[string]any { return map[string]any{} }
func (mt *stubTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	if mt.delay > 0 {
		select {
		case <-time.After(mt.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if mt.panicMsg != nil {
		panic(mt.panicMsg)
	}
	for k, v := range mt.actionState {
		tc.SetState(k, v)
	}
	if mt.transferTo != "" {
		tc.TransferToAgent(mt.transferTo)
	}
	return mt.result, mt.err
}

func newTEAgent(tools map[string]tool.Tool) *testAgent {
	return &testAgent{name: "A", tools: tools}
}

func newTERunContext(t *testing.T) *core.RunContext {
	t.Helper()

	return core.NewRunContext(context.Background(), core.RunContextOptions{
		SessionID: "sess",
		RunID:     "run",
		Agent:     core.AgentInfo{Name: "agent", Type: "test"},
		Session:   core.NewSession("app", "user", "sess"),
		Logger:    logging.NoOpLogger{},
	})
}

func TestFunctionExecutor_Single(t *testing.T) {
	a := newTEAgent(map[string]tool.Tool{
		"one": &stubTool{name: "one", result: 42},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 4, PreserveOrder: true})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "one", Arguments: "{}"}}
	events := make([]core.Event, 0)
	emit := func(ev core.Event) error { events = append(events, ev); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(events) != 1 {
		t.Fatalf("expected 1 event got %d", len(events))
	}
}

func TestFunctionExecutor_ParallelUnordered(t *testing.T) {
	a := newTEAgent(map[string]tool.Tool{
		"slow": &stubTool{name: "slow", delay: 60 * time.Millisecond, result: "s"},
		"fast": &stubTool{name: "fast", delay: 5 * time.Millisecond, result: "f"},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: false})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "slow", Arguments: "{}"}, {ID: "2", Name: "fast", Arguments: "{}"}}
	var order []string
	emit := func(ev core.Event) error { order = append(order, ev.GetFunctionResponses()[0].Name); return nil }
	start := time.Now()
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(order) != 2 {
		t.Fatalf("want 2 events got %d", len(order))
	}
	if order[0] != "fast" {
		t.Fatalf("expected fast first got %s", order[0])
	}
	elapsed := time.Since(start)
	if elapsed > 90*time.Millisecond {
		t.Fatalf("expected parallel speedup, elapsed=%v", elapsed)
	}
}

func TestFunctionExecutor_PreserveOrder(t *testing.T) {
	a := newTEAgent(map[string]tool.Tool{
		"t1": &stubTool{name: "t1", delay: 30 * time.Millisecond, result: 1},
		"t2": &stubTool{name: "t2", delay: 5 * time.Millisecond, result: 2},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: true})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "t1", Arguments: "{}"}, {ID: "2", Name: "t2", Arguments: "{}"}}
	var order []string
	emit := func(ev core.Event) error { order = append(order, ev.GetFunctionResponses()[0].Name); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if order[0] != "t1" || order[1] != "t2" {
		t.Fatalf("order not preserved: %v", order)
	}
}

func TestFunctionExecutor_ErrorIsolation(t *testing.T) {
	a := newTEAgent(map[string]tool.Tool{
		"ok":  &stubTool{name: "ok", result: "fine"},
		"bad": &stubTool{name: "bad", err: errors.New("boom")},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: false})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "ok", Arguments: "{}"}, {ID: "2", Name: "bad", Arguments: "{}"}}
	var errs int32
	emit := func(ev core.Event) error {
		if ev.GetFunctionResponses()[0].Error != "" {
			atomic.AddInt32(&errs, 1)
		}
		return nil
	}
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if atomic.LoadInt32(&errs) != 1 {
		t.Fatalf("expected 1 error event got %d", errs)
	}
}

func TestFunctionExecutor_PanicRecovery(t *testing.T) {
	a := newTEAgent(map[string]tool.Tool{
		"panic": &stubTool{name: "panic", panicMsg: "boom"},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "panic", Arguments: "{}"}}
	var got bool
	emit := func(ev core.Event) error {
		if ev.GetFunctionResponses()[0].Error != "" {
			got = true
		}
		return nil
	}
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if !got {
		t.Fatalf("expected panic converted to error")
	}
}

func TestFunctionExecutor_ActionsApplied(t *testing.T) {
	a := newTEAgent(map[string]tool.Tool{
		"act": &stubTool{name: "act", actionState: map[string]any{"k": "v"}, transferTo: "next"},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "act", Arguments: "{}"}}
	var evs []core.Event
	emit := func(ev core.Event) error { evs = append(evs, ev); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(evs) != 1 {
		t.Fatalf("expected 1 event got %d", len(evs))
	}
	if evs[0].Actions.StateDelta["k"] != "v" {
		t.Fatalf("state delta missing")
	}
	if evs[0].Actions.TransferToAgent == nil || *evs[0].Actions.TransferToAgent != "next" {
		t.Fatalf("transfer action missing")
	}
}

func TestFunctionExecutor_ToolTimeout(t *testing.T) {
	a := newTEAgent(map[string]tool.Tool{
		"slow": &stubTool{name: "slow", delay: time.Second},
	})
	a.toolTimeout = 20 * time.Millisecond

	te := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	var evs []core.Event
	start := time.Now()
	te.Execute(newTERunContext(t), a, a.tools, []core.FunctionCall{{ID: "1", Name: "slow"}}, func(ev core.Event) error {
		evs = append(evs, ev)
		return nil
	})

	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("tool timeout not applied")
	}
	if len(evs) != 1 || evs[0].GetFunctionResponses()[0].Error == "" {
		t.Fatalf("expected timeout error response, got %+v", evs)
	}
}

func TestFunctionExecutor_InvalidArguments(t *testing.T) {
	a := newTEAgent(map[string]tool.Tool{"one": &stubTool{name: "one"}})
	var evs []core.Event
	NewParallelFunctionExecutor(FunctionExecutorConfig{}).Execute(newTERunContext(t), a, a.tools,
		[]core.FunctionCall{{ID: "1", Name: "one", Arguments: "{not json"}},
		func(ev core.Event) error { evs = append(evs, ev); return nil })

	if len(evs) != 1 || evs[0].GetFunctionResponses()[0].Error == "" {
		t.Fatalf("expected validation error response")
	}
}
