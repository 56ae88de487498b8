package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/logging"
)

type stubProvider struct {
	text string
	err  error
}

func (m stubProvider) Instruction(*core.RunContext) (string, error) { return m.text, m.err }

func newInstructionRunContext() *core.RunContext {
	return core.NewRunContext(context.Background(), core.RunContextOptions{
		SessionID:   "s1",
		Agent:       core.AgentInfo{Name: "TestAgent", Type: "test"},
		UserContent: core.NewTextContent(core.RoleUser, "hello"),
		Session:     core.NewSession("app", "u1", "s1"),
		Logger:      logging.NoOpLogger{},
	})
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	if !inst.IsStatic() {
		t.Fatalf("expected static instruction")
	}
	got, err := inst.Resolve(newInstructionRunContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "static instruction" {
		t.Fatalf("expected 'static instruction', got %q", got)
	}
}

func TestInstruction_Provider(t *testing.T) {
	inst := NewInstructionFromProvider(stubProvider{text: "dynamic"})
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}
	got, err := inst.Resolve(newInstructionRunContext())
	if err != nil || got != "dynamic" {
		t.Fatalf("got %q, %v", got, err)
	}

	inst = NewInstructionFromProvider(stubProvider{err: errors.New("boom")})
	if _, err := inst.Resolve(newInstructionRunContext()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInstruction_FuncReadsState(t *testing.T) {
	rc := newInstructionRunContext()
	rc.SetState("agent", "weather_agent")

	inst := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		v, _ := rc.GetStateString("agent")
		return "Current agent: " + v, nil
	})

	got, err := inst.Resolve(rc)
	if err != nil || got != "Current agent: weather_agent" {
		t.Fatalf("got %q, %v", got, err)
	}
}
