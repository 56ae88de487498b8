package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/a2amesh/core"
)

// ScriptedModel replays queued responses in order and records every request.
// It is intended for tests and examples. Once the script is exhausted it
// answers with Fallback (or an error when Fallback is empty).
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	script   []Response
	requests []Request

	// Fallback is returned as plain text after the script is exhausted.
	Fallback string
}

// NewScriptedModel constructs an empty ScriptedModel.
func NewScriptedModel(name string) *ScriptedModel {
	return &ScriptedModel{info: Info{Name: name, Provider: "scripted", SupportsTools: true}}
}

// AddText queues a final text answer.
func (m *ScriptedModel) AddText(text string) *ScriptedModel {
	return m.Add(Response{
		Content:      core.NewTextContent(core.RoleAssistant, text),
		FinishReason: "stop",
	})
}

// AddFunctionCall queues a function call with JSON encoded args.
func (m *ScriptedModel) AddFunctionCall(id, name string, args map[string]any) *ScriptedModel {
	b, _ := json.Marshal(args)
	return m.Add(Response{
		Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: string(b)}},
		}},
		FinishReason: "tool_calls",
	})
}

// Add queues an arbitrary response.
func (m *ScriptedModel) Add(r Response) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, r)
	return m
}

// Requests returns a copy of all requests seen so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		next Response
		ok   bool
	)
	if len(m.script) > 0 {
		next, m.script, ok = m.script[0], m.script[1:], true
	} else if m.Fallback != "" {
		next, ok = Response{Content: core.NewTextContent(core.RoleAssistant, m.Fallback), FinishReason: "stop"}, true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if !ok {
			errCh <- fmt.Errorf("scripted model %s: script exhausted", m.info.Name)
			return
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- next:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
