// Package flow implements the model/tool loop that drives an LLM agent.
//
// A flow builds a model request through a chain of request processors, runs
// BeforeModel callbacks, calls the model, and executes requested function
// calls until the model produces a final answer. Every non-partial event is
// emitted through the RunContext and the flow waits for the runner to
// persist it before continuing.
package flow

import (
	"time"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/tool"
)

// Flow runs one agent invocation to completion.
type Flow interface {
	Run(runCtx *core.RunContext) error
}

// BeforeModelCallback may inspect or modify the request before the model is
// called. State changes made through runCtx.SetState are attached to the next
// emitted event.
type BeforeModelCallback func(runCtx *core.RunContext, req *model.Request) error

// FlowAgent is the view of an agent a flow needs.
type FlowAgent interface {
	GetName() string
	GetModel() model.Model
	// ResolveInstructions returns the instruction text and whether it is a
	// template to render against session state. Provider output is used as is.
	ResolveInstructions(runCtx *core.RunContext) (text string, template bool, err error)
	// GetTools returns the tools available for this invocation keyed by name.
	GetTools() map[string]tool.Tool
	BeforeModelCallbacks() []BeforeModelCallback
	MaxHistoryMessages() int
	IsStreamingEnabled() bool
	IsMemoryPreloadEnabled() bool
	ToolTimeout() time.Duration
}

// RequestProcessor contributes to the model request before each model call.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}
