package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/flow"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/tool"
)

// AfterAgentCallback runs after the flow finished, successfully or not.
type AfterAgentCallback func(runCtx *core.RunContext) error

// LLMAgentOptions configure an LLMAgent.
type LLMAgentOptions struct {
	Description        string
	Instruction        Instruction
	Tools              []tool.Tool
	Toolsets           []tool.Toolset
	BeforeModel        []flow.BeforeModelCallback
	AfterAgent         []AfterAgentCallback
	MaxHistoryMessages int
	ToolTimeout        time.Duration
	EnableStreaming    bool
	PreloadMemory      bool
}

// LLMAgent is a model-driven agent with tool calling.
type LLMAgent struct {
	name string
	llm  model.Model
	opts LLMAgentOptions
}

var _ core.Agent = (*LLMAgent)(nil)

// NewLLMAgent creates an LLMAgent.
func NewLLMAgent(name string, llm model.Model, optFns ...func(o *LLMAgentOptions)) *LLMAgent {
	opts := LLMAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxHistoryMessages: 20,
		ToolTimeout:        30 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LLMAgent{name: name, llm: llm, opts: opts}
}

// Name implements core.Agent.
func (a *LLMAgent) Name() string { return a.name }

// Description implements core.Agent.
func (a *LLMAgent) Description() string { return a.opts.Description }

// Model returns the agent's model.
func (a *LLMAgent) Model() model.Model { return a.llm }

// Toolsets returns the configured toolsets.
func (a *LLMAgent) Toolsets() []tool.Toolset { return a.opts.Toolsets }

// Run executes one invocation.
func (a *LLMAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.name, "run", runCtx.RunID)

	tools, err := a.resolveTools(runCtx)
	if err != nil {
		runCtx.LogError("agent.tools.resolve_failed", "agent", a.name, "error", err.Error())
		return err
	}

	view := &invocation{agent: a, tools: tools}

	runErr := flow.NewSingleAgentFlow(view).Run(runCtx)
	if runErr != nil {
		runCtx.LogError("agent.run.error", "agent", a.name, "error", runErr.Error())
	}

	for _, cb := range a.opts.AfterAgent {
		if err := cb(runCtx); err != nil {
			runCtx.LogWarn("agent.after_agent.error", "agent", a.name, "error", err.Error())
		}
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.name, "run", runCtx.RunID)

	return runErr
}

// Close releases all toolsets.
func (a *LLMAgent) Close() error {
	var errs []error
	for _, ts := range a.opts.Toolsets {
		if err := ts.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *LLMAgent) resolveTools(runCtx *core.RunContext) (map[string]tool.Tool, error) {
	tools := make(map[string]tool.Tool, len(a.opts.Tools))
	for _, t := range a.opts.Tools {
		tools[t.Name()] = t
	}

	for _, ts := range a.opts.Toolsets {
		remote, err := ts.Tools(runCtx.Context)
		if err != nil {
			return nil, fmt.Errorf("resolve toolset tools: %w", err)
		}

		for _, t := range remote {
			if _, exists := tools[t.Name()]; exists {
				runCtx.LogWarn("agent.tools.duplicate", "agent", a.name, "tool", t.Name())
				continue
			}
			tools[t.Name()] = t
		}
	}

	return tools, nil
}

// invocation is the per-run flow.FlowAgent view with resolved tools.
type invocation struct {
	agent *LLMAgent
	tools map[string]tool.Tool
}

func (v *invocation) GetName() string       { return v.agent.name }
func (v *invocation) GetModel() model.Model { return v.agent.llm }

func (v *invocation) ResolveInstructions(rc *core.RunContext) (string, bool, error) {
	text, err := v.agent.opts.Instruction.Resolve(rc)
	return text, v.agent.opts.Instruction.IsStatic(), err
}

func (v *invocation) GetTools() map[string]tool.Tool { return v.tools }

func (v *invocation) BeforeModelCallbacks() []flow.BeforeModelCallback {
	return v.agent.opts.BeforeModel
}

func (v *invocation) MaxHistoryMessages() int      { return v.agent.opts.MaxHistoryMessages }
func (v *invocation) IsStreamingEnabled() bool     { return v.agent.opts.EnableStreaming }
func (v *invocation) IsMemoryPreloadEnabled() bool { return v.agent.opts.PreloadMemory }
func (v *invocation) ToolTimeout() time.Duration   { return v.agent.opts.ToolTimeout }
