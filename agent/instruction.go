package agent

import "github.com/hupe1980/a2amesh/core"

// Provider produces an instruction from the run context. Dynamic
// instructions read session state, e.g. the orchestrator's active agent.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts a function to Provider.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either static text or a Provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates a static instruction. Templates such as
// {{.key}} are rendered against session state by the flow.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates a dynamic instruction. Its output is
// passed to the model without template rendering.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates a dynamic instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction is plain text.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text for a run.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}

	return i.text, nil
}
