package core

// Agent is the unit of work executed by the runner. An agent receives its
// input and services through the RunContext and communicates exclusively by
// emitting events on it.
//
// Implementations must respect cancellation of RunContext.Context and must
// not retain the RunContext after Run returns. A single Agent value may serve
// many concurrent runs.
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
type AgentInfo struct{ Name, Type string }
