package flow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/tool"
)

// Error codes attached to error events emitted by flows.
const (
	ErrCodeModel           = "MODEL_ERROR"
	ErrCodeModelCallLimit  = "MODEL_CALL_LIMIT"
	ErrCodeRequestProcess  = "REQUEST_PROCESSOR_ERROR"
	ErrCodeBeforeModel     = "BEFORE_MODEL_CALLBACK_ERROR"
	ErrCodeEmptyModelReply = "EMPTY_MODEL_RESPONSE"
)

// BaseFlow is a single-agent request -> model -> tools loop with pluggable
// request processors.
type BaseFlow struct {
	agent             FlowAgent
	requestProcessors []RequestProcessor
	executor          FunctionExecutor
}

// NewBaseFlow creates a flow without processors.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; registration order is execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// SetFunctionExecutor replaces the default parallel executor.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.executor = executor
}

// Run executes model turns until a final response, an escalation, or an error.
func (f *BaseFlow) Run(runCtx *core.RunContext) error {
	for {
		last, err := f.runOnce(runCtx)
		if err != nil {
			return err
		}

		if last == nil || escalated(last) || last.IsFinalResponse() {
			return nil
		}
	}
}

func escalated(ev *core.Event) bool {
	return ev.Actions.Escalate != nil && *ev.Actions.Escalate
}

func (f *BaseFlow) fail(runCtx *core.RunContext, code string, err error) error {
	runCtx.LogError("flow.error", "agent", f.agent.GetName(), "code", code, "error", err.Error())

	ev := core.NewErrorEvent(runCtx.RunID, f.agent.GetName(), code, err)
	if emitErr := runCtx.EmitEvent(ev); emitErr != nil {
		return errors.Join(err, emitErr)
	}

	return err
}

// emit sends a non-partial event and waits until the runner persisted it.
func (f *BaseFlow) emit(runCtx *core.RunContext, ev core.Event) error {
	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}

	return runCtx.WaitForResume()
}

// runOnce performs one model turn including the execution of requested
// function calls and returns the last emitted event.
func (f *BaseFlow) runOnce(runCtx *core.RunContext) (*core.Event, error) {
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			runCtx.LogWarn("flow.session.refresh_failed", "error", err.Error())
		}
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		return nil, f.fail(runCtx, ErrCodeModelCallLimit, err)
	}

	req := new(model.Request)
	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, f.fail(runCtx, ErrCodeRequestProcess, fmt.Errorf("request processor %s: %w", processor.Name(), err))
		}
	}

	tools := f.agent.GetTools()
	if len(tools) > 0 {
		list := make([]tool.Tool, 0, len(tools))
		for _, t := range tools {
			list = append(list, t)
		}
		req.Tools = tool.Definitions(sortTools(list))
	}

	req.Stream = f.agent.IsStreamingEnabled()

	for _, cb := range f.agent.BeforeModelCallbacks() {
		if err := cb(runCtx, req); err != nil {
			return nil, f.fail(runCtx, ErrCodeBeforeModel, err)
		}
	}

	runCtx.LogDebug("flow.model.request", "agent", f.agent.GetName(), "contents", len(req.Contents), "tools", len(req.Tools))

	respCh, errCh := f.agent.GetModel().Generate(runCtx.Context, *req)

	var final *core.Event

	for resp := range respCh {
		ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
		content := resp.Content
		ev.Content = &content

		if resp.Partial {
			partial := true
			ev.Partial = &partial

			// Partial chunks are not persisted, so they neither carry staged
			// deltas nor wait for a resume signal.
			select {
			case runCtx.Emit <- ev:
			case <-runCtx.Done():
				return nil, runCtx.Err()
			}

			continue
		}

		if len(ev.GetFunctionCalls()) == 0 {
			complete := true
			ev.TurnComplete = &complete
		}

		if err := f.emit(runCtx, ev); err != nil {
			return nil, err
		}

		final = &ev
	}

	if err := <-errCh; err != nil {
		return nil, f.fail(runCtx, ErrCodeModel, err)
	}

	if final == nil {
		return nil, f.fail(runCtx, ErrCodeEmptyModelReply, errors.New("model returned no response"))
	}

	calls := final.GetFunctionCalls()
	if len(calls) == 0 {
		return final, nil
	}

	var (
		responses []core.Event
		emitErr   error
	)

	f.executor.Execute(runCtx, f.agent, tools, calls, func(ev core.Event) error {
		if emitErr != nil {
			return emitErr
		}

		if err := f.emit(runCtx, ev); err != nil {
			emitErr = err
			return err
		}

		responses = append(responses, ev)

		return nil
	})

	if emitErr != nil {
		return nil, emitErr
	}

	if len(responses) == 0 {
		return nil, runCtx.Err()
	}

	// Any escalating or summarization-skipping response ends the loop.
	for i := range responses {
		if escalated(&responses[i]) || responses[i].IsFinalResponse() {
			return &responses[i], nil
		}
	}

	return &responses[len(responses)-1], nil
}

func sortTools(tools []tool.Tool) []tool.Tool {
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}
