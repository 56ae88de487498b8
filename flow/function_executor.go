package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/tool"
)

// FunctionExecutor executes a batch of function calls and emits one function
// response event per call. Implementations must respect cancellation of
// runCtx, never panic, and attach the ToolContext actions to the emitted
// events. emit is never called concurrently.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, tools map[string]tool.Tool, calls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // <1 means one goroutine per call
	PreserveOrder  bool // buffer results and emit them in call order
	LogStartEvents bool
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs the default executor.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	tools map[string]tool.Tool,
	calls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(calls)
	if n == 0 {
		return
	}

	if n == 1 {
		ev := e.executeOne(runCtx, agent, tools, calls[0])
		if err := emit(ev); err != nil {
			runCtx.LogError("agent.function.emit.error", "function", calls[0].Name, "error", err.Error())
		}
		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var (
		results = make([]*core.Event, n)
		mu      sync.Mutex
		g       errgroup.Group
		start   = time.Now()
	)

	g.SetLimit(maxPar)

	for i, fc := range calls {
		if runCtx.Err() != nil {
			break
		}

		g.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}

			ev := e.executeOne(runCtx, agent, tools, fc)

			mu.Lock()
			defer mu.Unlock()

			if e.cfg.PreserveOrder {
				results[i] = &ev
				return nil
			}

			if err := emit(ev); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fc.Name, "error", err.Error())
			}

			return nil
		})
	}

	_ = g.Wait()

	if e.cfg.PreserveOrder {
		for i, ev := range results {
			if ev == nil {
				continue
			}
			if err := emit(*ev); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", calls[i].Name, "error", err.Error())
				break
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// executeOne runs a single call with panic recovery and the agent's tool timeout.
func (e *parallelFunctionExecutor) executeOne(runCtx *core.RunContext, agent FlowAgent, tools map[string]tool.Tool, fc core.FunctionCall) core.Event {
	callCtx := runCtx
	if timeout := agent.ToolTimeout(); timeout > 0 {
		ctx, cancel := context.WithTimeout(runCtx.Context, timeout)
		defer cancel()

		c := *runCtx
		c.Context = ctx
		callCtx = &c
	}

	toolCtx := core.NewToolContext(callCtx, fc.ID)

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r)
			}
		}()

		result, err = executeTool(tools, toolCtx, fc.Name, fc.Arguments)
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewFunctionResponseEvent(runCtx.RunID, agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&ev)

	return ev
}

func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

func executeTool(tools map[string]tool.Tool, toolCtx *core.ToolContext, name, args string) (any, error) {
	impl, ok := tools[name]
	if !ok {
		return nil, tool.NewToolError(name, fmt.Sprintf("tool %s not found", name), tool.CodeNotFound)
	}

	argMap, err := model.ParseArguments(args)
	if err != nil {
		return nil, tool.NewToolError(name, err.Error(), tool.CodeValidation)
	}

	return impl.Call(toolCtx, argMap)
}
