// Package executor bridges the A2A server to the agent runner: every A2A
// request becomes a runner invocation whose final response is published as
// the task's "answer" artifact.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/hupe1980/a2amesh/a2akit"
	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/runner"
)

const (
	// AnswerArtifact names the artifact carrying the agent's answer.
	AnswerArtifact = "answer"
	// NoAnswer is published when the final response has no text.
	NoAnswer = "No answer found."
	// DefaultUserID is used when the request metadata names no user.
	DefaultUserID = "user"
)

// RunnerFactory builds the runner on first use.
type RunnerFactory func(ctx context.Context) (*runner.Runner, error)

// BeforeExecuteHook runs before each execution, for example to refresh
// credentials of MCP toolsets.
type BeforeExecuteHook func(ctx context.Context) error

// Options configures an AgentExecutor.
type Options struct {
	BeforeExecute []BeforeExecuteHook
	// UserIDKey is the metadata key holding the caller's user id.
	UserIDKey string
	Logger    logging.Logger
}

// AgentExecutor implements a2asrv.AgentExecutor on top of a runner.Runner.
type AgentExecutor struct {
	factory RunnerFactory
	opts    Options

	mu     sync.Mutex
	runner *runner.Runner
}

// New returns an executor that builds its runner lazily via factory. A
// failed build is retried on the next request.
func New(factory RunnerFactory, optFns ...func(o *Options)) *AgentExecutor {
	opts := Options{UserIDKey: "user_id", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &AgentExecutor{factory: factory, opts: opts}
}

// Runner returns the runner, building it when necessary.
func (e *AgentExecutor) Runner(ctx context.Context) (*runner.Runner, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runner != nil {
		return e.runner, nil
	}

	r, err := e.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize agent: %w", err)
	}

	e.runner = r

	return r, nil
}

// Execute implements a2asrv.AgentExecutor. Agent failures are published as
// a failed task; the returned error only reports a broken event queue.
func (e *AgentExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	u := a2akit.NewTaskUpdater(queue, reqCtx)

	if reqCtx.StoredTask == nil {
		if err := u.Submit(ctx, reqCtx.Message); err != nil {
			return err
		}
	}

	if err := u.StartWork(ctx, nil); err != nil {
		return err
	}

	e.opts.Logger.Info("a2a.task.start", "task_id", reqCtx.TaskID, "context_id", reqCtx.ContextID, "query", a2akit.UserInput(reqCtx.Message, " "))

	answer, err := e.execute(ctx, reqCtx)
	if err != nil {
		e.opts.Logger.Error("a2a.task.failed", "task_id", reqCtx.TaskID, "error", err)
		return u.Failed(ctx, u.NewAgentMessage(a2a.TextPart{Text: "Error: " + err.Error()}))
	}

	e.opts.Logger.Debug("a2a.task.answer", "task_id", reqCtx.TaskID, "answer", answer)

	if err := u.AddArtifact(ctx, AnswerArtifact, a2a.TextPart{Text: answer}); err != nil {
		return err
	}

	return u.Complete(ctx, nil)
}

// execute runs the agent and returns the text of its first final response.
// The final task event closes the request, so the runner is drained before
// anything terminal is published.
func (e *AgentExecutor) execute(ctx context.Context, reqCtx *a2asrv.RequestContext) (string, error) {
	r, err := e.Runner(ctx)
	if err != nil {
		return "", err
	}

	for _, hook := range e.opts.BeforeExecute {
		if err := hook(ctx); err != nil {
			return "", err
		}
	}

	content := ToContent(reqCtx.Message)

	_, events, errs, err := r.Run(ctx, e.userID(reqCtx), reqCtx.ContextID, content)
	if err != nil {
		return "", err
	}

	var answer string
	answered := false

	// Keep draining after the answer so after-run hooks execute.
	for ev := range events {
		if answered || ev.IsError() || !ev.IsFinalResponse() {
			continue
		}

		answer = ExtractAnswer(ev)
		answered = true
	}

	runErr := <-errs

	switch {
	case answered:
		if runErr != nil {
			e.opts.Logger.Warn("a2a.task.after_answer", "task_id", reqCtx.TaskID, "error", runErr)
		}
		return answer, nil
	case runErr != nil:
		return "", runErr
	}

	return NoAnswer, nil
}

// Cancel implements a2asrv.AgentExecutor. Cancellation is not supported.
func (e *AgentExecutor) Cancel(_ context.Context, reqCtx *a2asrv.RequestContext, _ eventqueue.Queue) error {
	e.opts.Logger.Warn("a2a.task.cancel_unsupported", "task_id", reqCtx.TaskID)
	return a2a.ErrUnsupportedOperation
}

func (e *AgentExecutor) userID(reqCtx *a2asrv.RequestContext) string {
	for _, md := range []map[string]any{reqCtx.Metadata, messageMetadata(reqCtx.Message)} {
		if id, ok := md[e.opts.UserIDKey].(string); ok && id != "" {
			return id
		}
	}
	return DefaultUserID
}

func messageMetadata(m *a2a.Message) map[string]any {
	if m == nil {
		return nil
	}
	return m.Metadata
}

// ExtractAnswer joins the text parts of ev with a space.
func ExtractAnswer(ev core.Event) string {
	if ev.Content == nil {
		return NoAnswer
	}

	texts := make([]string, 0, len(ev.Content.Parts))
	for _, t := range ev.Content.Texts() {
		if t != "" {
			texts = append(texts, t)
		}
	}

	if len(texts) == 0 {
		return NoAnswer
	}

	return strings.Join(texts, " ")
}

// ToContent converts an A2A message into user content. Data parts become
// JSON text so every model provider can read them.
func ToContent(m *a2a.Message) core.Content {
	content := core.Content{Role: core.RoleUser}
	if m == nil {
		return content
	}

	for _, p := range m.Parts {
		switch p := p.(type) {
		case a2a.TextPart:
			content.Parts = append(content.Parts, core.TextPart{Text: p.Text, Metadata: p.Metadata})
		case a2a.DataPart:
			b, err := json.Marshal(p.Data)
			if err != nil {
				continue
			}
			content.Parts = append(content.Parts, core.TextPart{Text: string(b), Metadata: p.Metadata})
		case a2a.FilePart:
			var f core.File
			switch file := p.File.(type) {
			case a2a.FileBytes:
				f = core.File{Bytes: file.Bytes, MimeType: file.MimeType, Name: file.Name}
			case a2a.FileURI:
				f = core.File{URI: file.URI, MimeType: file.MimeType, Name: file.Name}
			default:
				continue
			}
			content.Parts = append(content.Parts, core.FilePart{File: f, Metadata: p.Metadata})
		}
	}

	return content
}
