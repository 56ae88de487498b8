package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/a2amesh/a2akit"
	"github.com/hupe1980/a2amesh/agent"
	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/flow"
	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/tool"
)

// ErrUnknownAgent is returned when send_message names an agent that is not
// registered.
var ErrUnknownAgent = errors.New("unknown agent")

// Session state keys written by the orchestrator.
const (
	StateAgent         = "agent"
	StateContextID     = "context_id"
	StateTaskID        = "task_id"
	StateMessageID     = "message_id"
	StateSessionActive = "session_active"
	StateTaskState     = "task_state"
)

const (
	// AgentName is the name of the hosting agent.
	AgentName = "orchestrator_agent"
	// DefaultCardPath is where remote agents publish their card.
	DefaultCardPath = a2akit.V1CardPath

	agentDescription = "This agent orchestrates the decomposition of the user request into" +
		" tasks that can be performed by the child agents."
)

// AgentInfo is the list_remote_agents view of a card.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Options configures an Orchestrator.
type Options struct {
	// HTTPClient is used for card resolution and A2A calls.
	HTTPClient *http.Client
	// CardPath is appended to every remote agent URL.
	CardPath string
	// MaxConcurrentLoads bounds concurrent card resolution; zero means unbounded.
	MaxConcurrentLoads int
	Logger             logging.Logger
}

// Orchestrator routes requests to registered remote agents.
type Orchestrator struct {
	opts Options

	mu    sync.RWMutex
	conns map[string]*RemoteAgentConnection
}

// New creates an Orchestrator without remote agents.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		CardPath:   DefaultCardPath,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Orchestrator{opts: opts, conns: map[string]*RemoteAgentConnection{}}
}

// Load resolves the cards served at urls concurrently and registers them.
// Cards that fail to load are logged and skipped.
func (o *Orchestrator) Load(ctx context.Context, urls []string) error {
	g, gctx := errgroup.WithContext(ctx)
	if o.opts.MaxConcurrentLoads > 0 {
		g.SetLimit(o.opts.MaxConcurrentLoads)
	}

	resolver := a2akit.NewCardResolver(o.opts.HTTPClient)

	for _, url := range urls {
		g.Go(func() error {
			card, err := resolver.Resolve(gctx, url, o.opts.CardPath)
			if err != nil {
				o.opts.Logger.Warn("orchestrator.card.error", "url", url, "error", err)
				return nil
			}

			if card.URL == "" {
				card.URL = url
			}

			o.opts.Logger.Info("orchestrator.card.loaded", "url", url, "agent", card.Name)

			if err := o.Register(gctx, *card); err != nil {
				o.opts.Logger.Warn("orchestrator.card.error", "url", url, "error", err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

// Register adds or replaces the remote agent described by card. The card
// must advertise the URL of its JSON-RPC endpoint.
func (o *Orchestrator) Register(ctx context.Context, card a2a.AgentCard) error {
	client, err := a2akit.NewClient(ctx, &card, func(co *a2akit.ClientOptions) {
		co.HTTPClient = o.opts.HTTPClient
		co.Interceptors = []a2aclient.CallInterceptor{a2akit.LoggingInterceptor{Logger: o.opts.Logger}}
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if prev, ok := o.conns[card.Name]; ok {
		_ = prev.Client.Destroy()
	}

	o.conns[card.Name] = NewRemoteAgentConnection(card, client, o.opts.Logger)

	return nil
}

// Connection returns the connection registered under name.
func (o *Orchestrator) Connection(name string) (*RemoteAgentConnection, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	c, ok := o.conns[name]

	return c, ok
}

// ListRemoteAgents returns the registered agents sorted by name.
func (o *Orchestrator) ListRemoteAgents() []AgentInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(o.conns))
	for _, c := range o.conns {
		infos = append(infos, AgentInfo{Name: c.Card.Name, Description: c.Card.Description})
	}

	slices.SortFunc(infos, func(a, b AgentInfo) int { return strings.Compare(a.Name, b.Name) })

	return infos
}

// Instruction renders the delegator prompt for the current session.
func (o *Orchestrator) Instruction(rc *core.RunContext) (string, error) {
	infos := o.ListRemoteAgents()

	lines := make([]string, 0, len(infos))
	for _, info := range infos {
		b, err := json.Marshal(info)
		if err != nil {
			return "", err
		}
		lines = append(lines, string(b))
	}

	return fmt.Sprintf(instructionTemplate, strings.Join(lines, "\n"), ActiveAgent(rc)), nil
}

const instructionTemplate = `You are an expert delegator that can delegate the user request to the
appropriate remote agents.

Discovery:
- You can use ` + "`list_remote_agents`" + ` to list the available remote agents you
can use to delegate the task.

Execution:
- For actionable requests, you can use ` + "`send_message`" + ` to interact with remote agents to take action.
- You could use tools to check previous conversations, and relay information in response to user queries.

Be sure to include the remote agent name when you respond to the user.

Please rely on tools to address the request, and don't make up the response. If you are not sure, please ask the user for more details.
Focus on the most recent parts of the conversation primarily.

Agents:
%s

Current agent: %s `

// ActiveAgent returns the agent of the ongoing remote conversation, or
// "None" when there is none.
func ActiveAgent(rc *core.RunContext) string {
	_, hasContext := rc.GetState(StateContextID)
	active, _ := rc.GetState(StateSessionActive)
	name, hasAgent := rc.GetState(StateAgent)

	if hasContext && active == true && hasAgent {
		return fmt.Sprint(name)
	}

	return "None"
}

// BeforeModel marks the session as active.
func (o *Orchestrator) BeforeModel(rc *core.RunContext, _ *model.Request) error {
	if active, _ := rc.GetState(StateSessionActive); active != true {
		rc.SetState(StateSessionActive, true)
	}
	return nil
}

// Tools returns the list_remote_agents and send_message tools.
func (o *Orchestrator) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"list_remote_agents",
			"List the available remote agents you can use to delegate the task.",
			nil,
			func(*core.ToolContext, map[string]any) (any, error) {
				return o.ListRemoteAgents(), nil
			},
		),
		tool.NewFunctionTool(
			"send_message",
			"Sends a message to the remote agent named agent_name and returns its answer.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_name": map[string]any{
						"type":        "string",
						"description": "The name of the agent to send the task to.",
					},
					"message": map[string]any{
						"type":        "string",
						"description": "The message to send to the agent for the task.",
					},
				},
				"required": []string{"agent_name", "message"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				name, _ := args["agent_name"].(string)
				message, _ := args["message"].(string)
				return o.SendMessage(tc, name, message)
			},
		),
	}
}

// NewAgent creates the hosting LLM agent. optFns may add tools, callbacks
// or memory preloading.
func (o *Orchestrator) NewAgent(llm model.Model, optFns ...func(opts *agent.LLMAgentOptions)) *agent.LLMAgent {
	return agent.NewLLMAgent(AgentName, llm, func(opts *agent.LLMAgentOptions) {
		opts.Description = agentDescription
		opts.Instruction = agent.NewInstructionFromFunc(o.Instruction)
		opts.Tools = o.Tools()
		opts.BeforeModel = []flow.BeforeModelCallback{o.BeforeModel}
		opts.ToolTimeout = o.opts.HTTPClient.Timeout

		for _, fn := range optFns {
			fn(opts)
		}
	})
}

// SendMessage delegates message to the remote agent agentName and returns
// the converted reply parts.
func (o *Orchestrator) SendMessage(tc *core.ToolContext, agentName, message string) (any, error) {
	conn, ok := o.Connection(agentName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentName)
	}

	prevAgent, _ := tc.GetStateString(StateAgent)
	tc.SetState(StateAgent, agentName)

	contextID, _ := tc.GetStateString(StateContextID)

	// Only an open task of the same agent can receive a follow-up.
	var taskID string
	if st, _ := tc.GetStateString(StateTaskState); prevAgent == agentName && !a2a.TaskState(st).Terminal() {
		taskID, _ = tc.GetStateString(StateTaskID)
	}
	messageID, ok := tc.GetStateString(StateMessageID)
	if !ok {
		messageID = uuid.NewString()
	}

	req := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: message})
	req.ID = messageID
	req.ContextID = contextID
	req.TaskID = a2a.TaskID(taskID)

	res, err := conn.SendMessage(tc.Context(), req)
	if err != nil {
		return nil, err
	}

	switch r := res.(type) {
	case *a2a.Message:
		return convertParts(tc, r.Parts)
	case *a2a.Task:
		return o.handleTask(tc, agentName, r)
	default:
		return nil, fmt.Errorf("unexpected reply %T from %s", res, agentName)
	}
}

func (o *Orchestrator) handleTask(tc *core.ToolContext, agentName string, task *a2a.Task) (any, error) {
	state := task.Status.State

	switch state {
	case a2a.TaskStateCompleted, a2a.TaskStateCanceled, a2a.TaskStateFailed, a2a.TaskStateRejected, a2a.TaskStateUnknown:
		tc.SetState(StateSessionActive, false)
	default:
		tc.SetState(StateSessionActive, true)
	}

	if task.ContextID != "" {
		tc.SetState(StateContextID, task.ContextID)
	}
	tc.SetState(StateTaskID, string(task.ID))
	tc.SetState(StateTaskState, string(state))

	o.opts.Logger.Info("orchestrator.remote.task", "agent", agentName, "task_id", task.ID, "state", string(state))

	switch state {
	case a2a.TaskStateInputRequired:
		tc.SkipSummarization()
		tc.Escalate()
	case a2a.TaskStateCanceled:
		return nil, fmt.Errorf("Agent %s task %s is cancelled", agentName, task.ID)
	case a2a.TaskStateFailed, a2a.TaskStateRejected:
		return nil, fmt.Errorf("Agent %s task %s failed", agentName, task.ID)
	}

	out := []any{}

	if task.Status.Message != nil {
		parts, err := convertParts(tc, task.Status.Message.Parts)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}

	for _, a := range task.Artifacts {
		parts, err := convertParts(tc, a.Parts)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}

	return out, nil
}

// convertParts turns A2A parts into tool results: text becomes a string,
// data a map, and files are saved as artifacts.
func convertParts(tc *core.ToolContext, parts a2a.ContentParts) ([]any, error) {
	out := make([]any, 0, len(parts))

	for _, p := range parts {
		switch p := p.(type) {
		case a2a.TextPart:
			out = append(out, p.Text)
		case a2a.DataPart:
			out = append(out, p.Data)
		case a2a.FilePart:
			v, err := saveFile(tc, p.File)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		default:
			out = append(out, fmt.Sprintf("Unknown type: %T", p))
		}
	}

	return out, nil
}

func saveFile(tc *core.ToolContext, content a2a.FilePartContent) (any, error) {
	switch f := content.(type) {
	case a2a.FileURI:
		return map[string]any{"uri": f.URI, "mimeType": f.MimeType}, nil
	case a2a.FileBytes:
		data, err := base64.StdEncoding.DecodeString(f.Bytes)
		if err != nil {
			return nil, fmt.Errorf("decode file %s: %w", f.Name, err)
		}

		name := f.Name
		if name == "" {
			name = "file-" + uuid.NewString()
		}

		if err := tc.SaveArtifact(name, data); err != nil {
			return nil, err
		}

		tc.SkipSummarization()
		tc.Escalate()

		return map[string]any{"artifact-file-id": name}, nil
	default:
		return nil, errors.New("file part without file")
	}
}
