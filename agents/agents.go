// Package agents assembles the built-in cocktail, weather and hosting agents
// into A2A executors.
package agents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hupe1980/a2amesh/agent"
	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/executor"
	"github.com/hupe1980/a2amesh/gcpauth"
	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/memory"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/orchestrator"
	"github.com/hupe1980/a2amesh/runner"
	"github.com/hupe1980/a2amesh/telemetry"
	"github.com/hupe1980/a2amesh/tool"
	"github.com/hupe1980/a2amesh/tool/mcptool"
)

// RemoteAgentTimeout bounds calls from the hosting agent to remote agents.
const RemoteAgentTimeout = 120 * time.Second

// ErrNoModel is returned when no model provider is configured.
var ErrNoModel = errors.New("no model provider configured")

// ModelProvider creates the model named name.
type ModelProvider func(ctx context.Context, name string) (model.Model, error)

// Options configure the built-in agents.
type Options struct {
	Model         ModelProvider
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	// Memory preloads past conversations into the instruction and saves
	// every finished session into the memory bank.
	Memory bool
	// MemoryGenerator extracts memories; nil uses the agent's model.
	MemoryGenerator memory.Generator
	// MCPHeaders overrides the identity token headers sent to MCP servers.
	MCPHeaders mcptool.HeaderProvider
	MCPDialer  mcptool.Dialer
	// HTTPClient is used by the hosting agent to reach remote agents. Nil
	// builds an authorized, traced client from default credentials.
	HTTPClient *http.Client
	Logger     logging.Logger
}

func defaultOptions(optFns []func(o *Options)) Options {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Memory && opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}

	return opts
}

func (o Options) model(ctx context.Context, name string) (model.Model, error) {
	if o.Model == nil {
		return nil, ErrNoModel
	}

	m, err := o.Model(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create model %s: %w", name, err)
	}

	return m, nil
}

// NewMCPExecutor returns the executor of an agent whose tools come from the
// MCP server at mcpURL. The agent is built on the first request and the
// toolset's auth headers are refreshed before every request.
func NewMCPExecutor(def Definition, mcpURL string, optFns ...func(o *Options)) *executor.AgentExecutor {
	opts := defaultOptions(optFns)

	var toolset atomic.Pointer[mcptool.Toolset]

	factory := func(ctx context.Context) (*runner.Runner, error) {
		headers := opts.MCPHeaders
		if headers == nil && mcpURL != "" {
			headers = gcpauth.NewTokenManager(mcpURL, func(o *gcpauth.TokenManagerOptions) {
				o.Logger = opts.Logger
			}).Headers
		}

		ts, err := mcptool.New(mcpURL, func(o *mcptool.Options) {
			o.EnvVar = def.MCPURLEnv
			o.Headers = headers
			o.Logger = opts.Logger
			if opts.MCPDialer != nil {
				o.Dialer = opts.MCPDialer
			}
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.Name, err)
		}

		llm, err := opts.model(ctx, def.Model)
		if err != nil {
			return nil, err
		}

		a := agent.NewLLMAgent(def.Name, llm, func(o *agent.LLMAgentOptions) {
			o.Description = def.Description
			o.Instruction = agent.NewInstructionFromText(def.Instruction)
			o.Toolsets = []tool.Toolset{ts}
			o.PreloadMemory = opts.Memory
		})

		toolset.Store(ts)

		opts.Logger.Info("agents.init", "agent", def.Name, "mcp_url", mcpURL, "memory", opts.Memory)

		return newRunner(def, a, llm, opts), nil
	}

	refresh := func(ctx context.Context) error {
		if ts := toolset.Load(); ts != nil {
			return ts.Refresh(ctx)
		}
		return nil
	}

	return executor.New(factory, func(o *executor.Options) {
		o.BeforeExecute = []executor.BeforeExecuteHook{refresh}
		o.Logger = opts.Logger
	})
}

// NewHostExecutor returns the executor of the hosting agent delegating to
// the agents served at remoteURLs. Remote cards are resolved on the first
// request.
func NewHostExecutor(remoteURLs []string, optFns ...func(o *Options)) *executor.AgentExecutor {
	opts := defaultOptions(optFns)

	factory := func(ctx context.Context) (*runner.Runner, error) {
		client := opts.HTTPClient
		if client == nil {
			client = NewRemoteAgentClient(ctx, opts.Logger)
		}

		orch := orchestrator.New(func(o *orchestrator.Options) {
			o.HTTPClient = client
			o.Logger = opts.Logger
		})

		if err := orch.Load(ctx, remoteURLs); err != nil {
			return nil, err
		}

		llm, err := opts.model(ctx, Host.Model)
		if err != nil {
			return nil, err
		}

		a := orch.NewAgent(llm, func(o *agent.LLMAgentOptions) {
			o.PreloadMemory = opts.Memory
		})

		opts.Logger.Info("agents.init", "agent", Host.Name, "remote_agents", len(orch.ListRemoteAgents()), "memory", opts.Memory)

		return newRunner(Host, a, llm, opts), nil
	}

	return executor.New(factory, func(o *executor.Options) {
		o.Logger = opts.Logger
	})
}

func newRunner(def Definition, a core.Agent, llm model.Model, opts Options) *runner.Runner {
	return runner.New(def.Name, a, func(o *runner.Options) {
		o.SessionStore = opts.SessionStore
		o.ArtifactStore = opts.ArtifactStore
		o.MemoryStore = opts.MemoryStore
		o.Logger = opts.Logger

		if !opts.Memory {
			return
		}

		gen := opts.MemoryGenerator
		if gen == nil {
			gen = memory.NewModelGenerator(llm)
		}

		bank := memory.NewBank(opts.MemoryStore, func(b *memory.BankOptions) {
			b.Generator = gen
			b.Topics = def.Topics
			b.Logger = opts.Logger
		})

		o.AfterRun = append(o.AfterRun, bank.AddSessionToMemory)
	})
}

// NewRemoteAgentClient returns a traced client for remote agents. When
// default credentials are available requests carry cloud-platform access
// tokens; otherwise the client is unauthenticated.
func NewRemoteAgentClient(ctx context.Context, logger logging.Logger) *http.Client {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	ts, err := gcpauth.AccessTokenSource(ctx)
	if err != nil {
		logger.Warn("agents.auth.unavailable", "error", err)
		return telemetry.NewHTTPClient(nil, RemoteAgentTimeout)
	}

	c := gcpauth.NewAuthorizedClient(ts, telemetry.Transport(nil))
	c.Timeout = RemoteAgentTimeout

	return c
}
