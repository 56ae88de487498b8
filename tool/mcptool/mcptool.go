// Package mcptool exposes the tools of a remote MCP server as agent tools.
//
// The toolset talks streamable HTTP to <url>/mcp and attaches headers from a
// HeaderProvider on every connection, which is how identity tokens reach
// servers deployed behind Cloud Run authentication.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/tool"
)

// ErrMissingURL is returned when no MCP server URL is configured.
var ErrMissingURL = errors.New("mcp server url not configured")

// Client is the subset of the mcp-go client used by the toolset.
type Client interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// HeaderProvider supplies per-connection HTTP headers.
type HeaderProvider func(ctx context.Context) (map[string]string, error)

// Dialer opens a started, uninitialized client.
type Dialer func(ctx context.Context, endpoint string, headers map[string]string) (Client, error)

// Options configure a Toolset.
type Options struct {
	// EnvVar names the environment variable the URL came from, for error messages.
	EnvVar  string
	Headers HeaderProvider
	Dialer  Dialer
	Logger  logging.Logger
}

// Toolset lists and calls the tools of one MCP server.
type Toolset struct {
	endpoint string
	opts     Options

	mu      sync.Mutex
	client  Client
	headers map[string]string
}

var _ tool.Toolset = (*Toolset)(nil)

// New creates a toolset for the MCP server at url. The connection is opened lazily.
func New(url string, optFns ...func(o *Options)) (*Toolset, error) {
	opts := Options{
		Dialer: DialStreamableHTTP,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if url == "" {
		if opts.EnvVar != "" {
			return nil, fmt.Errorf("%w: set %s", ErrMissingURL, opts.EnvVar)
		}

		return nil, ErrMissingURL
	}

	return &Toolset{endpoint: Endpoint(url), opts: opts}, nil
}

// Endpoint returns the streamable HTTP endpoint for a server base URL.
func Endpoint(url string) string {
	url = strings.TrimRight(url, "/")
	if strings.HasSuffix(url, "/mcp") {
		return url
	}

	return url + "/mcp"
}

// DialStreamableHTTP is the default Dialer.
func DialStreamableHTTP(ctx context.Context, endpoint string, headers map[string]string) (Client, error) {
	c, err := client.NewStreamableHttpClient(endpoint, transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}

	return c, nil
}

// Tools lists the remote tools.
func (ts *Toolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	c, err := ts.conn(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list mcp tools: %w", err)
	}

	tools := make([]tool.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, &remoteTool{ts: ts, name: t.Name, description: t.Description, parameters: inputSchema(t)})
	}

	return tools, nil
}

// Refresh re-reads the headers and drops the connection when they changed,
// so the next call reconnects with fresh credentials.
func (ts *Toolset) Refresh(ctx context.Context) error {
	headers, err := ts.readHeaders(ctx)
	if err != nil {
		return err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.client != nil && maps.Equal(headers, ts.headers) {
		return nil
	}

	if ts.client != nil {
		ts.opts.Logger.Debug("mcp.toolset.reconnect", "endpoint", ts.endpoint)
		_ = ts.client.Close()
		ts.client = nil
	}

	return nil
}

// Close closes the underlying connection.
func (ts *Toolset) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.client == nil {
		return nil
	}

	err := ts.client.Close()
	ts.client = nil

	return err
}

func (ts *Toolset) readHeaders(ctx context.Context) (map[string]string, error) {
	if ts.opts.Headers == nil {
		return map[string]string{}, nil
	}

	headers, err := ts.opts.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp headers: %w", err)
	}

	return headers, nil
}

func (ts *Toolset) conn(ctx context.Context) (Client, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.client != nil {
		return ts.client, nil
	}

	headers, err := ts.readHeaders(ctx)
	if err != nil {
		return nil, err
	}

	c, err := ts.opts.Dialer(ctx, ts.endpoint, headers)
	if err != nil {
		return nil, err
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "a2amesh", Version: "1.0.0"}

	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize mcp session with %s: %w", ts.endpoint, err)
	}

	ts.opts.Logger.Info("mcp.toolset.connected", "endpoint", ts.endpoint)

	ts.client = c
	ts.headers = headers

	return c, nil
}

func (ts *Toolset) call(ctx context.Context, name string, args map[string]any) (any, error) {
	c, err := ts.conn(ctx)
	if err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call mcp tool %s: %w", name, err)
	}

	text := resultText(res)
	if res.IsError {
		return nil, tool.NewToolError(name, text, tool.CodeMCP)
	}

	return text, nil
}

func resultText(res *mcp.CallToolResult) string {
	var texts []string

	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			texts = append(texts, tc.Text)
		case *mcp.TextContent:
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}

func inputSchema(t mcp.Tool) map[string]any {
	props := t.InputSchema.Properties
	if props == nil {
		props = map[string]any{}
	}

	schema := map[string]any{"type": "object", "properties": props}
	if len(t.InputSchema.Required) > 0 {
		schema["required"] = t.InputSchema.Required
	}

	return schema
}

type remoteTool struct {
	ts          *Toolset
	name        string
	description string
	parameters  map[string]any
}

func (t *remoteTool) Name() string               { return t.name }
func (t *remoteTool) Description() string        { return t.description }
func (t *remoteTool) Parameters() map[string]any { return t.parameters }

func (t *remoteTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	toolCtx.Logger().Debug("mcp.tool.call", "tool", t.name, "fc_id", toolCtx.FunctionCallID())
	return t.ts.call(toolCtx.Context(), t.name, args)
}
