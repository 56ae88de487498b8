// Package mcpserver hosts MCP tool servers over streamable HTTP.
//
// The cocktail and weather subpackages build the servers; Handler mounts one
// at /mcp next to a /healthz probe so it can run behind Cloud Run.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Path is where the streamable HTTP endpoint is mounted.
const Path = "/mcp"

// Handler returns an http.Handler serving s at Path.
func Handler(s *server.MCPServer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, server.NewStreamableHTTPServer(s))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	return mux
}

// UpstreamError is a non-2xx answer of an upstream HTTP API.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// ErrorResult turns err into a readable tool error result.
func ErrorResult(action string, err error) *mcp.CallToolResult {
	var ue *UpstreamError
	switch {
	case errors.As(err, &ue):
		return mcp.NewToolResultError(fmt.Sprintf("Unable to %s: %s is unavailable (HTTP %d).", action, ue.Service, ue.StatusCode))
	case errors.Is(err, context.DeadlineExceeded):
		return mcp.NewToolResultError(fmt.Sprintf("Unable to %s: the request timed out.", action))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Unable to %s: %v", action, err))
	}
}

// GetJSON performs a GET request and decodes the JSON answer into v.
func GetJSON(ctx context.Context, client *http.Client, service, url string, headers map[string]string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}

	return nil
}
