package a2akit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	"github.com/hupe1980/a2amesh/logging"
)

// CardResolver fetches agent cards.
type CardResolver struct {
	resolver *agentcard.Resolver
}

// NewCardResolver returns a resolver using client, or http.DefaultClient when nil.
func NewCardResolver(client *http.Client) *CardResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &CardResolver{resolver: agentcard.NewResolver(client)}
}

// Resolve fetches the card at baseURL+path. An empty path means AgentCardPath.
func (r *CardResolver) Resolve(ctx context.Context, baseURL, path string) (*a2a.AgentCard, error) {
	if path == "" {
		path = AgentCardPath
	}

	card, err := r.resolver.Resolve(ctx, baseURL, agentcard.WithPath(path), agentcard.WithRequestHeader("Accept", "application/json"))
	if err != nil {
		return nil, fmt.Errorf("fetch agent card %s%s: %w", baseURL, path, err)
	}

	return card, nil
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	// HTTPClient performs the requests; authentication is typically added by
	// its transport.
	HTTPClient   *http.Client
	Interceptors []a2aclient.CallInterceptor
}

// NewClient connects a JSON-RPC client to the URL advertised by card. Cards
// without a preferred transport are assumed to speak JSON-RPC.
func NewClient(ctx context.Context, card *a2a.AgentCard, optFns ...func(o *ClientOptions)) (*a2aclient.Client, error) {
	opts := ClientOptions{HTTPClient: &http.Client{Timeout: 5 * time.Minute}}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := *card
	if c.PreferredTransport == "" {
		c.PreferredTransport = a2a.TransportProtocolJSONRPC
	}

	factoryOpts := []a2aclient.FactoryOption{
		a2aclient.WithDefaultsDisabled(),
		a2aclient.WithJSONRPCTransport(opts.HTTPClient),
	}
	if len(opts.Interceptors) > 0 {
		factoryOpts = append(factoryOpts, a2aclient.WithInterceptors(opts.Interceptors...))
	}

	client, err := a2aclient.NewFromCard(ctx, &c, factoryOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", card.Name, err)
	}

	return client, nil
}

// LoggingInterceptor logs every A2A call and its outcome.
type LoggingInterceptor struct {
	a2aclient.PassthroughInterceptor
	Logger logging.Logger
}

type callStartKey struct{}

// Before implements a2aclient.CallInterceptor.
func (l LoggingInterceptor) Before(ctx context.Context, req *a2aclient.Request) (context.Context, error) {
	l.Logger.Debug("a2a.call.start", "method", req.Method, "url", req.BaseURL)
	return context.WithValue(ctx, callStartKey{}, time.Now()), nil
}

// After implements a2aclient.CallInterceptor.
func (l LoggingInterceptor) After(ctx context.Context, resp *a2aclient.Response) error {
	var ms int64
	if start, ok := ctx.Value(callStartKey{}).(time.Time); ok {
		ms = time.Since(start).Milliseconds()
	}

	if resp.Err != nil {
		l.Logger.Warn("a2a.call.error", "method", resp.Method, "url", resp.BaseURL, "duration_ms", ms, "error", resp.Err)
		return nil
	}

	l.Logger.Debug("a2a.call.done", "method", resp.Method, "url", resp.BaseURL, "duration_ms", ms)

	return nil
}
