// Package gcpauth provides Google credentials for outgoing requests: ID
// tokens for calling Cloud Run services and access tokens for Google APIs.
// Both come from Application Default Credentials.
package gcpauth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"github.com/hupe1980/a2amesh/logging"
)

// CloudPlatformScope is the OAuth scope for Google Cloud APIs.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

const (
	// TokenLifetime is assumed for tokens that carry no expiry.
	TokenLifetime = 3600 * time.Second
	// RefreshMargin is the remaining lifetime below which a token is refreshed.
	RefreshMargin = 300 * time.Second
)

// TokenSourceFactory creates an ID token source for audience.
type TokenSourceFactory func(ctx context.Context, audience string) (oauth2.TokenSource, error)

// DefaultTokenSourceFactory uses Application Default Credentials.
func DefaultTokenSourceFactory(ctx context.Context, audience string) (oauth2.TokenSource, error) {
	return idtoken.NewTokenSource(ctx, audience)
}

// TokenManagerOptions configures a TokenManager.
type TokenManagerOptions struct {
	Factory TokenSourceFactory
	Logger  logging.Logger
	// Now is the clock; it defaults to time.Now.
	Now func() time.Time
}

// TokenManager caches an ID token for one audience.
type TokenManager struct {
	audience string
	opts     TokenManagerOptions

	mu     sync.Mutex
	source oauth2.TokenSource
	token  string
	expiry time.Time
}

// NewTokenManager creates a manager for ID tokens with the given audience,
// usually the URL of the called service.
func NewTokenManager(audience string, optFns ...func(o *TokenManagerOptions)) *TokenManager {
	opts := TokenManagerOptions{
		Factory: DefaultTokenSourceFactory,
		Logger:  logging.NoOpLogger{},
		Now:     time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &TokenManager{audience: audience, opts: opts}
}

// Audience returns the token audience.
func (m *TokenManager) Audience() string { return m.audience }

// Token returns a cached ID token, fetching a new one when fewer than
// RefreshMargin of its lifetime remain. The token source outlives ctx.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.Now()
	if m.token != "" && now.Before(m.expiry.Add(-RefreshMargin)) {
		return m.token, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if m.source == nil {
		src, err := m.opts.Factory(context.Background(), m.audience)
		if err != nil {
			return "", fmt.Errorf("create id token source for %s: %w", m.audience, err)
		}
		m.source = src
	}

	tok, err := m.source.Token()
	if err != nil {
		return "", fmt.Errorf("fetch id token for %s: %w", m.audience, err)
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = now.Add(TokenLifetime)
	}

	if !now.Before(expiry) {
		return "", fmt.Errorf("fetch id token for %s: token expired at %s", m.audience, expiry.Format(time.RFC3339))
	}

	m.opts.Logger.Debug("gcpauth.token.refreshed", "audience", m.audience, "expiry", expiry)

	m.token = tok.AccessToken
	m.expiry = expiry

	return m.token, nil
}

// Headers returns the Authorization header for the audience. Without
// credentials it logs a warning and returns an empty map, so local
// unauthenticated servers keep working.
func (m *TokenManager) Headers(ctx context.Context) (map[string]string, error) {
	token, err := m.Token(ctx)
	if err != nil {
		m.opts.Logger.Warn("gcpauth.token.unavailable", "audience", m.audience, "error", err)
		return map[string]string{}, nil
	}

	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// Transport adds the headers of a TokenManager to every request.
type Transport struct {
	Manager *TokenManager
	// Base is the underlying transport; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	headers, err := t.Manager.Headers(req.Context())
	if err != nil {
		return nil, err
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if len(headers) == 0 {
		return base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	for k, v := range headers {
		r.Header.Set(k, v)
	}

	return base.RoundTrip(r)
}

// AccessTokenSource returns cloud-platform scoped access tokens from
// Application Default Credentials.
func AccessTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	ts, err := google.DefaultTokenSource(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("find default credentials: %w", err)
	}
	return ts, nil
}

// NewAuthorizedClient returns an HTTP client that sends access tokens from
// ts, wrapping base.
func NewAuthorizedClient(ts oauth2.TokenSource, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}

	return &http.Client{Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, ts), Base: base}}
}
