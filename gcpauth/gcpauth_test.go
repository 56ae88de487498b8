package gcpauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type countingSource struct{ n atomic.Int32 }

func (s *countingSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "id-token-" + strconv.Itoa(int(s.n.Add(1)))}, nil
}

func fixedFactory(src oauth2.TokenSource) TokenSourceFactory {
	return func(context.Context, string) (oauth2.TokenSource, error) { return src, nil }
}

func TestTokenManager_CachesUntilRefreshMargin(t *testing.T) {
	src := &countingSource{}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	m := NewTokenManager("https://weather.run.app", func(o *TokenManagerOptions) {
		o.Factory = fixedFactory(src)
		o.Now = func() time.Time { return now }
	})

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-token-1", tok)

	now = now.Add(TokenLifetime - RefreshMargin - time.Second)
	tok, _ = m.Token(context.Background())
	assert.Equal(t, "id-token-1", tok)

	now = now.Add(time.Second)
	tok, _ = m.Token(context.Background())
	assert.Equal(t, "id-token-2", tok)
}

// expiringSource hands out the same token until the clock passes its expiry,
// like oauth2.ReuseTokenSource does.
type expiringSource struct {
	now    func() time.Time
	ttl    time.Duration
	issued int
	tok    *oauth2.Token
}

func (s *expiringSource) Token() (*oauth2.Token, error) {
	if s.tok == nil || !s.now().Before(s.tok.Expiry) {
		s.issued++
		s.tok = &oauth2.Token{AccessToken: "id-token-" + strconv.Itoa(s.issued), Expiry: s.now().Add(s.ttl)}
	}
	return s.tok, nil
}

func TestTokenManager_HonoursTokenExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	src := &expiringSource{now: clock, ttl: 10 * time.Minute}

	m := NewTokenManager("https://cocktail.run.app", func(o *TokenManagerOptions) {
		o.Factory = fixedFactory(src)
		o.Now = clock
	})

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-token-1", tok)

	// Inside the refresh margin the source still returns the unexpired token.
	now = now.Add(6 * time.Minute)
	tok, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-token-1", tok)

	now = now.Add(30 * time.Minute)
	tok, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-token-2", tok)
}

func TestTokenManager_SourceOutlivesRequestContext(t *testing.T) {
	var sourceCtx context.Context

	m := NewTokenManager("aud", func(o *TokenManagerOptions) {
		o.Factory = func(ctx context.Context, _ string) (oauth2.TokenSource, error) {
			sourceCtx = ctx
			return &countingSource{}, nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := m.Token(ctx)
	require.NoError(t, err)
	cancel()

	require.NotNil(t, sourceCtx)
	assert.NoError(t, sourceCtx.Err())
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	m := NewTokenManager("aud", func(o *TokenManagerOptions) {
		o.Factory = fixedFactory(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "stale", Expiry: now.Add(-time.Minute)}))
		o.Now = func() time.Time { return now }
	})

	_, err := m.Token(context.Background())
	assert.ErrorContains(t, err, "expired")
}

func TestTokenManager_HeadersWithoutCredentials(t *testing.T) {
	m := NewTokenManager("aud", func(o *TokenManagerOptions) {
		o.Factory = func(context.Context, string) (oauth2.TokenSource, error) {
			return nil, errors.New("could not find default credentials")
		}
	})

	h, err := m.Headers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h)

	m = NewTokenManager("aud", func(o *TokenManagerOptions) { o.Factory = fixedFactory(&countingSource{}) })
	h, err = m.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer id-token-1"}, h)
}

func TestTransport_InjectsHeader(t *testing.T) {
	var got atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
	}))
	defer ts.Close()

	m := NewTokenManager(ts.URL, func(o *TokenManagerOptions) { o.Factory = fixedFactory(&countingSource{}) })
	client := &http.Client{Transport: &Transport{Manager: m}}

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer id-token-1", got.Load())
	assert.Empty(t, req.Header.Get("Authorization"), "original request must not be mutated")
}

func TestNewAuthorizedClient(t *testing.T) {
	var got atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
	}))
	defer ts.Close()

	client := NewAuthorizedClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access"}), nil)

	resp, err := client.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer access", got.Load())
}
