package daraja

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	"golang.org/x/sync/singleflight"
)

// TokenSource yields a valid bearer token for the Daraja API. Implementations
// are injected so tests can swap in a static source.
type TokenSource interface {
	// Token returns a cached token, fetching a fresh one when expired.
	Token(ctx context.Context) (string, error)
	// Invalidate drops the cached token, forcing a re-fetch on next use.
	Invalidate()
}

// expirySlack is subtracted from the provider-declared lifetime so a token
// is never used right at its expiry edge.
const expirySlack = 30 * time.Second

// CachedTokenSource fetches OAuth tokens with Basic auth and caches them
// until the provider-declared expiry. Concurrent refreshes are collapsed to
// a single upstream fetch via singleflight; correctness does not depend on
// that, an extra fetch is merely wasteful.
type CachedTokenSource struct {
	httpClient     *http.Client
	baseURL        string
	consumerKey    string
	consumerSecret string
	metrics        *observability.Metrics

	mu      sync.Mutex
	token   string
	expiry  time.Time
	sf      singleflight.Group
	nowFunc func() time.Time
}

func NewCachedTokenSource(httpClient *http.Client, baseURL, consumerKey, consumerSecret string, metrics *observability.Metrics) *CachedTokenSource {
	return &CachedTokenSource{
		httpClient:     httpClient,
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		metrics:        metrics,
		nowFunc:        time.Now,
	}
}

func (s *CachedTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" && s.nowFunc().Before(s.expiry) {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do("token", func() (any, error) {
		token, err := s.fetch(ctx)
		if s.metrics != nil {
			s.metrics.TokenRefreshes.WithLabelValues(outcome(err)).Inc()
		}
		return token, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *CachedTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiry = time.Time{}
	s.mu.Unlock()
}

func (s *CachedTokenSource) fetch(ctx context.Context) (string, error) {
	url := s.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(s.consumerKey, s.consumerSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token fetch: %v", domainErrors.ErrUpstreamRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", domainErrors.ErrUpstreamAuth, resp.StatusCode)
	}

	var result tokenResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", domainErrors.ErrUpstreamAuth, err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domainErrors.ErrUpstreamAuth)
	}

	lifetime := time.Hour
	if secs, err := strconv.Atoi(result.ExpiresIn); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}
	if lifetime > expirySlack {
		lifetime -= expirySlack
	}

	s.mu.Lock()
	s.token = result.AccessToken
	s.expiry = s.nowFunc().Add(lifetime)
	s.mu.Unlock()

	return result.AccessToken, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
