package daraja

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, fetches *atomic.Int32, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		assert.Equal(t, "/oauth/v1/generate", r.URL.Path)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "consumer-key", user)
		assert.Equal(t, "consumer-secret", pass)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestCachedTokenSource_FetchAndCache(t *testing.T) {
	var fetches atomic.Int32
	srv := tokenServer(t, &fetches, http.StatusOK, `{"access_token":"tok-1","expires_in":"3599"}`)
	defer srv.Close()

	src := NewCachedTokenSource(srv.Client(), srv.URL, "consumer-key", "consumer-secret", nil)

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	tok, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestCachedTokenSource_RefetchesAfterExpiry(t *testing.T) {
	var fetches atomic.Int32
	srv := tokenServer(t, &fetches, http.StatusOK, `{"access_token":"tok-1","expires_in":"3599"}`)
	defer srv.Close()

	src := NewCachedTokenSource(srv.Client(), srv.URL, "consumer-key", "consumer-secret", nil)
	now := time.Now()
	src.nowFunc = func() time.Time { return now }

	_, err := src.Token(context.Background())
	require.NoError(t, err)

	// Jump past the declared lifetime minus the slack.
	now = now.Add(3599 * time.Second)
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestCachedTokenSource_Invalidate(t *testing.T) {
	var fetches atomic.Int32
	srv := tokenServer(t, &fetches, http.StatusOK, `{"access_token":"tok-1","expires_in":"3599"}`)
	defer srv.Close()

	src := NewCachedTokenSource(srv.Client(), srv.URL, "consumer-key", "consumer-secret", nil)

	_, err := src.Token(context.Background())
	require.NoError(t, err)
	src.Invalidate()
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestCachedTokenSource_AuthFailure(t *testing.T) {
	var fetches atomic.Int32
	srv := tokenServer(t, &fetches, http.StatusUnauthorized, `{"errorMessage":"Invalid Authentication"}`)
	defer srv.Close()

	src := NewCachedTokenSource(srv.Client(), srv.URL, "consumer-key", "consumer-secret", nil)

	_, err := src.Token(context.Background())
	assert.ErrorIs(t, err, domainErrors.ErrUpstreamAuth)
}

func TestCachedTokenSource_EmptyToken(t *testing.T) {
	var fetches atomic.Int32
	srv := tokenServer(t, &fetches, http.StatusOK, `{"access_token":"","expires_in":"3599"}`)
	defer srv.Close()

	src := NewCachedTokenSource(srv.Client(), srv.URL, "consumer-key", "consumer-secret", nil)

	_, err := src.Token(context.Background())
	assert.ErrorIs(t, err, domainErrors.ErrUpstreamAuth)
}

func TestCachedTokenSource_DefaultLifetimeOnBadExpiresIn(t *testing.T) {
	var fetches atomic.Int32
	srv := tokenServer(t, &fetches, http.StatusOK, `{"access_token":"tok-1","expires_in":"soon"}`)
	defer srv.Close()

	src := NewCachedTokenSource(srv.Client(), srv.URL, "consumer-key", "consumer-secret", nil)
	now := time.Now()
	src.nowFunc = func() time.Time { return now }

	_, err := src.Token(context.Background())
	require.NoError(t, err)

	// Still valid just before the one hour fallback, minus slack.
	now = now.Add(time.Hour - expirySlack - time.Second)
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load())
}
