package guard

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "server-key-123"

func protectedHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuard_AcceptsAPIKeyHeader(t *testing.T) {
	g := New(testKey, nil)
	var called bool
	srv := g.Middleware(protectedHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_AcceptsBearerToken(t *testing.T) {
	g := New(testKey, nil)
	var called bool
	srv := g.Middleware(protectedHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.True(t, called)
}

func TestGuard_RejectsBeforeHandlerRuns(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"no credentials", func(*http.Request) {}},
		{"wrong api key", func(r *http.Request) { r.Header.Set("X-API-Key", "wrong") }},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") }},
		{"malformed authorization", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }},
		{"empty api key", func(r *http.Request) { r.Header.Set("X-API-Key", "") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(testKey, nil)
			var called bool
			srv := g.Middleware(protectedHandler(&called))

			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.False(t, called, "handler must not run for unauthenticated requests")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
		})
	}
}

func TestGuard_AuthenticateReturnsSentinel(t *testing.T) {
	g := New(testKey, nil)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.True(t, errors.Is(g.Authenticate(req), ErrRejected))

	req.Header.Set("X-API-Key", testKey)
	assert.NoError(t, g.Authenticate(req))
}

func TestGuard_PublicPathsBypassAuthentication(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz", "/.well-known/oauth-protected-resource"} {
		t.Run(path, func(t *testing.T) {
			g := New(testKey, nil)
			var called bool
			srv := g.Middleware(protectedHandler(&called))

			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			require.True(t, called)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

type countingObserver struct {
	outcomes []string
}

func (o *countingObserver) ObserveAuth(outcome string) {
	o.outcomes = append(o.outcomes, outcome)
}

func TestGuard_ReportsOutcomesToObserver(t *testing.T) {
	g := New(testKey, nil)
	obs := &countingObserver{}
	g.SetObserver(obs)
	var called bool
	srv := g.Middleware(protectedHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-API-Key", testKey)
	srv.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	srv.ServeHTTP(httptest.NewRecorder(), req)

	// Public paths are not authentication outcomes.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"accepted", "rejected"}, obs.outcomes)
}

func TestGuard_APIKeyHeaderTakesPrecedence(t *testing.T) {
	g := New(testKey, nil)
	var called bool
	srv := g.Middleware(protectedHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-API-Key", testKey)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.True(t, called)
}
