package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/calmcp/calmcp/internal/credentials"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(context.Context) error {
	return p.err
}

type stubExchanger struct {
	calls int
}

func (e *stubExchanger) Refresh(context.Context, string) (*oauth2.Token, error) {
	e.calls++
	return &oauth2.Token{
		AccessToken: "refreshed",
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

func TestHealthChecker_Liveness(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthChecker(&stubPinger{err: errors.New("down")}).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	// Liveness ignores the store.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthChecker_Readiness(t *testing.T) {
	t.Run("ready when store answers", func(t *testing.T) {
		mux := http.NewServeMux()
		NewHealthChecker(&stubPinger{}).Register(mux)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unavailable when store is down", func(t *testing.T) {
		mux := http.NewServeMux()
		NewHealthChecker(&stubPinger{err: errors.New("connection refused")}).Register(mux)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func newTestServerContext(t *testing.T) (*ServerContext, *credentials.MemoryStore) {
	t.Helper()
	store := credentials.NewMemoryStore(nil)
	refresher := credentials.NewRefresher(store, &stubExchanger{}, nil)
	sc := NewServerContext(context.Background(), store, refresher)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, store
}

func TestServerContext_CalendarClientForUnknownUser(t *testing.T) {
	sc, _ := newTestServerContext(t)

	_, err := sc.CalendarClientForUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, credentials.ErrUnauthorizedUser)
}

func TestServerContext_CalendarClientIsCached(t *testing.T) {
	sc, store := newTestServerContext(t)

	require.NoError(t, store.Upsert(context.Background(), credentials.Record{
		UserID:       "alice",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	first, err := sc.CalendarClientForUser(context.Background(), "alice")
	require.NoError(t, err)
	second, err := sc.CalendarClientForUser(context.Background(), "alice")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "alice", first.UserID())
}

func TestServerContext_DropClientForUser(t *testing.T) {
	sc, store := newTestServerContext(t)

	require.NoError(t, store.Upsert(context.Background(), credentials.Record{
		UserID:       "alice",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	first, err := sc.CalendarClientForUser(context.Background(), "alice")
	require.NoError(t, err)

	sc.DropClientForUser("alice")

	second, err := sc.CalendarClientForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestServerContext_ShutdownIsIdempotent(t *testing.T) {
	sc, _ := newTestServerContext(t)

	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())
}
