package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/calmcp/calmcp/internal/logging"
)

const (
	// DefaultSafetyMargin is subtracted from a token's expiry when
	// deciding whether it is still usable, tolerating clock drift and
	// in-flight request latency.
	DefaultSafetyMargin = 60 * time.Second

	// defaultExchangeTimeout bounds a single call to the token endpoint.
	defaultExchangeTimeout = 15 * time.Second

	// defaultMaxAttempts bounds retries against transient upstream
	// failures.
	defaultMaxAttempts = 3

	defaultBackoffBase = 250 * time.Millisecond
)

// Exchanger performs a refresh-token exchange against the upstream
// provider's token endpoint.
type Exchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// RefreshObserver receives the outcome of each refresh exchange, for
// metrics. Implementations must be safe for concurrent use.
type RefreshObserver interface {
	ObserveRefresh(result string, elapsed time.Duration)
}

// Refresher ensures a valid access token is available on demand,
// performing the refresh-token exchange and persisting the result when
// the stored token is expired or about to expire.
type Refresher struct {
	store     Store
	exchanger Exchanger
	logger    *slog.Logger
	observer  RefreshObserver

	margin          time.Duration
	exchangeTimeout time.Duration
	maxAttempts     int
	backoffBase     time.Duration

	now func() time.Time

	mu        sync.Mutex
	userLocks map[string]*userLock
}

// userLock serializes refreshes for one user. Entries are reference
// counted so the lock map does not accumulate an entry per user ever
// seen.
type userLock struct {
	sync.Mutex
	refs int
}

// NewRefresher creates a Refresher with the default safety margin, retry
// budget, and exchange timeout.
func NewRefresher(store Store, exchanger Exchanger, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		store:           store,
		exchanger:       exchanger,
		logger:          logging.WithComponent(logger, "refresher"),
		margin:          DefaultSafetyMargin,
		exchangeTimeout: defaultExchangeTimeout,
		maxAttempts:     defaultMaxAttempts,
		backoffBase:     defaultBackoffBase,
		now:             time.Now,
		userLocks:       make(map[string]*userLock),
	}
}

// SetObserver attaches a metrics observer. Must be called before the
// refresher is shared between goroutines.
func (r *Refresher) SetObserver(obs RefreshObserver) {
	r.observer = obs
}

// EnsureAccessToken returns a non-expired access token for the user,
// refreshing and persisting on demand. It is safe under concurrent
// invocation for the same user: callers racing on an expired token
// serialize on a per-user lock and all but the first reuse the freshly
// persisted token.
func (r *Refresher) EnsureAccessToken(ctx context.Context, userID string) (string, error) {
	rec, err := r.ensure(ctx, userID)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// ensure returns the user's record with a non-expired access token,
// refreshing and persisting first when needed.
func (r *Refresher) ensure(ctx context.Context, userID string) (Record, error) {
	rec, err := r.load(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	if rec.FreshAt(r.now(), r.margin) {
		return rec, nil
	}

	lock := r.lockUser(userID)
	defer r.unlockUser(userID, lock)

	// A concurrent caller may have refreshed while we waited for the lock.
	rec, err = r.load(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	if rec.FreshAt(r.now(), r.margin) {
		return rec, nil
	}

	tok, err := r.exchange(ctx, rec.RefreshToken)
	if err != nil {
		// The stored record stays untouched: a dead refresh token is
		// only replaced by re-enrollment, never wiped speculatively.
		r.logger.Error("token refresh failed", logging.User(userID), logging.Err(err))
		return Record{}, err
	}

	updated := rec
	updated.AccessToken = tok.AccessToken
	updated.ExpiresAt = tok.Expiry.UTC()
	if tok.RefreshToken != "" && tok.RefreshToken != rec.RefreshToken {
		// Provider rotated the refresh token. The old one is discarded
		// only by persisting the new one below.
		updated.RefreshToken = tok.RefreshToken
	}
	if scopes := scopesFromToken(tok); len(scopes) > 0 {
		updated.Scopes = scopes
	}

	// The exchange cannot be rolled back upstream, so the persist runs
	// detached from the caller's cancellation. If the write fails the
	// whole refresh fails and the prior record stays intact.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.exchangeTimeout)
	defer cancel()
	if err := r.store.Upsert(persistCtx, updated); err != nil {
		r.logger.Error("failed to persist refreshed token", logging.User(userID), logging.Err(err))
		return Record{}, fmt.Errorf("persisting refreshed token: %w", err)
	}

	r.logger.Info("refreshed access token",
		logging.User(userID),
		slog.Time("expires_at", updated.ExpiresAt))
	return updated, nil
}

// TokenSource returns an oauth2.TokenSource that serves tokens for the
// user through this refresher, for use with Google API clients.
func (r *Refresher) TokenSource(ctx context.Context, userID string) oauth2.TokenSource {
	return &refresherTokenSource{ctx: ctx, refresher: r, userID: userID}
}

func (r *Refresher) load(ctx context.Context, userID string) (Record, error) {
	rec, err := r.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %q", ErrUnauthorizedUser, userID)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// exchange calls the token endpoint with bounded retries. The exchange
// context is detached from the caller so an abandoned request does not
// abort an exchange that is already in flight.
func (r *Refresher) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	detached := context.WithoutCancel(ctx)
	backoff := r.backoffBase

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		start := r.now()
		attemptCtx, cancel := context.WithTimeout(detached, r.exchangeTimeout)
		tok, err := r.exchanger.Refresh(attemptCtx, refreshToken)
		cancel()

		if err == nil {
			r.observe("success", r.now().Sub(start))
			return tok, nil
		}
		if refreshTokenRejected(err) {
			r.observe("rejected", r.now().Sub(start))
			return nil, fmt.Errorf("%w: %v", ErrReauthorizationRequired, err)
		}

		lastErr = err
		r.observe("transient_error", r.now().Sub(start))
		if attempt < r.maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, lastErr)
}

func (r *Refresher) observe(result string, elapsed time.Duration) {
	if r.observer != nil {
		r.observer.ObserveRefresh(result, elapsed)
	}
}

// lockUser takes the per-user refresh lock, creating it on first use.
// Callers racing on the same user share one entry, so their refreshes
// still coalesce.
func (r *Refresher) lockUser(userID string) *userLock {
	r.mu.Lock()
	lock, ok := r.userLocks[userID]
	if !ok {
		lock = &userLock{}
		r.userLocks[userID] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.Lock()
	return lock
}

// unlockUser releases the per-user lock and drops the map entry once no
// caller holds or waits on it.
func (r *Refresher) unlockUser(userID string, lock *userLock) {
	lock.Unlock()

	r.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(r.userLocks, userID)
	}
	r.mu.Unlock()
}

// refreshTokenRejected reports whether the exchange failed because the
// refresh token itself is invalid or revoked, which is terminal until
// the user is re-enrolled.
func refreshTokenRejected(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	switch retrieveErr.ErrorCode {
	case "invalid_grant", "unauthorized_client", "access_denied":
		return true
	}
	return false
}

// scopesFromToken extracts the granted scope set from a token response.
// Google returns scopes as a single space-separated string.
func scopesFromToken(tok *oauth2.Token) []string {
	raw, _ := tok.Extra("scope").(string)
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

// refresherTokenSource adapts a Refresher to oauth2.TokenSource.
type refresherTokenSource struct {
	ctx       context.Context
	refresher *Refresher
	userID    string
}

// Token carries the stored expiry so reusing sources such as
// oauth2.ReuseTokenSource know when to come back instead of serving a
// stale cached token forever.
func (ts *refresherTokenSource) Token() (*oauth2.Token, error) {
	rec, err := ts.refresher.ensure(ts.ctx, ts.userID)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: rec.AccessToken,
		TokenType:   "Bearer",
		Expiry:      rec.ExpiresAt,
	}, nil
}
