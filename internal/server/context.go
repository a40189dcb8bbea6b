package server

import (
	"context"
	"sync"

	"github.com/calmcp/calmcp/internal/calendar"
	"github.com/calmcp/calmcp/internal/credentials"
)

// ToolObserver is notified of MCP tool invocations.
type ToolObserver interface {
	ObserveToolCall(tool string)
}

// ServerContext holds the shared state of the MCP server: the
// credential store, the refresher that fronts it, and a per-user cache
// of Calendar clients. Clients hold a token source, not a token, so a
// cached client survives refresh and rotation.
type ServerContext struct {
	ctx       context.Context
	cancel    context.CancelFunc
	store     credentials.Store
	refresher *credentials.Refresher
	clients   map[string]*calendar.Client
	observer  ToolObserver
	mu        sync.RWMutex
	shutdown  bool
}

// NewServerContext creates a new server context.
func NewServerContext(ctx context.Context, store credentials.Store, refresher *credentials.Refresher) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:       shutdownCtx,
		cancel:    cancel,
		store:     store,
		refresher: refresher,
		clients:   make(map[string]*calendar.Client),
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Store returns the credential store.
func (sc *ServerContext) Store() credentials.Store {
	return sc.store
}

// Refresher returns the token refresher.
func (sc *ServerContext) Refresher() *credentials.Refresher {
	return sc.refresher
}

// SetToolObserver attaches a tool invocation observer.
func (sc *ServerContext) SetToolObserver(obs ToolObserver) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.observer = obs
}

// ObserveToolCall records a tool invocation if an observer is set.
func (sc *ServerContext) ObserveToolCall(tool string) {
	sc.mu.RLock()
	obs := sc.observer
	sc.mu.RUnlock()
	if obs != nil {
		obs.ObserveToolCall(tool)
	}
}

// CalendarClientForUser returns the Calendar client for a user,
// creating and caching it on first use. The user must have a
// credential record; callers see the refresher's error taxonomy
// otherwise.
func (sc *ServerContext) CalendarClientForUser(ctx context.Context, userID string) (*calendar.Client, error) {
	sc.mu.RLock()
	client, ok := sc.clients[userID]
	sc.mu.RUnlock()
	if ok {
		return client, nil
	}

	// Surface unknown users and terminal refresh failures before a
	// client is cached.
	if _, err := sc.refresher.EnsureAccessToken(ctx, userID); err != nil {
		return nil, err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if client, ok := sc.clients[userID]; ok {
		return client, nil
	}

	client, err := calendar.NewClient(sc.ctx, userID, sc.refresher.TokenSource(sc.ctx, userID))
	if err != nil {
		return nil, err
	}
	sc.clients[userID] = client
	return client, nil
}

// DropClientForUser evicts a cached client, forcing the next tool call
// to go through the refresher again. Used after credential deletion.
func (sc *ServerContext) DropClientForUser(userID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.clients, userID)
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
