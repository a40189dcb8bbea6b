package enroll

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/calmcp/calmcp/internal/logging"
)

const defaultFlowTTL = 10 * time.Minute

var (
	ErrFlowNotFound = errors.New("authorization flow not found")
	ErrFlowExpired  = errors.New("authorization flow expired")
)

// Flow is one in-progress authorization round trip. It is keyed by the
// state parameter handed to the provider and bound to the user the
// operator started enrollment for.
type Flow struct {
	State     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// FlowStore holds pending authorization flows in memory. Flows are
// short-lived and consumed exactly once, so losing them on restart only
// means the operator restarts enrollment.
type FlowStore struct {
	flows  map[string]*Flow
	mu     sync.Mutex
	ttl    time.Duration
	logger *slog.Logger
	done   chan struct{}
}

// NewFlowStore creates a flow store and starts its cleanup goroutine.
func NewFlowStore(logger *slog.Logger) *FlowStore {
	if logger == nil {
		logger = slog.Default()
	}

	store := &FlowStore{
		flows:  make(map[string]*Flow),
		ttl:    defaultFlowTTL,
		logger: logger,
		done:   make(chan struct{}),
	}

	go store.cleanup()

	return store
}

// Save records a pending flow under its state parameter.
func (s *FlowStore) Save(flow *Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flows[flow.State] = flow
	s.logger.Debug("saved authorization flow",
		logging.User(flow.UserID),
		"expires_at", flow.ExpiresAt,
	)
}

// Consume retrieves and immediately deletes a flow by state parameter.
// Single use prevents a callback from being replayed.
func (s *FlowStore) Consume(state string) (*Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, exists := s.flows[state]
	if !exists {
		return nil, ErrFlowNotFound
	}

	delete(s.flows, state)

	if time.Now().After(flow.ExpiresAt) {
		return nil, ErrFlowExpired
	}

	s.logger.Debug("authorization flow consumed", logging.User(flow.UserID))
	return flow, nil
}

// Close stops the cleanup goroutine.
func (s *FlowStore) Close() {
	close(s.done)
}

// cleanup periodically removes expired flows.
func (s *FlowStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.done:
			return
		}
	}
}

func (s *FlowStore) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	deleted := 0
	for state, flow := range s.flows {
		if now.After(flow.ExpiresAt) {
			delete(s.flows, state)
			deleted++
		}
	}

	if deleted > 0 {
		s.logger.Debug("cleaned up expired authorization flows", "deleted", deleted)
	}
}
