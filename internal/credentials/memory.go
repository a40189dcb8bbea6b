package credentials

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/calmcp/calmcp/internal/logging"
)

// MemoryStore keeps credential records in process memory. It backs the
// memory storage type for development and tests; production deployments
// use the Postgres store so records survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	logger  *slog.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		records: make(map[string]Record),
		logger:  logging.WithComponent(logger, "memory_store"),
	}
}

// Get returns the record for userID, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, userID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Upsert validates and stores the record, replacing any existing record
// for the same UserID. The whole record is swapped under the write lock,
// so readers never see mixed old/new fields.
func (s *MemoryStore) Upsert(ctx context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	record.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.UserID] = cloneRecord(record)
	s.logger.Debug("stored credential record",
		logging.User(record.UserID),
		slog.Time("expires_at", record.ExpiresAt))
	return nil
}

// Delete removes the record for userID, returning ErrNotFound when no
// record exists.
func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[userID]; !ok {
		return ErrNotFound
	}
	delete(s.records, userID)
	s.logger.Info("deleted credential record", logging.User(userID))
	return nil
}

// List returns all records ordered by UserID.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// cloneRecord copies a record including its scope slice so callers cannot
// mutate stored state through the returned value.
func cloneRecord(rec Record) Record {
	if rec.Scopes != nil {
		scopes := make([]string, len(rec.Scopes))
		copy(scopes, rec.Scopes)
		rec.Scopes = scopes
	}
	return rec
}
