package credentials

import "context"

// Store is the single source of truth for credential records. Both the
// enrollment surface and the protocol surface talk to the same store;
// everything else about the two processes is independent.
//
// Implementations must serialize concurrent Upserts for the same UserID
// and must never let a reader observe a partially written record. Get for
// an unknown user returns ErrNotFound, distinct from transient store
// errors.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	Upsert(ctx context.Context, record Record) error
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]Record, error)
}
