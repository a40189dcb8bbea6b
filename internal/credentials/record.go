package credentials

import (
	"fmt"
	"time"
)

// Record is the durable credential material for one user. Exactly one
// record exists per UserID; writes are upserts keyed on it.
type Record struct {
	// UserID is the operator-chosen identifier, not derived from the
	// OAuth identity.
	UserID string

	// AccessToken is the short-lived bearer credential.
	AccessToken string

	// RefreshToken is the long-lived credential. Once granted it must
	// never be overwritten with an empty value.
	RefreshToken string

	// ExpiresAt is the instant at which AccessToken stops being valid.
	ExpiresAt time.Time

	// Scopes is the set of granted permission strings. Informational,
	// used to detect insufficient-scope conditions.
	Scopes []string

	// UpdatedAt is the time of the last successful persistence.
	UpdatedAt time.Time
}

// Validate checks the invariants a record must hold before it may be
// persisted. AccessToken and ExpiresAt travel together: a record with one
// but not the other is malformed and must be rejected rather than stored
// partially.
func (r Record) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id is empty", ErrInvalidRecord)
	}
	if r.AccessToken != "" && r.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: access_token set without expires_at", ErrInvalidRecord)
	}
	if r.AccessToken == "" && !r.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expires_at set without access_token", ErrInvalidRecord)
	}
	if r.RefreshToken == "" {
		return fmt.Errorf("%w: refresh_token is empty", ErrInvalidRecord)
	}
	return nil
}

// FreshAt reports whether the stored access token is still usable at the
// given instant, keeping a safety margin for clock drift and in-flight
// latency.
func (r Record) FreshAt(now time.Time, margin time.Duration) bool {
	if r.AccessToken == "" || r.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(r.ExpiresAt.Add(-margin))
}
