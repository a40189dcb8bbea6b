package credentials

import "errors"

var (
	// ErrNotFound indicates no credential record exists for the user.
	ErrNotFound = errors.New("credential record not found")

	// ErrUnauthorizedUser indicates a token was requested for a user that
	// was never enrolled.
	ErrUnauthorizedUser = errors.New("user has no stored credentials")

	// ErrReauthorizationRequired indicates the refresh token is invalid or
	// revoked. The user must be re-enrolled by an operator; retrying is
	// pointless.
	ErrReauthorizationRequired = errors.New("refresh token rejected, re-enrollment required")

	// ErrUpstreamUnavailable indicates the token endpoint could not be
	// reached after retries.
	ErrUpstreamUnavailable = errors.New("token endpoint unavailable")

	// ErrStoreUnavailable indicates the datastore could not serve the
	// request. Distinct from ErrNotFound.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrInvalidRecord indicates a record failed validation at the store
	// boundary.
	ErrInvalidRecord = errors.New("invalid credential record")
)
