// Package credentials implements the credential lifecycle manager: the
// durable per-user OAuth record, the store contract it is persisted
// through, and the refresher that keeps access tokens valid on demand.
package credentials
