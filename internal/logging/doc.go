// Package logging provides slog attribute helpers shared across the
// codebase, including sanitizers that keep token material and user
// identifiers out of log output.
package logging
