// Package google builds the OAuth2 configuration for Google's endpoints
// and performs the two token exchanges the system needs: the
// authorization-code exchange during enrollment and the refresh-token
// exchange during normal operation.
package google
