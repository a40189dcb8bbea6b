package google

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Exchanger exchanges refresh tokens and authorization codes against
// Google's token endpoint over TLS.
type Exchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewExchanger creates an Exchanger for the given OAuth2 configuration.
// httpClient may be nil, in which case the oauth2 package's default
// client is used. Tests point it at a local server.
func NewExchanger(config *oauth2.Config, httpClient *http.Client) *Exchanger {
	return &Exchanger{config: config, httpClient: httpClient}
}

// Refresh exchanges a refresh token for a fresh access token. The
// returned token carries a RefreshToken only when the provider rotated
// it.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = e.withHTTPClient(ctx)

	src := e.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token exchange: %w", err)
	}
	if tok.RefreshToken == refreshToken {
		// Not a rotation; let callers treat an empty RefreshToken as
		// "unchanged".
		tok.RefreshToken = ""
	}
	return tok, nil
}

// ExchangeCode swaps an authorization code for the initial token set
// during enrollment.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = e.withHTTPClient(ctx)

	tok, err := e.config.Exchange(ctx, code, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange: %w", err)
	}
	return tok, nil
}

// AuthCodeURL builds the consent-screen URL for an enrollment attempt.
// access_type=offline and prompt=consent make Google return a refresh
// token even for users who granted access before.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (e *Exchanger) withHTTPClient(ctx context.Context) context.Context {
	if e.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}
	return ctx
}
