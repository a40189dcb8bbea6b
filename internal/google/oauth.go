package google

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

// Scopes lists the Google permissions the system requests during
// enrollment. Calendar access is the only one needed.
var Scopes = []string{
	calendar.CalendarScope,
}

// OAuthConfig returns the OAuth2 configuration for Google's endpoints.
// ClientID, ClientSecret, and RedirectURL come from startup
// configuration; they are required inputs, not baked-in values.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}
