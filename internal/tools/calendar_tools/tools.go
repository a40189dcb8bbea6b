package calendar_tools

import (
	"context"
	"errors"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calmcp/calmcp/internal/calendar"
	"github.com/calmcp/calmcp/internal/credentials"
	"github.com/calmcp/calmcp/internal/logging"
	"github.com/calmcp/calmcp/internal/server"
)

// getUserFromArgs extracts the user identifier from request arguments, defaulting to "default"
func getUserFromArgs(args map[string]interface{}) string {
	user := "default"
	if userVal, ok := args["user"].(string); ok && userVal != "" {
		user = userVal
	}
	return user
}

// getCalendarClient retrieves or creates a calendar client for the specified user.
// Credential failures come back as operator-actionable messages rather
// than raw upstream errors.
func getCalendarClient(ctx context.Context, user string, sc *server.ServerContext) (*calendar.Client, error) {
	client, err := sc.CalendarClientForUser(ctx, user)
	if err != nil {
		return nil, describeCredentialError(user, err)
	}
	return client, nil
}

// describeCredentialError turns credential lifecycle failures into
// messages that tell the operator what to do next. The anonymized user
// tag matches what the server logs, so the two can be correlated.
func describeCredentialError(user string, err error) error {
	tag := logging.AnonymizeUser(user)
	switch {
	case errors.Is(err, credentials.ErrUnauthorizedUser):
		return fmt.Errorf("no credentials found for user %q (%s): an operator must enroll this user through the admin interface before calendar tools can be used", user, tag)
	case errors.Is(err, credentials.ErrReauthorizationRequired):
		return fmt.Errorf("stored credentials for user %q (%s) were revoked by the provider: an operator must re-enroll this user through the admin interface", user, tag)
	case errors.Is(err, credentials.ErrUpstreamUnavailable):
		return fmt.Errorf("the token endpoint is unreachable: retry later (user %s)", tag)
	case errors.Is(err, credentials.ErrStoreUnavailable):
		return fmt.Errorf("the credential store is unavailable: retry later (user %s)", tag)
	}
	return err
}

// RegisterCalendarTools registers all Calendar-related tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterCalendarListTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register calendar list tools: %w", err)
	}

	if err := RegisterEventTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}

	if err := RegisterSchedulingTools(s, sc); err != nil {
		return fmt.Errorf("failed to register scheduling tools: %w", err)
	}

	return nil
}
