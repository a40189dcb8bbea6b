package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calmcp/calmcp/internal/server"
)

// RegisterCalendarListTools registers calendar management tools with the MCP server
func RegisterCalendarListTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listCalendarsTool := mcp.NewTool("list_calendars",
		mcp.WithDescription("List all calendars accessible to the user"),
		mcp.WithString("user",
			mcp.Description("User identifier the credentials were enrolled under (default: 'default')"),
		),
	)

	s.AddTool(listCalendarsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListCalendars(ctx, request, sc)
	})

	if !readOnly {
		createCalendarTool := mcp.NewTool("create_calendar",
			mcp.WithDescription("Create a new secondary calendar"),
			mcp.WithString("user",
				mcp.Description("User identifier the credentials were enrolled under (default: 'default')"),
			),
			mcp.WithString("summary",
				mcp.Required(),
				mcp.Description("Calendar title"),
			),
			mcp.WithString("description",
				mcp.Description("Calendar description"),
			),
			mcp.WithString("timeZone",
				mcp.Description("Calendar time zone (e.g., 'Europe/Berlin'). Defaults to UTC."),
			),
		)

		s.AddTool(createCalendarTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateCalendar(ctx, request, sc)
		})
	}

	return nil
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.ObserveToolCall("list_calendars")

	args := request.GetArguments()
	user := getUserFromArgs(args)

	client, err := getCalendarClient(ctx, user, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list calendars: %v", err)), nil
	}

	result := fmt.Sprintf("Found %d calendars:\n\n", len(calendars))
	for i, cal := range calendars {
		result += fmt.Sprintf("%d. %s\n", i+1, cal.Summary)
		result += fmt.Sprintf("   ID: %s\n", cal.ID)
		if cal.Primary {
			result += "   Primary: yes\n"
		}
		if cal.TimeZone != "" {
			result += fmt.Sprintf("   TimeZone: %s\n", cal.TimeZone)
		}
		result += fmt.Sprintf("   Access: %s\n\n", cal.AccessRole)
	}

	return mcp.NewToolResultText(result), nil
}

func handleCreateCalendar(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.ObserveToolCall("create_calendar")

	args := request.GetArguments()
	user := getUserFromArgs(args)

	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}

	description := ""
	if descVal, ok := args["description"].(string); ok {
		description = descVal
	}

	timeZone := "UTC"
	if tzVal, ok := args["timeZone"].(string); ok && tzVal != "" {
		timeZone = tzVal
	}

	client, err := getCalendarClient(ctx, user, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created, err := client.CreateCalendar(ctx, summary, description, timeZone)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create calendar: %v", err)), nil
	}

	result := fmt.Sprintf("Calendar created: %s\n", created.Summary)
	result += fmt.Sprintf("ID: %s\n", created.ID)
	result += fmt.Sprintf("TimeZone: %s\n", created.TimeZone)

	return mcp.NewToolResultText(result), nil
}
