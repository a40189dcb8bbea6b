package calendar_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calmcp/calmcp/internal/server"
)

// RegisterSchedulingTools registers availability tools with the MCP server
func RegisterSchedulingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	freeBusyTool := mcp.NewTool("query_free_busy",
		mcp.WithDescription("Check busy/free time ranges for one or more calendars"),
		mcp.WithString("user",
			mcp.Description("User identifier the credentials were enrolled under (default: 'default')"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start time for the range (RFC3339 format)"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End time for the range (RFC3339 format)"),
		),
		mcp.WithString("calendarIds",
			mcp.Description("Comma-separated calendar IDs to check (default: 'primary')"),
		),
	)

	s.AddTool(freeBusyTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleQueryFreeBusy(ctx, request, sc)
	})

	return nil
}

func handleQueryFreeBusy(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.ObserveToolCall("query_free_busy")

	args := request.GetArguments()
	user := getUserFromArgs(args)

	timeMin, errResult := parseRequiredTime(args, "timeMin")
	if errResult != nil {
		return errResult, nil
	}
	timeMax, errResult := parseRequiredTime(args, "timeMax")
	if errResult != nil {
		return errResult, nil
	}

	calendarIDs := []string{"primary"}
	if idsVal, ok := args["calendarIds"].(string); ok && idsVal != "" {
		calendarIDs = splitEmails(idsVal)
	}

	client, err := getCalendarClient(ctx, user, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	infos, err := client.QueryFreeBusy(ctx, timeMin, timeMax, calendarIDs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to query freebusy: %v", err)), nil
	}

	result := ""
	for _, info := range infos {
		result += fmt.Sprintf("Calendar: %s\n", info.Calendar)
		if len(info.Busy) == 0 {
			result += "  No busy periods\n"
		}
		for _, busy := range info.Busy {
			result += fmt.Sprintf("  Busy: %s - %s\n", busy.Start.Format(time.RFC3339), busy.End.Format(time.RFC3339))
		}
		for _, reason := range info.Errors {
			result += fmt.Sprintf("  Error: %s\n", reason)
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}
