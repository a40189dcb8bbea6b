package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calmcp/calmcp/internal/calendar"
	"github.com/calmcp/calmcp/internal/server"
)

// RegisterEventTools registers event-related tools with the MCP server
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// Find events tool (read-only, always available)
	findEventsTool := mcp.NewTool("find_events",
		mcp.WithDescription("List/search calendar events within a time range"),
		mcp.WithString("user",
			mcp.Description("User identifier the credentials were enrolled under (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start time for the range (RFC3339 format, e.g., '2026-01-01T00:00:00Z')"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End time for the range (RFC3339 format, e.g., '2026-01-31T23:59:59Z')"),
		),
		mcp.WithString("query",
			mcp.Description("Optional search query to filter events"),
		),
	)

	s.AddTool(findEventsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleFindEvents(ctx, request, sc)
	})

	if readOnly {
		return nil
	}

	// Create event tool
	createEventTool := mcp.NewTool("create_event",
		mcp.WithDescription("Create a new calendar event"),
		mcp.WithString("user",
			mcp.Description("User identifier the credentials were enrolled under (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title/summary"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339 format, e.g., '2026-01-15T14:00:00Z')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339 format, e.g., '2026-01-15T15:00:00Z')"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone (e.g., 'America/New_York'). Defaults to UTC."),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
		mcp.WithString("recurrence",
			mcp.Description("Recurrence rule (e.g., 'RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR')"),
		),
		mcp.WithBoolean("allDay",
			mcp.Description("Create as all-day event (ignores time portion of start/end)"),
		),
	)

	s.AddTool(createEventTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCreateEvent(ctx, request, sc)
	})

	// Quick add tool
	quickAddTool := mcp.NewTool("quick_add_event",
		mcp.WithDescription("Create an event from a natural-language description (e.g., 'Lunch with Anna tomorrow at noon')"),
		mcp.WithString("user",
			mcp.Description("User identifier the credentials were enrolled under (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Natural-language event description"),
		),
	)

	s.AddTool(quickAddTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleQuickAddEvent(ctx, request, sc)
	})

	// Update event tool
	updateEventTool := mcp.NewTool("update_event",
		mcp.WithDescription("Update an existing calendar event"),
		mcp.WithString("user",
			mcp.Description("User identifier the credentials were enrolled under (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to update"),
		),
		mcp.WithString("summary",
			mcp.Description("New event title/summary"),
		),
		mcp.WithString("description",
			mcp.Description("New event description"),
		),
		mcp.WithString("location",
			mcp.Description("New event location"),
		),
		mcp.WithString("start",
			mcp.Description("New start time (RFC3339 format)"),
		),
		mcp.WithString("end",
			mcp.Description("New end time (RFC3339 format)"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone (e.g., 'America/New_York')"),
		),
		mcp.WithString("attendees",
			mcp.Description("New comma-separated list of attendee email addresses"),
		),
		mcp.WithBoolean("allDay",
			mcp.Description("Update to be an all-day event (ignores time portion of start/end)"),
		),
	)

	s.AddTool(updateEventTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleUpdateEvent(ctx, request, sc)
	})

	// Delete event tool
	deleteEventTool := mcp.NewTool("delete_event",
		mcp.WithDescription("Delete a calendar event"),
		mcp.WithString("user",
			mcp.Description("User identifier the credentials were enrolled under (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (use 'primary' for primary calendar)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to delete"),
		),
	)

	s.AddTool(deleteEventTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDeleteEvent(ctx, request, sc)
	})

	return nil
}

func handleFindEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.ObserveToolCall("find_events")

	args := request.GetArguments()
	user := getUserFromArgs(args)
	calendarID := getCalendarIDFromArgs(args)

	timeMin, errResult := parseRequiredTime(args, "timeMin")
	if errResult != nil {
		return errResult, nil
	}
	timeMax, errResult := parseRequiredTime(args, "timeMax")
	if errResult != nil {
		return errResult, nil
	}

	query := ""
	if queryVal, ok := args["query"].(string); ok {
		query = queryVal
	}

	client, err := getCalendarClient(ctx, user, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	events, err := client.ListEvents(ctx, calendarID, timeMin, timeMax, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
	}

	result := fmt.Sprintf("Found %d events:\n\n", len(events))
	for i, event := range events {
		result += fmt.Sprintf("%d. %s\n", i+1, event.Summary)
		result += fmt.Sprintf("   ID: %s\n", event.ID)
		result += fmt.Sprintf("   Start: %s\n", event.Start.Format(time.RFC3339))
		result += fmt.Sprintf("   End: %s\n", event.End.Format(time.RFC3339))
		if event.Location != "" {
			result += fmt.Sprintf("   Location: %s\n", event.Location)
		}
		if len(event.Attendees) > 0 {
			result += fmt.Sprintf("   Attendees: %d\n", len(event.Attendees))
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.ObserveToolCall("create_event")

	args := request.GetArguments()
	user := getUserFromArgs(args)
	calendarID := getCalendarIDFromArgs(args)

	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}

	start, errResult := parseRequiredTime(args, "start")
	if errResult != nil {
		return errResult, nil
	}
	end, errResult := parseRequiredTime(args, "end")
	if errResult != nil {
		return errResult, nil
	}

	input := calendar.EventInput{
		Summary: summary,
		Start:   start,
		End:     end,
	}
	if descVal, ok := args["description"].(string); ok {
		input.Description = descVal
	}
	if locVal, ok := args["location"].(string); ok {
		input.Location = locVal
	}
	if tzVal, ok := args["timeZone"].(string); ok {
		input.TimeZone = tzVal
	}
	if allDayVal, ok := args["allDay"].(bool); ok {
		input.AllDay = allDayVal
	}
	if attendeesVal, ok := args["attendees"].(string); ok && attendeesVal != "" {
		input.Attendees = splitEmails(attendeesVal)
	}
	if recurVal, ok := args["recurrence"].(string); ok && recurVal != "" {
		input.Recurrence = []string{recurVal}
	}

	client, err := getCalendarClient(ctx, user, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created, err := client.CreateEvent(ctx, calendarID, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create event: %v", err)), nil
	}

	return mcp.NewToolResultText(formatEventResult("Event created", created)), nil
}

func handleQuickAddEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.ObserveToolCall("quick_add_event")

	args := request.GetArguments()
	user := getUserFromArgs(args)
	calendarID := getCalendarIDFromArgs(args)

	text, ok := args["text"].(string)
	if !ok || text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	client, err := getCalendarClient(ctx, user, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created, err := client.QuickAddEvent(ctx, calendarID, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to quick add event: %v", err)), nil
	}

	return mcp.NewToolResultText(formatEventResult("Event created", created)), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.ObserveToolCall("update_event")

	args := request.GetArguments()
	user := getUserFromArgs(args)
	calendarID := getCalendarIDFromArgs(args)

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	var input calendar.EventInput
	if summaryVal, ok := args["summary"].(string); ok {
		input.Summary = summaryVal
	}
	if descVal, ok := args["description"].(string); ok {
		input.Description = descVal
	}
	if locVal, ok := args["location"].(string); ok {
		input.Location = locVal
	}
	if tzVal, ok := args["timeZone"].(string); ok {
		input.TimeZone = tzVal
	}
	if allDayVal, ok := args["allDay"].(bool); ok {
		input.AllDay = allDayVal
	}
	if attendeesVal, ok := args["attendees"].(string); ok && attendeesVal != "" {
		input.Attendees = splitEmails(attendeesVal)
	}

	if startVal, ok := args["start"].(string); ok && startVal != "" {
		start, err := time.Parse(time.RFC3339, startVal)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid start format: %v", err)), nil
		}
		input.Start = start
	}
	if endVal, ok := args["end"].(string); ok && endVal != "" {
		end, err := time.Parse(time.RFC3339, endVal)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid end format: %v", err)), nil
		}
		input.End = end
	}

	client, err := getCalendarClient(ctx, user, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated, err := client.UpdateEvent(ctx, calendarID, eventID, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update event: %v", err)), nil
	}

	return mcp.NewToolResultText(formatEventResult("Event updated", updated)), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.ObserveToolCall("delete_event")

	args := request.GetArguments()
	user := getUserFromArgs(args)
	calendarID := getCalendarIDFromArgs(args)

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	client, err := getCalendarClient(ctx, user, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := client.DeleteEvent(ctx, calendarID, eventID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Event %s deleted from calendar %s", eventID, calendarID)), nil
}

func getCalendarIDFromArgs(args map[string]interface{}) string {
	calendarID := "primary"
	if calIDVal, ok := args["calendarId"].(string); ok && calIDVal != "" {
		calendarID = calIDVal
	}
	return calendarID
}

func parseRequiredTime(args map[string]interface{}, key string) (time.Time, *mcp.CallToolResult) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return time.Time{}, mcp.NewToolResultError(fmt.Sprintf("%s is required", key))
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, mcp.NewToolResultError(fmt.Sprintf("Invalid %s format: %v", key, err))
	}
	return t, nil
}

func splitEmails(s string) []string {
	var emails []string
	for _, part := range strings.Split(s, ",") {
		if email := strings.TrimSpace(part); email != "" {
			emails = append(emails, email)
		}
	}
	return emails
}

func formatEventResult(header string, event *calendar.EventSummary) string {
	result := fmt.Sprintf("%s: %s\n", header, event.Summary)
	result += fmt.Sprintf("ID: %s\n", event.ID)
	if !event.Start.IsZero() {
		result += fmt.Sprintf("Start: %s\n", event.Start.Format(time.RFC3339))
	}
	if !event.End.IsZero() {
		result += fmt.Sprintf("End: %s\n", event.End.Format(time.RFC3339))
	}
	if event.Location != "" {
		result += fmt.Sprintf("Location: %s\n", event.Location)
	}
	if event.HTMLLink != "" {
		result += fmt.Sprintf("Link: %s\n", event.HTMLLink)
	}
	return result
}
