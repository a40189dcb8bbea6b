package calendar

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/calmcp/calmcp/internal/credentials"
)

func TestToEventSummary(t *testing.T) {
	event := &calendarapi.Event{
		Id:          "evt-1",
		Summary:     "Team sync",
		Description: "Weekly",
		Location:    "Room 4",
		Status:      "confirmed",
		HtmlLink:    "https://calendar.example.com/evt-1",
		Start:       &calendarapi.EventDateTime{DateTime: "2026-09-01T10:00:00Z"},
		End:         &calendarapi.EventDateTime{DateTime: "2026-09-01T10:30:00Z"},
		Creator:     &calendarapi.EventCreator{Email: "alice@example.com"},
		Organizer:   &calendarapi.EventOrganizer{Email: "bob@example.com"},
		Attendees: []*calendarapi.EventAttendee{
			{Email: "carol@example.com", ResponseStatus: "accepted", Organizer: false},
		},
	}

	summary := toEventSummary(event)

	assert.Equal(t, "evt-1", summary.ID)
	assert.Equal(t, "Team sync", summary.Summary)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), summary.Start)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC), summary.End)
	assert.Equal(t, "alice@example.com", summary.Creator)
	assert.Equal(t, "bob@example.com", summary.Organizer)
	assert.Len(t, summary.Attendees, 1)
	assert.Equal(t, "accepted", summary.Attendees[0].ResponseStatus)
}

func TestToEventSummary_AllDay(t *testing.T) {
	event := &calendarapi.Event{
		Id:    "evt-2",
		Start: &calendarapi.EventDateTime{Date: "2026-09-01"},
		End:   &calendarapi.EventDateTime{Date: "2026-09-02"},
	}

	summary := toEventSummary(event)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), summary.Start)
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), summary.End)
}

func TestEventDateTimes(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("timed event defaults to UTC", func(t *testing.T) {
		s, e := eventDateTimes(EventInput{Start: start, End: end})
		assert.Equal(t, "2026-09-01T10:00:00Z", s.DateTime)
		assert.Equal(t, "UTC", s.TimeZone)
		assert.Equal(t, "2026-09-01T11:00:00Z", e.DateTime)
	})

	t.Run("all day carries dates only", func(t *testing.T) {
		s, e := eventDateTimes(EventInput{Start: start, End: end, AllDay: true})
		assert.Equal(t, "2026-09-01", s.Date)
		assert.Empty(t, s.DateTime)
		assert.Equal(t, "2026-09-01", e.Date)
	})
}

func TestWrapAPIError(t *testing.T) {
	unauthorized := &googleapi.Error{Code: http.StatusUnauthorized}
	assert.ErrorIs(t, wrapAPIError("list events", unauthorized), credentials.ErrReauthorizationRequired)

	backendDown := &googleapi.Error{Code: http.StatusServiceUnavailable}
	assert.ErrorIs(t, wrapAPIError("list events", backendDown), credentials.ErrUpstreamUnavailable)

	notFound := &googleapi.Error{Code: http.StatusNotFound}
	err := wrapAPIError("get event", notFound)
	assert.NotErrorIs(t, err, credentials.ErrReauthorizationRequired)
	assert.ErrorIs(t, err, notFound)

	plain := errors.New("network down")
	assert.ErrorContains(t, wrapAPIError("list events", plain), "failed to list events")
}
