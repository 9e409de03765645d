package builtin

import (
	"context"
	"time"

	"github.com/pagepal/pagepal/internal/tool"
)

// defaultMaxResults caps the event list when the caller does not ask for a
// specific count.
const defaultMaxResults = 10

// CalendarEvent is a single event in the mock calendar.
type CalendarEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location,omitempty"`
}

// CalendarResult is the structured result of a calendar query, annotated with
// the requested date range.
type CalendarResult struct {
	Events    []CalendarEvent `json:"events"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Count     int             `json:"count"`
}

// CalendarService returns a fixed mock event list. It stands in for a real
// calendar integration; the tool contract (parameters, result shape) is what
// a real provider would implement.
type CalendarService struct {
	now func() time.Time
}

// NewCalendarService creates the mock calendar service.
func NewCalendarService() *CalendarService {
	return &CalendarService{now: time.Now}
}

// Definition returns the registrable tool definition for calendar queries.
func (s *CalendarService) Definition() tool.Definition {
	return tool.Definition{
		Name:        "calendar",
		Description: "List calendar events within a date range",
		Parameters: map[string]tool.Parameter{
			"startDate": {
				Type:        tool.TypeString,
				Description: "Range start (ISO 8601)",
				Format:      tool.FormatDateTime,
			},
			"endDate": {
				Type:        tool.TypeString,
				Description: "Range end (ISO 8601)",
				Format:      tool.FormatDateTime,
			},
			"maxResults": {
				Type:        tool.TypeNumber,
				Description: "Maximum number of events to return",
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			start, _ := params["startDate"].(string)
			end, _ := params["endDate"].(string)
			max := defaultMaxResults
			if n, ok := params["maxResults"].(float64); ok && n > 0 {
				max = int(n)
			}
			return s.Query(ctx, start, end, max)
		},
	}
}

// Query returns the mock events truncated to maxResults.
func (s *CalendarService) Query(ctx context.Context, startDate, endDate string, maxResults int) (*CalendarResult, error) {
	now := s.now()
	if startDate == "" {
		startDate = now.Format(time.RFC3339)
	}
	if endDate == "" {
		endDate = now.AddDate(0, 0, 7).Format(time.RFC3339)
	}

	events := mockEvents(now)
	if maxResults > 0 && len(events) > maxResults {
		events = events[:maxResults]
	}

	return &CalendarResult{
		Events:    events,
		StartDate: startDate,
		EndDate:   endDate,
		Count:     len(events),
	}, nil
}

func mockEvents(now time.Time) []CalendarEvent {
	day := func(d int, hour int) string {
		return time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location()).
			AddDate(0, 0, d).Format(time.RFC3339)
	}
	return []CalendarEvent{
		{ID: "evt-1", Title: "Team standup", Start: day(0, 9), End: day(0, 10)},
		{ID: "evt-2", Title: "Product review", Start: day(1, 14), End: day(1, 15), Location: "Room 4B"},
		{ID: "evt-3", Title: "1:1 with manager", Start: day(2, 11), End: day(2, 12)},
		{ID: "evt-4", Title: "Sprint planning", Start: day(3, 10), End: day(3, 12)},
		{ID: "evt-5", Title: "Design sync", Start: day(4, 15), End: day(4, 16), Location: "Zoom"},
	}
}
