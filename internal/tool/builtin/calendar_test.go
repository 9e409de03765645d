package builtin

import (
	"context"
	"testing"
	"time"
)

func fixedCalendar() *CalendarService {
	svc := NewCalendarService()
	svc.now = func() time.Time {
		return time.Date(2025, 7, 15, 8, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestCalendarQueryDefaults(t *testing.T) {
	svc := fixedCalendar()

	res, err := svc.Query(context.Background(), "", "", defaultMaxResults)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.StartDate != "2025-07-15T08:00:00Z" {
		t.Errorf("start should default to now, got %q", res.StartDate)
	}
	if res.EndDate != "2025-07-22T08:00:00Z" {
		t.Errorf("end should default to now+7d, got %q", res.EndDate)
	}
	if res.Count != len(res.Events) {
		t.Errorf("count %d does not match events %d", res.Count, len(res.Events))
	}
	if res.Count == 0 {
		t.Error("mock calendar should return events")
	}
}

func TestCalendarQueryTruncation(t *testing.T) {
	svc := fixedCalendar()

	res, err := svc.Query(context.Background(), "", "", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Events) != 2 {
		t.Errorf("expected 2 events after truncation, got %d", len(res.Events))
	}
}

func TestCalendarQueryKeepsRequestedRange(t *testing.T) {
	svc := fixedCalendar()

	res, err := svc.Query(context.Background(), "2025-08-01T00:00:00Z", "2025-08-08T00:00:00Z", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.StartDate != "2025-08-01T00:00:00Z" || res.EndDate != "2025-08-08T00:00:00Z" {
		t.Errorf("requested range should be echoed, got %q..%q", res.StartDate, res.EndDate)
	}
}

func TestCalendarHandlerMaxResults(t *testing.T) {
	svc := fixedCalendar()
	def := svc.Definition()

	// maxResults arrives as float64 from JSON decoding.
	out, err := def.Handler(context.Background(), map[string]any{"maxResults": 3.0})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	res := out.(*CalendarResult)
	if len(res.Events) != 3 {
		t.Errorf("expected 3 events, got %d", len(res.Events))
	}
}
