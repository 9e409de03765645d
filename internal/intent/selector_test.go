package intent

import (
	"testing"
	"time"
)

func fixedSelector() *Selector {
	s := NewSelector()
	s.now = func() time.Time {
		return time.Date(2025, 7, 15, 10, 30, 0, 0, time.UTC)
	}
	return s
}

func TestSelectWeather(t *testing.T) {
	s := fixedSelector()

	sels := s.Select([]Recognition{{
		Intent:     IntentWeather,
		Confidence: 0.8,
		Entities:   map[string]string{"location": "Tokyo"},
	}}, nil)

	if len(sels) != 1 {
		t.Fatalf("expected 1 selection, got %d", len(sels))
	}
	if sels[0].ToolName != "weather" {
		t.Errorf("expected weather tool, got %q", sels[0].ToolName)
	}
	if sels[0].Confidence != 0.8 {
		t.Errorf("confidence should be copied from the intent, got %v", sels[0].Confidence)
	}
	if sels[0].Params["location"] != "Tokyo" {
		t.Errorf("unexpected location param %v", sels[0].Params["location"])
	}
}

func TestSelectWeatherDefaultLocation(t *testing.T) {
	s := fixedSelector()

	sels := s.Select([]Recognition{{
		Intent:     IntentWeather,
		Confidence: 0.8,
		Entities:   map[string]string{},
	}}, nil)

	if sels[0].Params["location"] != DefaultLocation {
		t.Errorf("expected default location, got %v", sels[0].Params["location"])
	}
}

func TestSelectCalendarDefaults(t *testing.T) {
	s := fixedSelector()

	sels := s.Select([]Recognition{{
		Intent:     IntentCalendar,
		Confidence: 0.7,
		Entities:   map[string]string{},
	}}, nil)

	if sels[0].ToolName != "calendar" {
		t.Fatalf("expected calendar tool, got %q", sels[0].ToolName)
	}
	if sels[0].Params["startDate"] != "2025-07-15T10:30:00Z" {
		t.Errorf("start should default to now, got %v", sels[0].Params["startDate"])
	}
	if sels[0].Params["endDate"] != "2025-07-22T10:30:00Z" {
		t.Errorf("end should default to now+7d, got %v", sels[0].Params["endDate"])
	}
}

func TestSelectCalendarKeepsEntityDate(t *testing.T) {
	s := fixedSelector()

	sels := s.Select([]Recognition{{
		Intent:     IntentCalendar,
		Confidence: 0.7,
		Entities:   map[string]string{"startDate": "2025-07-16T00:00:00Z"},
	}}, nil)

	if sels[0].Params["startDate"] != "2025-07-16T00:00:00Z" {
		t.Errorf("entity start date should win, got %v", sels[0].Params["startDate"])
	}
}

func TestSelectUnrecognizedIntents(t *testing.T) {
	s := fixedSelector()

	sels := s.Select([]Recognition{
		{Intent: IntentGeneral, Confidence: 0.6},
		{Intent: "mystery_intent", Confidence: 0.9},
	}, nil)

	if len(sels) != 0 {
		t.Errorf("unmapped intents should select no tools, got %+v", sels)
	}
}

func TestSelectSortsByConfidenceDescending(t *testing.T) {
	s := fixedSelector()

	sels := s.Select([]Recognition{
		{Intent: IntentCalendar, Confidence: 0.7, Entities: map[string]string{}},
		{Intent: IntentWeather, Confidence: 0.8, Entities: map[string]string{}},
	}, nil)

	if len(sels) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(sels))
	}
	if sels[0].ToolName != "weather" || sels[1].ToolName != "calendar" {
		t.Errorf("expected weather first (0.8 > 0.7), got %q then %q",
			sels[0].ToolName, sels[1].ToolName)
	}
}

func TestSelectStableTieBreak(t *testing.T) {
	s := fixedSelector()

	sels := s.Select([]Recognition{
		{Intent: IntentCalendar, Confidence: 0.7, Entities: map[string]string{}},
		{Intent: IntentDatabase, Confidence: 0.7, Entities: map[string]string{"query": "x"}},
	}, nil)

	if sels[0].ToolName != "calendar" || sels[1].ToolName != "dbquery" {
		t.Errorf("ties should keep original order, got %q then %q",
			sels[0].ToolName, sels[1].ToolName)
	}
}
