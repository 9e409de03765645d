// Package intent provides keyword-based intent recognition and tool selection
// for inbound user messages. Recognition is deliberately simple: fixed keyword
// families with fixed confidence constants, plus family-specific entity
// heuristics. Natural-language understanding beyond this is out of scope.
package intent

import (
	"regexp"
	"strings"
	"time"

	"github.com/pagepal/pagepal/internal/session"
)

// Intent labels emitted by the recognizer.
const (
	IntentWeather  = "weather_query"
	IntentCalendar = "calendar_query"
	IntentDatabase = "database_query"
	IntentGeneral  = "general_conversation"
)

// Per-family confidence constants.
const (
	confidenceWeather  = 0.8
	confidenceCalendar = 0.7
	confidenceDatabase = 0.7
	confidenceGeneral  = 0.6
)

// Recognition is one classified purpose of a user message.
// Ephemeral: produced and consumed within a single turn.
type Recognition struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities"`
}

// locationPattern captures the place name following an "in" preposition,
// stopping at clause boundaries so trailing punctuation never leaks into the
// entity ("weather in Tokyo?" yields "Tokyo").
var locationPattern = regexp.MustCompile(`(?i)\bin\s+([^.,!?;]+)`)

// Recognizer maps free text to zero or more intents.
type Recognizer struct {
	now func() time.Time
}

// NewRecognizer creates a Recognizer.
func NewRecognizer() *Recognizer {
	return &Recognizer{now: time.Now}
}

// Recognize classifies text into intents. Families are not mutually
// exclusive: a message mentioning both weather and a meeting yields two
// recognitions. When no family matches, a single general_conversation intent
// is emitted. History is accepted for future context-sensitive heuristics but
// is not consulted by the current keyword families.
func (r *Recognizer) Recognize(text string, history []session.Message) []Recognition {
	lower := strings.ToLower(text)
	var intents []Recognition

	if containsAny(lower, "weather", "temperature", "forecast") {
		intents = append(intents, Recognition{
			Intent:     IntentWeather,
			Confidence: confidenceWeather,
			Entities:   r.weatherEntities(text),
		})
	}

	if containsAny(lower, "calendar", "schedule", "meeting") {
		intents = append(intents, Recognition{
			Intent:     IntentCalendar,
			Confidence: confidenceCalendar,
			Entities:   r.calendarEntities(lower),
		})
	}

	if containsAny(lower, "database", "look up", "product") {
		intents = append(intents, Recognition{
			Intent:     IntentDatabase,
			Confidence: confidenceDatabase,
			Entities:   map[string]string{"query": strings.TrimSpace(text)},
		})
	}

	if len(intents) == 0 {
		intents = append(intents, Recognition{
			Intent:     IntentGeneral,
			Confidence: confidenceGeneral,
			Entities:   map[string]string{},
		})
	}

	return intents
}

// weatherEntities extracts a location from phrases like "weather in Tokyo".
func (r *Recognizer) weatherEntities(text string) map[string]string {
	entities := map[string]string{}
	if m := locationPattern.FindStringSubmatch(text); m != nil {
		loc := strings.TrimSpace(m[1])
		loc = strings.TrimRight(loc, " ?!.,:")
		if loc != "" {
			entities["location"] = loc
		}
	}
	return entities
}

// calendarEntities extracts a start date from literal day references.
func (r *Recognizer) calendarEntities(lower string) map[string]string {
	entities := map[string]string{}
	now := r.now()
	switch {
	case strings.Contains(lower, "tomorrow"):
		entities["startDate"] = startOfDay(now.AddDate(0, 0, 1)).Format(time.RFC3339)
	case strings.Contains(lower, "today"):
		entities["startDate"] = startOfDay(now).Format(time.RFC3339)
	}
	return entities
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
