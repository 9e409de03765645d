package intent

import (
	"sort"
	"time"
)

// DefaultLocation is used when a weather intent carries no location entity.
const DefaultLocation = "current location"

// Selection is a candidate tool call derived from a recognized intent.
// Ephemeral, like Recognition.
type Selection struct {
	ToolName   string         `json:"toolName"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params"`
}

// Selector maps recognized intents to candidate tool calls.
type Selector struct {
	now func() time.Time
}

// NewSelector creates a Selector.
func NewSelector() *Selector {
	return &Selector{now: time.Now}
}

// Select builds tool selections from intents. Intents without a tool mapping
// (general_conversation and anything unrecognized) select nothing. The result
// is sorted by confidence descending; ties keep their original order.
func (s *Selector) Select(intents []Recognition, sessionCtx map[string]any) []Selection {
	var selections []Selection

	for _, in := range intents {
		switch in.Intent {
		case IntentWeather:
			location := in.Entities["location"]
			if location == "" {
				location = DefaultLocation
			}
			selections = append(selections, Selection{
				ToolName:   "weather",
				Confidence: in.Confidence,
				Params:     map[string]any{"location": location},
			})

		case IntentCalendar:
			now := s.now()
			start := in.Entities["startDate"]
			if start == "" {
				start = now.Format(time.RFC3339)
			}
			end := in.Entities["endDate"]
			if end == "" {
				end = now.AddDate(0, 0, 7).Format(time.RFC3339)
			}
			selections = append(selections, Selection{
				ToolName:   "calendar",
				Confidence: in.Confidence,
				Params:     map[string]any{"startDate": start, "endDate": end},
			})

		case IntentDatabase:
			query := in.Entities["query"]
			selections = append(selections, Selection{
				ToolName:   "dbquery",
				Confidence: in.Confidence,
				Params:     map[string]any{"query": query},
			})
		}
	}

	sort.SliceStable(selections, func(i, j int) bool {
		return selections[i].Confidence > selections[j].Confidence
	})
	return selections
}
