package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepal/pagepal/internal/session"
	"github.com/pagepal/pagepal/internal/tool"
	"github.com/pagepal/pagepal/internal/tool/builtin"
)

// stubExecutor returns scripted results per tool name and records calls.
type stubExecutor struct {
	mu      sync.Mutex
	results map[string]tool.CallResult
	calls   []string
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{results: make(map[string]tool.CallResult)}
}

func (s *stubExecutor) Execute(ctx context.Context, name string, params map[string]any) tool.CallResult {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()

	if res, ok := s.results[name]; ok {
		return res
	}
	return tool.CallResult{Success: false, Error: "Tool not found: " + name}
}

// stubSynthesizer captures the request it receives and returns fixed text.
type stubSynthesizer struct {
	reply   string
	err     error
	lastReq SynthesisRequest
	called  bool
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (string, error) {
	s.called = true
	s.lastReq = req
	return s.reply, s.err
}

// fixedFallback always returns a deterministic string.
type fixedFallback struct {
	tooled  string
	general string
}

func (f *fixedFallback) Reply(toolsRan bool) string {
	if toolsRan {
		return f.tooled
	}
	return f.general
}

func newTestAgent(exec toolExecutor, synth Synthesizer) *Agent {
	return New(exec, synth, &fixedFallback{tooled: "tooled-fallback", general: "general-fallback"}, 40, nil)
}

func TestGeneralConversationSkipsTools(t *testing.T) {
	exec := newStubExecutor()
	synth := &stubSynthesizer{reply: "Hi! How can I help?"}
	a := newTestAgent(exec, synth)

	reply, err := a.ProcessMessage(context.Background(), Request{Content: "Hello, how are you?"})
	require.NoError(t, err)

	assert.Empty(t, exec.calls, "no tool should run for small talk")
	assert.Equal(t, "Hi! How can I help?", reply.Content)
	assert.Empty(t, reply.ToolsUsed)
	assert.Equal(t, "general_conversation", reply.Metadata["intent"])
	assert.Equal(t, 0.6, reply.Metadata["confidence"])
	assert.Empty(t, synth.lastReq.ToolContext, "no tool context without tool runs")
}

func TestWeatherQueryRunsWeatherTool(t *testing.T) {
	exec := newStubExecutor()
	exec.results["weather"] = tool.CallResult{
		Success: true,
		Result: &builtin.WeatherReport{
			Location:    "Tokyo",
			Country:     "Japan",
			Temperature: 28.5,
			Units:       builtin.UnitsCelsius,
			Description: "Clear sky",
			WindSpeed:   12.0,
		},
	}
	synth := &stubSynthesizer{reply: "It's 28.5°C and clear in Tokyo."}
	a := newTestAgent(exec, synth)

	reply, err := a.ProcessMessage(context.Background(), Request{Content: "What's the weather in Tokyo?"})
	require.NoError(t, err)

	assert.Equal(t, []string{"weather"}, exec.calls)
	assert.Equal(t, []string{"weather"}, reply.ToolsUsed)
	assert.Equal(t, "weather_query", reply.Metadata["intent"])
	assert.Contains(t, synth.lastReq.ToolContext, "**WEATHER TOOL RESULT:**")
	assert.Contains(t, synth.lastReq.ToolContext, "Tokyo, Japan")
	assert.Equal(t, []string{"weather"}, reply.UpdatedContext["lastTools"])
}

func TestToolFailureStillSynthesizes(t *testing.T) {
	exec := newStubExecutor()
	exec.results["weather"] = tool.CallResult{
		Success: false,
		Error:   `Location "Nowhere" not found`,
	}
	synth := &stubSynthesizer{reply: "I couldn't find that location."}
	a := newTestAgent(exec, synth)

	reply, err := a.ProcessMessage(context.Background(), Request{Content: "weather in Nowhere"})
	require.NoError(t, err, "a tool failure must not fail the turn")

	assert.Equal(t, "I couldn't find that location.", reply.Content)
	assert.Contains(t, synth.lastReq.ToolContext, `Location "Nowhere" not found`,
		"the error text must reach the model verbatim")
	assert.Equal(t, []string{"weather"}, reply.ToolsUsed)
}

func TestMultiIntentRunsAllToolsInConfidenceOrder(t *testing.T) {
	exec := newStubExecutor()
	exec.results["weather"] = tool.CallResult{Success: true, Result: &builtin.WeatherReport{Location: "Paris"}}
	exec.results["calendar"] = tool.CallResult{Success: true, Result: &builtin.CalendarResult{
		StartDate: "2025-07-15T00:00:00Z", EndDate: "2025-07-22T00:00:00Z",
	}}
	synth := &stubSynthesizer{reply: "Here's your day."}
	a := newTestAgent(exec, synth)

	reply, err := a.ProcessMessage(context.Background(), Request{
		Content: "What's the weather, and do I have any meeting today?",
	})
	require.NoError(t, err)

	// Outcomes keep selection order: weather (0.8) before calendar (0.7).
	assert.Equal(t, []string{"weather", "calendar"}, reply.ToolsUsed)

	weatherIdx := strings.Index(synth.lastReq.ToolContext, "**WEATHER TOOL RESULT:**")
	calendarIdx := strings.Index(synth.lastReq.ToolContext, "**CALENDAR TOOL RESULT:**")
	require.GreaterOrEqual(t, weatherIdx, 0)
	require.GreaterOrEqual(t, calendarIdx, 0)
	assert.Less(t, weatherIdx, calendarIdx)
}

func TestSynthesisFailureFallsBackTooled(t *testing.T) {
	exec := newStubExecutor()
	exec.results["weather"] = tool.CallResult{Success: true, Result: &builtin.WeatherReport{Location: "Oslo"}}
	synth := &stubSynthesizer{err: errors.New("model unavailable")}
	a := newTestAgent(exec, synth)

	reply, err := a.ProcessMessage(context.Background(), Request{Content: "weather in Oslo"})
	require.NoError(t, err, "synthesis failure must not fail the turn")
	assert.Equal(t, "tooled-fallback", reply.Content)
}

func TestSynthesisFailureFallsBackGeneral(t *testing.T) {
	synth := &stubSynthesizer{err: errors.New("model unavailable")}
	a := newTestAgent(newStubExecutor(), synth)

	reply, err := a.ProcessMessage(context.Background(), Request{Content: "hi there"})
	require.NoError(t, err)
	assert.Equal(t, "general-fallback", reply.Content)
}

func TestNilSynthesizerAlwaysFallsBack(t *testing.T) {
	a := newTestAgent(newStubExecutor(), nil)

	reply, err := a.ProcessMessage(context.Background(), Request{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "general-fallback", reply.Content)
}

func TestHistoryWindowCapped(t *testing.T) {
	synth := &stubSynthesizer{reply: "ok"}
	a := New(newStubExecutor(), synth, &fixedFallback{}, 3, nil)

	history := []session.Message{
		session.NewMessage(session.RoleUser, "one"),
		session.NewMessage(session.RoleAssistant, "two"),
		session.NewMessage(session.RoleUser, "three"),
		session.NewMessage(session.RoleAssistant, "four"),
		session.NewMessage(session.RoleUser, "five"),
	}

	_, err := a.ProcessMessage(context.Background(), Request{Content: "hi", History: history})
	require.NoError(t, err)

	require.Len(t, synth.lastReq.History, 3)
	assert.Equal(t, "three", synth.lastReq.History[0].Content)
	assert.Equal(t, "five", synth.lastReq.History[2].Content)
}

func TestCannedFallbackReplies(t *testing.T) {
	f := &cannedFallback{pick: func(n int) int { return 2 }}

	assert.Equal(t, tooledFallbackReply, f.Reply(true))
	assert.Equal(t, generalFallbackReplies[2], f.Reply(false))
}

func TestBuildToolContextFormats(t *testing.T) {
	t.Run("weather", func(t *testing.T) {
		got := buildToolContext([]ToolOutcome{{
			ToolName: "weather",
			Result: &builtin.WeatherReport{
				Location: "Tokyo", Country: "Japan",
				Temperature: 28.5, Units: builtin.UnitsCelsius,
				Description: "Clear sky", WindSpeed: 12, WindDirection: "NNE",
			},
		}})
		assert.Contains(t, got, "Tokyo, Japan: 28.5°C, Clear sky")
		assert.Contains(t, got, "wind 12.0 km/h NNE")
	})

	t.Run("calendar empty range", func(t *testing.T) {
		got := buildToolContext([]ToolOutcome{{
			ToolName: "calendar",
			Result:   &builtin.CalendarResult{StartDate: "a", EndDate: "b"},
		}})
		assert.Contains(t, got, "No events between a and b.")
	})

	t.Run("dbquery rows", func(t *testing.T) {
		got := buildToolContext([]ToolOutcome{{
			ToolName: "dbquery",
			Result: &builtin.DBQueryResult{
				Query: "keyboard",
				Rows: []builtin.ProductRow{
					{Name: "Wireless Keyboard", Category: "accessories", Price: 49.99, InStock: true},
				},
				Count: 1,
			},
		}})
		assert.Contains(t, got, `1 product(s) matched "keyboard"`)
		assert.Contains(t, got, "Wireless Keyboard ($49.99, accessories, in stock)")
	})

	t.Run("unknown tool dumps JSON", func(t *testing.T) {
		got := buildToolContext([]ToolOutcome{{
			ToolName: "custom",
			Result:   map[string]any{"answer": 42},
		}})
		assert.Contains(t, got, "**CUSTOM TOOL RESULT:**")
		assert.Contains(t, got, `{"answer":42}`)
	})

	t.Run("error block", func(t *testing.T) {
		got := buildToolContext([]ToolOutcome{{
			ToolName: "weather",
			Error:    "upstream timeout",
		}})
		assert.Contains(t, got, "Error: upstream timeout")
	})

	t.Run("no outcomes", func(t *testing.T) {
		assert.Empty(t, buildToolContext(nil))
	})
}
