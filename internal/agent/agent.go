// Package agent implements the per-turn conversation pipeline: recognize the
// user's intents, select and run tools, then synthesize a reply from the
// results. Each stage is strictly sequential within a turn; only the selected
// tool calls themselves fan out concurrently, since they are independent.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pagepal/pagepal/internal/intent"
	"github.com/pagepal/pagepal/internal/log"
	"github.com/pagepal/pagepal/internal/session"
	"github.com/pagepal/pagepal/internal/tool"
	"github.com/pagepal/pagepal/internal/tool/builtin"
)

// toolExecutor is the slice of the tool layer the agent needs.
type toolExecutor interface {
	Execute(ctx context.Context, name string, params map[string]any) tool.CallResult
}

// Request is one inbound user turn with its session state.
type Request struct {
	Content  string
	History  []session.Message
	Context  map[string]any
	Metadata map[string]any
}

// Reply is the agent's answer to a single turn. Content is always populated;
// a failed model call degrades to a canned reply rather than an error.
type Reply struct {
	Content        string
	Metadata       map[string]any
	ToolsUsed      []string
	UpdatedContext map[string]any
}

// ToolOutcome is the captured result of one planned tool call, success or not.
// Outcomes keep the selection order regardless of completion order.
type ToolOutcome struct {
	ToolName   string  `json:"toolName"`
	Result     any     `json:"result"`
	Error      string  `json:"error,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Agent runs the turn pipeline. A nil Synthesizer is valid and routes every
// turn to the fallback provider (the no-API-key development mode).
type Agent struct {
	recognizer  *intent.Recognizer
	selector    *intent.Selector
	executor    toolExecutor
	synthesizer Synthesizer
	fallback    FallbackProvider
	maxHistory  int
	logger      log.Logger
}

// New creates an Agent. maxHistory caps the history window handed to
// synthesis; zero or negative means unlimited.
func New(executor toolExecutor, synthesizer Synthesizer, fallback FallbackProvider, maxHistory int, logger log.Logger) *Agent {
	if logger == nil {
		logger = log.NewNop()
	}
	if fallback == nil {
		fallback = NewCannedFallback()
	}
	return &Agent{
		recognizer:  intent.NewRecognizer(),
		selector:    intent.NewSelector(),
		executor:    executor,
		synthesizer: synthesizer,
		fallback:    fallback,
		maxHistory:  maxHistory,
		logger:      logger,
	}
}

// ProcessMessage runs one turn: Recognize -> Select -> Execute -> Synthesize.
// The execute stage is skipped entirely when no tool is selected. Errors after
// the execute stage never propagate; only an unexpected failure before
// synthesis does, and the transport layer is expected to catch it.
func (a *Agent) ProcessMessage(ctx context.Context, req Request) (*Reply, error) {
	if a.executor == nil {
		return nil, fmt.Errorf("agent has no tool executor")
	}

	intents := a.recognizer.Recognize(req.Content, req.History)
	selections := a.selector.Select(intents, req.Context)

	var outcomes []ToolOutcome
	if len(selections) > 0 {
		outcomes = a.executeToolPlan(ctx, selections)
	}

	content := a.synthesize(ctx, req, outcomes)

	toolsUsed := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		toolsUsed = append(toolsUsed, o.ToolName)
	}

	reply := &Reply{
		Content:   content,
		ToolsUsed: toolsUsed,
		Metadata: map[string]any{
			"intent":     intents[0].Intent,
			"confidence": intents[0].Confidence,
			"timestamp":  time.Now().Format(time.RFC3339),
		},
		UpdatedContext: map[string]any{
			"lastIntent": intents[0].Intent,
		},
	}
	if len(toolsUsed) > 0 {
		reply.UpdatedContext["lastTools"] = toolsUsed
	}

	a.logger.Debug("processed message",
		"intent", intents[0].Intent,
		"tools", len(toolsUsed),
	)
	return reply, nil
}

// executeToolPlan runs the selected tools concurrently and collects one
// outcome per selection, in selection order. A tool failure becomes an error
// string on its own outcome and never aborts the others.
func (a *Agent) executeToolPlan(ctx context.Context, selections []intent.Selection) []ToolOutcome {
	outcomes := make([]ToolOutcome, len(selections))

	var wg sync.WaitGroup
	for i, sel := range selections {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res := a.executor.Execute(ctx, sel.ToolName, sel.Params)
			outcome := ToolOutcome{
				ToolName:   sel.ToolName,
				Confidence: sel.Confidence,
			}
			if res.Success {
				outcome.Result = res.Result
			} else {
				outcome.Error = res.Error
				a.logger.Warn("tool execution failed", "tool", sel.ToolName, "error", res.Error)
			}
			outcomes[i] = outcome
		}()
	}
	wg.Wait()

	return outcomes
}

// synthesize produces the reply text, degrading to the fallback provider when
// no model is configured or the model call fails.
func (a *Agent) synthesize(ctx context.Context, req Request, outcomes []ToolOutcome) string {
	toolContext := buildToolContext(outcomes)

	if a.synthesizer == nil {
		return a.fallback.Reply(len(outcomes) > 0)
	}

	text, err := a.synthesizer.Synthesize(ctx, SynthesisRequest{
		Message:     req.Content,
		History:     a.historyWindow(req.History),
		ToolContext: toolContext,
	})
	if err != nil {
		a.logger.Warn("synthesis failed, using fallback reply", "error", err)
		return a.fallback.Reply(len(outcomes) > 0)
	}
	return text
}

// historyWindow returns the most recent maxHistory messages.
func (a *Agent) historyWindow(history []session.Message) []session.Message {
	if a.maxHistory <= 0 || len(history) <= a.maxHistory {
		return history
	}
	return history[len(history)-a.maxHistory:]
}

// buildToolContext concatenates one block per outcome for the model prompt.
// Each block is the tool's error text, a tool-specific rendering, or a JSON
// dump when no renderer covers the tool.
func buildToolContext(outcomes []ToolOutcome) string {
	if len(outcomes) == 0 {
		return ""
	}

	var b strings.Builder
	for _, o := range outcomes {
		fmt.Fprintf(&b, "**%s TOOL RESULT:**\n", strings.ToUpper(o.ToolName))
		if o.Error != "" {
			b.WriteString("Error: " + o.Error)
		} else {
			b.WriteString(formatToolResult(o.ToolName, o.Result))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatToolResult(name string, result any) string {
	switch name {
	case "weather":
		if r, ok := result.(*builtin.WeatherReport); ok {
			return formatWeather(r)
		}
	case "calendar":
		if r, ok := result.(*builtin.CalendarResult); ok {
			return formatCalendar(r)
		}
	case "dbquery":
		if r, ok := result.(*builtin.DBQueryResult); ok {
			return formatDBQuery(r)
		}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(raw)
}

func formatWeather(r *builtin.WeatherReport) string {
	unit := "°C"
	if r.Units == builtin.UnitsFahrenheit {
		unit = "°F"
	}
	place := r.Location
	if r.Country != "" {
		place += ", " + r.Country
	}
	return fmt.Sprintf("%s: %.1f%s, %s, wind %.1f km/h %s",
		place, r.Temperature, unit, r.Description, r.WindSpeed, r.WindDirection)
}

func formatCalendar(r *builtin.CalendarResult) string {
	if r.Count == 0 {
		return fmt.Sprintf("No events between %s and %s.", r.StartDate, r.EndDate)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d event(s) between %s and %s:\n", r.Count, r.StartDate, r.EndDate)
	for _, e := range r.Events {
		fmt.Fprintf(&b, "- %s (%s to %s)", e.Title, e.Start, e.End)
		if e.Location != "" {
			fmt.Fprintf(&b, " at %s", e.Location)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDBQuery(r *builtin.DBQueryResult) string {
	if r.Count == 0 {
		return fmt.Sprintf("No products matched %q.", r.Query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d product(s) matched %q:\n", r.Count, r.Query)
	for _, row := range r.Rows {
		stock := "in stock"
		if !row.InStock {
			stock = "out of stock"
		}
		fmt.Fprintf(&b, "- %s ($%.2f, %s, %s)\n", row.Name, row.Price, row.Category, stock)
	}
	return strings.TrimRight(b.String(), "\n")
}
