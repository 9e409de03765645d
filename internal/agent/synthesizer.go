package agent

import (
	"context"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/pagepal/pagepal/internal/log"
	"github.com/pagepal/pagepal/internal/session"
)

// Synthesizer turns a user message, conversation history, and optional tool
// output into reply text. Implementations that cannot produce a reply return
// an error; the agent then falls back to canned responses.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (string, error)
}

// SynthesisRequest carries everything a single generation needs.
type SynthesisRequest struct {
	Message string
	History []session.Message
	// ToolContext is the formatted tool-result block, empty when no tools ran.
	ToolContext string
}

const assistantSystemPrompt = `You are PagePal, a helpful assistant living in the user's browser.
Be concise and friendly. Answer in the language the user writes in.
When tool results are provided, base your answer on them and do not invent data beyond what they contain.`

// Generation knobs. A turn with tool output gets a lower temperature and a
// larger token budget than free-form chat: the reply should track the data,
// and summaries of structured results run longer than small talk.
const (
	tooledTemperature  float32 = 0.7
	tooledMaxTokens    int32   = 500
	generalTemperature float32 = 0.8
	generalMaxTokens   int32   = 300
)

// GenkitSynthesizer generates replies through a Genkit model.
type GenkitSynthesizer struct {
	g      *genkit.Genkit
	logger log.Logger
}

// NewGenkitSynthesizer wraps an initialized Genkit instance. The default model
// is whatever the instance was initialized with.
func NewGenkitSynthesizer(g *genkit.Genkit, logger log.Logger) *GenkitSynthesizer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &GenkitSynthesizer{g: g, logger: logger}
}

// Synthesize builds the message window and generates one reply.
func (s *GenkitSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (string, error) {
	messages := historyMessages(req.History)

	userText := req.Message
	if req.ToolContext != "" {
		userText = req.ToolContext + "\n\nUser question: " + req.Message
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(userText)))

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(generalTemperature),
		MaxOutputTokens: generalMaxTokens,
	}
	if req.ToolContext != "" {
		cfg.Temperature = genai.Ptr(tooledTemperature)
		cfg.MaxOutputTokens = tooledMaxTokens
	}

	response, err := genkit.Generate(ctx, s.g,
		ai.WithSystem(assistantSystemPrompt),
		ai.WithMessages(messages...),
		ai.WithConfig(cfg),
	)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(response.Text())
	s.logger.Debug("synthesized reply", "chars", len(text), "tooled", req.ToolContext != "")
	return text, nil
}

// historyMessages converts stored history into model messages, dropping
// anything that is neither a user nor an assistant turn.
func historyMessages(history []session.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case session.RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(msg.Content)))
		case session.RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(msg.Content)))
		}
	}
	return out
}
