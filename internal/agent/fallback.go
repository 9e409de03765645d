package agent

import "math/rand/v2"

// FallbackProvider produces a reply when no language model is configured or
// generation fails. Injected so tests can pin the output.
type FallbackProvider interface {
	// Reply returns fallback text. toolsRan reports whether any tool was
	// executed for this turn; with tool output in hand the fallback
	// acknowledges the data it cannot narrate, without it the fallback is
	// plain small talk.
	Reply(toolsRan bool) string
}

// cannedFallback is the default FallbackProvider: a fixed apology when tool
// results exist, otherwise one of a small rotation of greetings.
type cannedFallback struct {
	pick func(n int) int
}

// NewCannedFallback returns the default fallback provider.
func NewCannedFallback() FallbackProvider {
	return &cannedFallback{pick: rand.IntN}
}

const tooledFallbackReply = "I gathered the information you asked for, " +
	"but I'm having trouble summarizing it right now. " +
	"The raw results are attached to this message."

var generalFallbackReplies = []string{
	"Hello! I'm your browsing assistant. I can check the weather, look at your calendar, or search for products. What can I do for you?",
	"Hi there! Ask me about the weather, your schedule, or products you're looking for.",
	"I'm here to help. Try asking about the weather in a city, your upcoming meetings, or a product search.",
	"Thanks for your message! I can help with weather forecasts, calendar events, and product lookups.",
}

func (c *cannedFallback) Reply(toolsRan bool) string {
	if toolsRan {
		return tooledFallbackReply
	}
	return generalFallbackReplies[c.pick(len(generalFallbackReplies))]
}
