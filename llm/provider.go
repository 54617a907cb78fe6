package llm

import "context"

// Request is the provider-agnostic generation request (spec §4.2):
// generate(prompt, model?, temperature, json_mode, timeout).
type Request struct {
	// Messages is the conversation history; a single-message Messages slice
	// with role user is equivalent to the spec's bare "prompt" argument.
	Messages []Message
	// Model selects the provider's model identifier. Empty means the
	// provider/gateway default.
	Model string
	Temperature float64
	// JSONMode requests that the provider constrain output to valid JSON.
	// The gateway double-checks this by attempting to parse the response and
	// fails with errs.KindProviderError if parsing fails even when the
	// provider claims success.
	JSONMode bool
}

// Response is a successful generation result.
type Response struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage reports provider-billed token counts for cost estimation.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Provider is implemented by each concrete LLM backend (Anthropic, OpenAI,
// Bedrock, or a deterministic mock). Providers do not implement rate
// limiting, retries, or JSON-mode verification themselves; the Gateway
// layers those on top of every Provider uniformly.
type Provider interface {
	// Name identifies the provider for logging, tracing, and pricing lookup
	// (e.g. "anthropic", "openai", "bedrock").
	Name() string
	// Generate performs one completion call. Implementations must return an
	// *errs.Error with an appropriate Kind rather than a bare error so the
	// gateway's retry policy can make a correct decision.
	Generate(ctx context.Context, req Request) (Response, error)
}
