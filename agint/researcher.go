package agint

import (
	"context"
	"encoding/json"

	"github.com/mindforge-ai/mindforge/beliefs"
	"github.com/mindforge-ai/mindforge/llm"
)

// GatewayResearcher is the default Researcher: it asks the gateway to
// answer the query from its own knowledge (spec §4.7 describes RESEARCH as
// filling in unresolved environment.* beliefs, not a live web-search tool,
// which this module's tool registry does not provide) and writes the
// answer back as a belief so the next Perceive sees it resolved.
type GatewayResearcher struct {
	Gateway *llm.Gateway
	Beliefs *beliefs.Store
	Model   string
}

// NewGatewayResearcher constructs a GatewayResearcher.
func NewGatewayResearcher(gateway *llm.Gateway, store *beliefs.Store, model string) *GatewayResearcher {
	return &GatewayResearcher{Gateway: gateway, Beliefs: store, Model: model}
}

// Research implements Researcher.
func (r *GatewayResearcher) Research(ctx context.Context, query string) error {
	resp, _, err := r.Gateway.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			llm.NewSystemMessage("Answer concisely from general knowledge. No tool access."),
			llm.NewUserMessage(query),
		},
		Model: r.Model,
	})
	if err != nil {
		return err
	}
	value, err := json.Marshal(resp.Text)
	if err != nil {
		return err
	}
	return r.Beliefs.Add(ctx, "environment.research."+sanitizeKey(query), value, 0.6, "agint.research", false)
}

func sanitizeKey(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
		if len(out) >= 40 {
			break
		}
	}
	if len(out) == 0 {
		return "query"
	}
	return string(out)
}
