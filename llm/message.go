// Package llm implements the provider-agnostic LLM gateway (spec §4.2, C2):
// text/JSON generation with rate limiting, retries, and structured error
// kinds. Concrete provider SDKs are wired behind the Provider interface in
// the llm/providers subpackages; this package defines only the contract and
// the cross-cutting behavior (rate limiting, retry, cost estimation).
package llm

// Role identifies the speaker of a Message in a conversation, mirroring the
// teacher's model.ConversationRole.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation. Parts keeps the door open for
// multi-part messages (e.g. a text part followed by a tool result) without
// forcing every caller through a string-only API.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text returns the concatenation of every TextPart in the message, which is
// the common case for prompts built by the BDI/AGInt layers.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			out += t.Text
		}
	}
	return out
}

// NewUserMessage constructs a single-part user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewSystemMessage constructs a single-part system message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantMessage constructs a single-part assistant message, used to
// replay a model's own prior turn back into the conversation.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}}
}

// Part is a marker interface implemented by message content blocks.
type Part interface{ isPart() }

// TextPart is a plain text content block.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}
