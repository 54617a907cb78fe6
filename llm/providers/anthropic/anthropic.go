// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// llm.Provider contract, grounded on the teacher's features/model/anthropic
// client (which does the same translation for the richer planner-facing
// model.Client contract). This adapter is intentionally narrower: the
// gateway contract is plain text/JSON generation (spec §4.2), not tool-call
// or streaming translation, so only the Messages.New request/response shapes
// are exercised.
package anthropic

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/llm"
)

// MessagesClient captures the subset of the Anthropic SDK used by this
// adapter, satisfied by *sdk.MessageService or a test double.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client implements llm.Provider on top of Anthropic's Messages API.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int64
}

// Options configures the Anthropic provider adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int64
}

// New builds a Client from an explicit MessagesClient, allowing tests to
// supply a fake.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{msg: msg, defaultModel: opts.DefaultModel, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, Options{DefaultModel: defaultModel})
}

// Name implements llm.Provider.
func (c *Client) Name() string { return "anthropic" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	var system string
	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		text := m.Text()
		switch m.Role {
		case llm.RoleSystem:
			system += text
		case llm.RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(text)))
		default:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(text)))
		}
	}
	if len(msgs) == 0 {
		return llm.Response{}, errs.New(errs.KindInvalidRequest, "anthropic: at least one user message is required")
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(modelID),
		MaxTokens:   c.maxTokens,
		Messages:    msgs,
		Temperature: sdk.Float(req.Temperature),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return llm.Response{}, translateError(err)
	}
	return translateResponse(msg), nil
}

func translateResponse(msg *sdk.Message) llm.Response {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return llm.Response{
		Text: text,
		Usage: llm.TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}

func translateError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return errs.Wrap(errs.KindRateLimited, err, "anthropic: rate limited")
		case 401, 403:
			return errs.Wrap(errs.KindPermissionDenied, err, "anthropic: auth rejected")
		case 400, 422:
			return errs.Wrap(errs.KindInvalidRequest, err, "anthropic: invalid request")
		default:
			if apiErr.StatusCode >= 500 {
				return errs.Wrap(errs.KindNetworkError, err, "anthropic: provider unavailable")
			}
		}
	}
	return errs.Wrap(errs.KindNetworkError, err, "anthropic: messages.new failed")
}
