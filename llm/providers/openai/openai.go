// Package openai adapts github.com/openai/openai-go to the llm.Provider
// contract, grounded on the teacher's features/model/openai adapter (which
// performs the same translation for the richer planner-facing client, albeit
// against a different OpenAI client library in the teacher's checked-in
// version).
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/llm"
)

// ChatClient captures the subset of the OpenAI SDK used by this adapter.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements llm.Provider via OpenAI's Chat Completions API.
type Client struct {
	chat         ChatClient
	defaultModel string
}

// Options configures the OpenAI provider adapter.
type Options struct {
	DefaultModel string
}

// New builds a Client from an explicit ChatClient, allowing tests to supply a fake.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, defaultModel: opts.DefaultModel}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Name implements llm.Provider.
func (c *Client) Name() string { return "openai" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Messages) == 0 {
		return llm.Response{}, errs.New(errs.KindInvalidRequest, "openai: at least one message is required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		text := m.Text()
		switch m.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(text))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(text))
		default:
			messages = append(messages, openai.UserMessage(text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(modelID),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return llm.Response{}, translateError(err)
	}
	return translateResponse(resp), nil
}

func translateResponse(resp *openai.ChatCompletion) llm.Response {
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return llm.Response{
		Text: text,
		Usage: llm.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
}

func translateError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return errs.Wrap(errs.KindRateLimited, err, "openai: rate limited")
		case 401, 403:
			return errs.Wrap(errs.KindPermissionDenied, err, "openai: auth rejected")
		case 400, 422:
			return errs.Wrap(errs.KindInvalidRequest, err, "openai: invalid request")
		default:
			if apiErr.StatusCode >= 500 {
				return errs.Wrap(errs.KindNetworkError, err, "openai: provider unavailable")
			}
		}
	}
	return errs.Wrap(errs.KindNetworkError, err, "openai: chat completion failed")
}
