// Package bedrock adapts the AWS Bedrock Converse API to the llm.Provider
// contract, grounded on the teacher's features/model/bedrock client (which
// performs the richer tool-aware translation for its planner-facing
// model.Client contract; this adapter only needs the plain text/JSON
// generation path spec §4.2 describes).
package bedrock

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/llm"
)

// RuntimeClient captures the subset of the Bedrock runtime client used here,
// satisfied by *bedrockruntime.Client or a test double.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements llm.Provider on top of Bedrock's Converse API.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int32
}

// Options configures the Bedrock provider adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int32
}

// New builds a Client from an explicit RuntimeClient, allowing tests to
// supply a fake.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{runtime: runtime, defaultModel: opts.DefaultModel, maxTokens: maxTokens}, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return "bedrock" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	var system []brtypes.SystemContentBlock
	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		text := m.Text()
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: text})
		case llm.RoleAssistant:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
			})
		default:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
			})
		}
	}
	if len(messages) == 0 {
		return llm.Response{}, errs.New(errs.KindInvalidRequest, "bedrock: at least one message is required")
	}

	temp := float32(req.Temperature)
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(temp),
		},
	}
	if len(system) > 0 {
		input.System = system
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return llm.Response{}, translateError(err)
	}
	return translateResponse(out)
}

func translateResponse(out *bedrockruntime.ConverseOutput) (llm.Response, error) {
	member, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return llm.Response{}, errs.New(errs.KindProviderError, "bedrock: converse output missing message")
	}
	var text string
	for _, block := range member.Value.Content {
		if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}
	var usage llm.TokenUsage
	if out.Usage != nil {
		usage = llm.TokenUsage{
			InputTokens:  int64(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int64(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}
	return llm.Response{Text: text, Usage: usage}, nil
}

func translateError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return errs.Wrap(errs.KindRateLimited, err, "bedrock: rate limited")
		case "AccessDeniedException", "UnauthorizedException":
			return errs.Wrap(errs.KindPermissionDenied, err, "bedrock: access denied")
		case "ValidationException":
			return errs.Wrap(errs.KindInvalidRequest, err, "bedrock: invalid request")
		}
	}
	return errs.Wrap(errs.KindNetworkError, err, "bedrock: converse failed")
}
