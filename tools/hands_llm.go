package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/llm"
)

// finishSentinel is the tool name the LLM emits to end an LLM-driven hands
// session (spec §4.3: "until the LLM emits a sentinel `finish` tool call").
const finishSentinel = "finish"

// StepRecord records one step of an LLM-driven hands session: the tool the
// model chose, the args it supplied, and the result or error observed.
type StepRecord struct {
	Tool   ID              `json:"tool"`
	Args   json.RawMessage `json:"args"`
	Result json.RawMessage `json:"result,omitempty"`
	Err    string          `json:"error,omitempty"`
}

// Executor drives the LLM-driven mode of the hands tool: repeatedly ask the
// gateway for the next tool call, execute it against the registry, feed the
// output back, until the model emits `finish` or the step cap is reached.
type Executor struct {
	gateway  *llm.Gateway
	registry *Registry
	agentID  string
	maxSteps int
}

// NewExecutor constructs an Executor. maxSteps <= 0 defaults to 10.
func NewExecutor(gateway *llm.Gateway, registry *Registry, agentID string, maxSteps int) *Executor {
	if maxSteps <= 0 {
		maxSteps = 10
	}
	return &Executor{gateway: gateway, registry: registry, agentID: agentID, maxSteps: maxSteps}
}

type llmToolCall struct {
	Tool ID              `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// Run drives the tool-call loop for task and returns the full step
// transcript. When the model calls `finish`, the args object of that call
// (e.g. {"result": ...}) is returned as the last record's Result field under
// the "finish" tool id.
func (e *Executor) Run(ctx context.Context, task string) ([]StepRecord, error) {
	messages := []llm.Message{
		llm.NewSystemMessage(e.systemPrompt()),
		llm.NewUserMessage(task),
	}
	var steps []StepRecord
	for i := 0; i < e.maxSteps; i++ {
		resp, _, err := e.gateway.Generate(ctx, llm.Request{Messages: messages, JSONMode: true})
		if err != nil {
			return steps, err
		}
		var call llmToolCall
		if err := json.Unmarshal([]byte(resp.Text), &call); err != nil {
			return steps, errs.Wrap(errs.KindInvalidRequest, err, "hands: model did not emit a valid tool call")
		}
		if call.Tool == finishSentinel {
			steps = append(steps, StepRecord{Tool: finishSentinel, Result: call.Args})
			return steps, nil
		}

		record := StepRecord{Tool: call.Tool, Args: call.Args}
		result, callErr := e.registry.Call(ctx, Context{AgentID: e.agentID}, call.Tool, call.Args)
		if callErr != nil {
			record.Err = callErr.Error()
		} else {
			record.Result = result
		}
		steps = append(steps, record)

		messages = append(messages,
			llm.NewAssistantMessage(resp.Text),
			llm.NewUserMessage(feedbackMessage(record)),
		)
	}
	return steps, errs.New(errs.KindPlanningError, "hands: step cap reached without a finish call")
}

func (e *Executor) systemPrompt() string {
	return "You control a sequence of tool calls to accomplish a task. " +
		"Respond only with a JSON object {\"tool\": <tool id>, \"args\": <object>}. " +
		"Call the tool named \"finish\" with {\"result\": <string>} once the task is complete."
}

func feedbackMessage(r StepRecord) string {
	if r.Err != "" {
		return fmt.Sprintf("tool %q failed: %s", r.Tool, r.Err)
	}
	return fmt.Sprintf("tool %q returned: %s", r.Tool, string(r.Result))
}
