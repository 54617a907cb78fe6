package bdi

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindforge-ai/mindforge/beliefs"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/goals"
	"github.com/mindforge-ai/mindforge/llm"
	"github.com/mindforge-ai/mindforge/recovery"
	"github.com/mindforge-ai/mindforge/tools"
)

func TestDispatchToolCallInvokesRegisteredTool(t *testing.T) {
	r := tools.New(nil)
	require.NoError(t, r.Register(echoTool("echo", []string{"*"})))
	exec := newTestExecutor(t, llm.NewMockProvider("mock", llm.Response{}), r)

	action := &goals.Action{
		Type:   goals.ActionToolCall,
		Params: map[string]any{"tool_id": "echo", "args": map[string]any{"msg": "hi"}},
	}
	err := exec.dispatchToolCall(context.Background(), action)
	require.NoError(t, err)
}

func TestDispatchUpdateBeliefWritesToStore(t *testing.T) {
	r := tools.New(nil)
	exec := newTestExecutor(t, llm.NewMockProvider("mock", llm.Response{}), r)

	action := &goals.Action{
		Type: goals.ActionUpdateBelief,
		Params: map[string]any{
			"key":        "facts.answer",
			"value":      "42",
			"confidence": 0.9,
			"source":     "test",
		},
	}
	require.NoError(t, exec.dispatchUpdateBelief(context.Background(), action))

	got, err := exec.Beliefs.Query(context.Background(), "facts")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "facts.answer", got[0].Key)
}

func TestDispatchUpdateBeliefRequiresKey(t *testing.T) {
	r := tools.New(nil)
	exec := newTestExecutor(t, llm.NewMockProvider("mock", llm.Response{}), r)

	err := exec.dispatchUpdateBelief(context.Background(), &goals.Action{Type: goals.ActionUpdateBelief, Params: map[string]any{}})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidParameters, errs.KindOf(err))
}

func TestDispatchDecomposeGoalPushesSubgoals(t *testing.T) {
	r := tools.New(nil)
	exec := newTestExecutor(t, llm.NewMockProvider("mock", llm.Response{}), r)

	parent := goals.NewGoal("parent goal", 5, time.Now())
	action := &goals.Action{
		Type:   goals.ActionDecomposeGoal,
		Params: map[string]any{"subgoals": []any{"step one", "step two"}},
	}
	require.NoError(t, exec.dispatchDecomposeGoal(context.Background(), action, parent))

	all := exec.Goals.All()
	require.Len(t, all, 2)
	assert.Equal(t, parent.ID, all[0].ParentID)
	assert.Equal(t, parent.Priority, all[0].Priority)
}

func TestDispatchExtractParamsFillsTargetAction(t *testing.T) {
	r := tools.New(nil)
	provider := llm.NewMockProvider("mock", llm.Response{Text: `{"path":"README.md"}`})
	exec := newTestExecutor(t, provider, r)

	plan := &goals.Plan{Actions: []goals.Action{
		{Type: goals.ActionToolCall, Params: map[string]any{"tool_id": "read_file"}},
	}}
	action := &goals.Action{
		Type: goals.ActionExtractParamsFromGoal,
		Params: map[string]any{
			"required_params":      []any{"path"},
			"target_action_index": float64(0),
		},
	}
	goal := goals.NewGoal("read the readme", 1, time.Now())

	require.NoError(t, exec.dispatchExtractParams(context.Background(), plan, action, goal))
	assert.Equal(t, "README.md", plan.Actions[0].Params["path"])
}

func TestExecuteWithRecoveryMarksActionFailedOnNonRetryableError(t *testing.T) {
	r := tools.New(nil)
	exec := newTestExecutor(t, llm.NewMockProvider("mock", llm.Response{}), r)
	exec.Recovery = recovery.New()

	plan := goals.Plan{Actions: []goals.Action{
		{Type: goals.ActionToolCall, Params: map[string]any{"tool_id": "missing", "args": map[string]any{}}},
	}}
	goal := goals.NewGoal("call a missing tool", 1, time.Now())

	err := exec.executeWithRecovery(context.Background(), &plan, 0, goal)
	require.Error(t, err)
	assert.Equal(t, goals.ActionFailed, plan.Actions[0].Status)
}

// TestExecuteWithRecoveryRetriesThenSucceeds exercises the RETRY_WITH_DELAY
// path. Select's epsilon-greedy exploration can occasionally swap the
// top-choice strategy (recovery.Framework.Select), so this test accepts
// both the retry-and-succeed outcome and the explore-and-fail-fast outcome,
// asserting each is internally consistent rather than hardcoding one.
func TestExecuteWithRecoveryRetriesThenSucceeds(t *testing.T) {
	r := tools.New(nil)

	calls := 0
	flaky := tools.Tool{
		Descriptor: tools.Descriptor{
			ID:            "flaky",
			Enabled:       true,
			AccessControl: tools.AccessControl{AllowedAgents: []string{"*"}},
			InputSchema:   json.RawMessage(`{"type":"object"}`),
		},
		Handler: func(_ tools.Context, args json.RawMessage) (json.RawMessage, error) {
			calls++
			if calls < 2 {
				return nil, errs.New(errs.KindNetworkError, "transient")
			}
			return json.RawMessage(`{}`), nil
		},
	}
	require.NoError(t, r.Register(flaky))

	exec := newTestExecutor(t, llm.NewMockProvider("mock", llm.Response{}), r)
	plan := goals.Plan{Actions: []goals.Action{
		{Type: goals.ActionToolCall, Params: map[string]any{"tool_id": "flaky", "args": map[string]any{}}},
	}}
	goal := goals.NewGoal("flaky goal", 1, time.Now())

	err := exec.executeWithRecovery(context.Background(), &plan, 0, goal)
	if err == nil {
		assert.Equal(t, goals.ActionDone, plan.Actions[0].Status)
		assert.Equal(t, 2, calls)
	} else {
		assert.Equal(t, goals.ActionFailed, plan.Actions[0].Status)
		assert.Equal(t, 1, calls)
	}
}

func TestExecuteWithRecoveryFailsOnAmbiguousAlias(t *testing.T) {
	r := tools.New(nil)
	exec := newTestExecutor(t, llm.NewMockProvider("mock", llm.Response{}), r)
	exec.Aliases = AliasMap{"the_component": {"a.go", "b.go"}}

	plan := goals.Plan{Actions: []goals.Action{
		{Type: goals.ActionToolCall, Params: map[string]any{"tool_id": "whatever", "path": "the_component", "args": map[string]any{}}},
	}}
	goal := goals.NewGoal("ambiguous goal", 1, time.Now())

	err := exec.executeWithRecovery(context.Background(), &plan, 0, goal)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidParameters, errs.KindOf(err))
	assert.Equal(t, goals.ActionFailed, plan.Actions[0].Status)
}
