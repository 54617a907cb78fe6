package bdi

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindforge-ai/mindforge/beliefs"
	"github.com/mindforge-ai/mindforge/goals"
	"github.com/mindforge-ai/mindforge/llm"
	"github.com/mindforge-ai/mindforge/recovery"
	"github.com/mindforge-ai/mindforge/tools"
)

func echoTool(id tools.ID, allowed []string) tools.Tool {
	return tools.Tool{
		Descriptor: tools.Descriptor{
			ID:      id,
			Enabled: true,
			AccessControl: tools.AccessControl{
				AllowedAgents: allowed,
			},
			InputSchema: json.RawMessage(`{
				"type": "object",
				"required": ["msg"],
				"properties": {"msg": {"type": "string"}}
			}`),
		},
		Handler: func(_ tools.Context, args json.RawMessage) (json.RawMessage, error) {
			return args, nil
		},
	}
}

func newTestExecutor(t *testing.T, provider llm.Provider, registry *tools.Registry) *Executor {
	t.Helper()
	gw := llm.New(llm.Options{Provider: provider, RatePerSecond: 100, RateBurst: 100})
	b := beliefs.New(t.TempDir(), 2, nil)
	return &Executor{
		Gateway:       gw,
		Registry:      registry,
		Beliefs:       b,
		Goals:         goals.NewQueue(),
		Recovery:      recovery.New(),
		AgentID:       "agent",
		WorkspaceRoot: t.TempDir(),
		BaseDelay:     time.Millisecond,
		MaxDelay:      time.Millisecond,
	}
}

func reportOnlyPlanJSON() string {
	return `[{"type":"REPORT","params":{},"deps":[]}]`
}

func TestRunGoalAchievesOnSuccessfulReportPlan(t *testing.T) {
	r := tools.New(nil)
	provider := llm.NewMockProvider("mock", llm.Response{Text: reportOnlyPlanJSON()})
	exec := newTestExecutor(t, provider, r)

	goal := goals.NewGoal("say hello", 1, time.Now())
	exec.Goals.Push(goal)

	plan, err := exec.RunGoal(context.Background(), goal)
	require.NoError(t, err)
	assert.Equal(t, goals.PlanDone, plan.Status)

	all := exec.Goals.All()
	require.Len(t, all, 1)
	assert.Equal(t, goals.GoalAchieved, all[0].Status)
}

func TestRunGoalFailsWhenPlanNeverValidates(t *testing.T) {
	r := tools.New(nil)
	provider := llm.NewMockProvider("mock", llm.Response{Text: "not json"})
	exec := newTestExecutor(t, provider, r)

	goal := goals.NewGoal("do something impossible", 1, time.Now())
	exec.Goals.Push(goal)

	_, err := exec.RunGoal(context.Background(), goal)
	require.Error(t, err)

	all := exec.Goals.All()
	require.Len(t, all, 1)
	assert.Equal(t, goals.GoalFailed, all[0].Status)
}

func TestPlanRepairsAfterValidationFailure(t *testing.T) {
	r := tools.New(nil)
	provider := llm.NewMockProvider("mock", llm.Response{})
	provider.Responses = []llm.Response{
		{Text: `[]`}, // empty plan: fails validateActions
		{Text: reportOnlyPlanJSON()},
	}
	exec := newTestExecutor(t, provider, r)

	goal := goals.NewGoal("retry goal", 1, time.Now())
	plan, err := exec.Plan(context.Background(), goal)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, goals.ActionReport, plan.Actions[0].Type)
}

func TestValidateActionsRejectsUnknownTool(t *testing.T) {
	r := tools.New(nil)
	actions := []goals.Action{
		{Type: goals.ActionToolCall, Params: map[string]any{"tool_id": "nope"}, Deps: []int{}},
	}
	err := validateActions(actions, r)
	require.Error(t, err)
}

func TestValidateActionsAcceptsKnownTool(t *testing.T) {
	r := tools.New(nil)
	require.NoError(t, r.Register(echoTool("echo", []string{"*"})))
	actions := []goals.Action{
		{Type: goals.ActionToolCall, Params: map[string]any{"tool_id": "echo", "args": map[string]any{"msg": "hi"}}, Deps: []int{}},
	}
	require.NoError(t, validateActions(actions, r))
}
