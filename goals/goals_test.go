package goals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueNextGoalOrdersByPriorityThenAge(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	low := NewGoal("low priority, earlier", 1, base)
	high := NewGoal("high priority, later", 5, base.Add(time.Hour))
	q.Push(low)
	q.Push(high)

	next, ok := q.NextGoal()
	require.True(t, ok)
	assert.Equal(t, high.ID, next.ID)
	assert.Equal(t, GoalActive, next.Status)
}

func TestQueueNextGoalBreaksTiesByCreatedTs(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := NewGoal("earlier", 3, base)
	later := NewGoal("later", 3, base.Add(time.Minute))
	q.Push(later)
	q.Push(earlier)

	next, ok := q.NextGoal()
	require.True(t, ok)
	assert.Equal(t, earlier.ID, next.ID)
}

func TestQueueNextGoalReturnsFalseWhenEmpty(t *testing.T) {
	q := NewQueue()
	_, ok := q.NextGoal()
	assert.False(t, ok)
}

func TestSetStatusRejectsTransitionFromTerminal(t *testing.T) {
	q := NewQueue()
	g := NewGoal("g", 1, time.Now())
	q.Push(g)
	require.NoError(t, q.SetStatus(g.ID, GoalAchieved))

	err := q.SetStatus(g.ID, GoalActive)
	assert.Error(t, err)
}

func TestValidateDAGRejectsCycle(t *testing.T) {
	actions := []Action{
		{Type: ActionToolCall, Deps: []int{1}},
		{Type: ActionToolCall, Deps: []int{0}},
	}
	_, err := NewPlan("goal-1", actions)
	require.Error(t, err)
}

func TestValidateDAGAcceptsLinearChain(t *testing.T) {
	actions := []Action{
		{Type: ActionToolCall},
		{Type: ActionToolCall, Deps: []int{0}},
		{Type: ActionToolCall, Deps: []int{1}},
	}
	plan, err := NewPlan("goal-1", actions)
	require.NoError(t, err)
	assert.Equal(t, PlanPlanning, plan.Status)
}

func TestEligibleActionsRespectsDeps(t *testing.T) {
	actions := []Action{
		{Type: ActionToolCall},
		{Type: ActionToolCall, Deps: []int{0}},
	}
	plan, err := NewPlan("goal-1", actions)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, plan.EligibleActions())

	require.NoError(t, plan.Mark(0, ActionDone, ""))
	assert.Equal(t, []int{1}, plan.EligibleActions())
}

func TestMarkTransitionsPlanToDoneWhenAllActionsDone(t *testing.T) {
	actions := []Action{{Type: ActionToolCall}, {Type: ActionToolCall, Deps: []int{0}}}
	plan, err := NewPlan("goal-1", actions)
	require.NoError(t, err)

	require.NoError(t, plan.Mark(0, ActionDone, ""))
	require.NoError(t, plan.Mark(1, ActionDone, ""))
	assert.Equal(t, PlanDone, plan.Status)
}

func TestMarkTransitionsPlanToFailedOnActionFailure(t *testing.T) {
	actions := []Action{{Type: ActionToolCall}}
	plan, err := NewPlan("goal-1", actions)
	require.NoError(t, err)

	require.NoError(t, plan.Mark(0, ActionFailed, "NETWORK_ERROR"))
	assert.Equal(t, PlanFailed, plan.Status)
	assert.Equal(t, 1, plan.Actions[0].Attempts)
	assert.Equal(t, "NETWORK_ERROR", plan.Actions[0].LastErrorKind)
}

func TestResetInFlightRestoresRunningActionsToPending(t *testing.T) {
	actions := []Action{{Type: ActionToolCall, Status: ActionRunning}}
	plan := Plan{ID: "p", Actions: actions, Status: PlanExecuting}

	plan.ResetInFlight()
	assert.Equal(t, ActionPending, plan.Actions[0].Status)
	assert.Equal(t, 1, plan.Actions[0].Attempts)
}
