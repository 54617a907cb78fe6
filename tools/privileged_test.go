package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	gotTarget, gotSuggestion string
	gotPriority              int
	gotRequiresApproval      bool
	returnID                 string
}

func (f *fakeEnqueuer) RequestImprovement(_ context.Context, target, suggestion string, priority int, requiresApproval bool) (string, error) {
	f.gotTarget, f.gotSuggestion, f.gotPriority, f.gotRequiresApproval = target, suggestion, priority, requiresApproval
	return f.returnID, nil
}

type fakeSIWInvoker struct {
	result SIWResult
}

func (f *fakeSIWInvoker) Invoke(_ context.Context, _ string) (SIWResult, error) {
	return f.result, nil
}

func TestCoordinatorRequestImprovementToolEnqueues(t *testing.T) {
	enqueuer := &fakeEnqueuer{returnID: "item-1"}
	r := New(nil)
	require.NoError(t, r.Register(NewCoordinatorRequestImprovementTool(enqueuer, []string{"*"})))

	out, err := r.Call(context.Background(), Context{AgentID: "agint"}, IDCoordinatorRequestImprovement,
		json.RawMessage(`{"target_component":"llm.gateway","suggestion":"add caching","priority":5,"requires_approval":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"backlog_item_id":"item-1"}`, string(out))
	assert.Equal(t, "llm.gateway", enqueuer.gotTarget)
	assert.True(t, enqueuer.gotRequiresApproval)
}

func TestInvokeSelfImprovementWorkerToolInvokes(t *testing.T) {
	invoker := &fakeSIWInvoker{result: SIWResult{Success: true, Promoted: true, Summary: "ok"}}
	r := New(nil)
	require.NoError(t, r.Register(NewInvokeSelfImprovementWorkerTool(invoker, []string{"*"})))

	out, err := r.Call(context.Background(), Context{AgentID: "coordinator"}, IDInvokeSelfImprovementWorker,
		json.RawMessage(`{"backlog_item_id":"item-1"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"promoted":true,"summary":"ok"}`, string(out))
}
