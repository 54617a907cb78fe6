package agint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindforge-ai/mindforge/beliefs"
	"github.com/mindforge-ai/mindforge/errs"
)

type fakeBDI struct {
	err   error
	calls int
}

func (f *fakeBDI) RunGoalDescription(context.Context, string, int) error {
	f.calls++
	return f.err
}

type fakeResearcher struct{ calls int }

func (f *fakeResearcher) Research(context.Context, string) error {
	f.calls++
	return nil
}

type fakeSelfRepairer struct{ calls int }

func (f *fakeSelfRepairer) RequestImprovement(context.Context, string, string, int, bool) (string, error) {
	f.calls++
	return "item-1", nil
}

func newTestIntelligence(t *testing.T, bdi BDIRunner, research Researcher, repair SelfRepairer) *Intelligence {
	t.Helper()
	store := beliefs.New(t.TempDir(), 2, nil)
	return New(store, bdi, research, repair, nil)
}

func TestDecideBiasesTowardSelfRepairAfterRepeatedFailures(t *testing.T) {
	in := newTestIntelligence(t, &fakeBDI{}, &fakeResearcher{}, &fakeSelfRepairer{})
	d := in.Decide(Perception{ConsecutiveBDIFailures: 5, UnresolvedBeliefs: []beliefs.Belief{{Key: "environment.x"}}})
	assert.Equal(t, DecisionSelfRepair, d.Kind)
}

func TestDecideBiasesTowardCooldownOnGatewayErrors(t *testing.T) {
	in := newTestIntelligence(t, &fakeBDI{}, &fakeResearcher{}, &fakeSelfRepairer{})
	d := in.Decide(Perception{GatewayErrorsRecent: 5, UnresolvedBeliefs: []beliefs.Belief{{Key: "environment.x"}}})
	assert.Equal(t, DecisionCooldown, d.Kind)
}

func TestDecideBiasesTowardResearchWhenNoFreshPerceptions(t *testing.T) {
	in := newTestIntelligence(t, &fakeBDI{}, &fakeResearcher{}, &fakeSelfRepairer{})
	d := in.Decide(Perception{})
	assert.Equal(t, DecisionResearch, d.Kind)
}

func TestActDispatchesToBDIOnDelegateDecision(t *testing.T) {
	bdi := &fakeBDI{}
	in := newTestIntelligence(t, bdi, &fakeResearcher{}, &fakeSelfRepairer{})
	err := in.Act(context.Background(), Decision{Kind: DecisionBDIDelegate, SubGoal: "do x"})
	require.NoError(t, err)
	assert.Equal(t, 1, bdi.calls)
}

func TestActTracksConsecutiveBDIFailures(t *testing.T) {
	bdi := &fakeBDI{err: errs.New(errs.KindToolExecutionError, "boom")}
	in := newTestIntelligence(t, bdi, &fakeResearcher{}, &fakeSelfRepairer{})
	_ = in.Act(context.Background(), Decision{Kind: DecisionBDIDelegate})
	_ = in.Act(context.Background(), Decision{Kind: DecisionBDIDelegate})
	assert.Equal(t, 2, in.consecutiveBDIFailures)
}

func TestActRejectsConcurrentInFlightDecision(t *testing.T) {
	in := newTestIntelligence(t, &fakeBDI{}, &fakeResearcher{}, &fakeSelfRepairer{})
	in.inFlight = true
	err := in.Act(context.Background(), Decision{Kind: DecisionBDIDelegate})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidRequest, errs.KindOf(err))
}

func TestCycleRunsPerceiveDecideAct(t *testing.T) {
	research := &fakeResearcher{}
	store := beliefs.New(t.TempDir(), 2, nil)
	in := New(store, &fakeBDI{}, research, &fakeSelfRepairer{}, nil)

	decision, err := in.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DecisionResearch, decision.Kind)
	assert.Equal(t, 1, research.calls)
}
