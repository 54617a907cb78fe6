package mastermind

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindforge-ai/mindforge/campaign"
	"github.com/mindforge-ai/mindforge/llm"
)

type fakeEnqueuer struct {
	calls []string
}

func (f *fakeEnqueuer) RequestImprovement(_ context.Context, targetComponent, _ string, _ int, _ bool) (string, error) {
	f.calls = append(f.calls, targetComponent)
	return "item-" + targetComponent, nil
}

func TestRunCampaignAuditsBlueprintsAndExecutes(t *testing.T) {
	store := campaign.New(filepath.Join(t.TempDir(), "campaigns.json"), 2)
	provider := llm.NewMockProvider("mock", llm.Response{})
	provider.Responses = []llm.Response{
		{Text: `[{"severity":"high","target":"a.go","suggestion":"fix race"}]`},
		{Text: `[{"target_component":"a.go","suggestion":"fix race","priority":5}]`},
	}
	gw := llm.New(llm.Options{Provider: provider, RatePerSecond: 100, RateBurst: 100})
	enq := &fakeEnqueuer{}

	m := &Mastermind{Gateway: gw, Campaigns: store, Enqueuer: enq}
	id, err := m.RunCampaign(context.Background(), campaign.Directive{Text: "assess and evolve"})
	require.NoError(t, err)

	rec, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []campaign.Phase{campaign.PhaseAudit, campaign.PhaseBlueprint, campaign.PhaseExecute}, rec.Phases)
	assert.Equal(t, []string{"item-a.go"}, rec.BacklogItemsSpawned)
	assert.Equal(t, []string{"a.go"}, enq.calls)
}

func TestRunCampaignSkipsFlaggedPhases(t *testing.T) {
	store := campaign.New(filepath.Join(t.TempDir(), "campaigns.json"), 2)
	gw := llm.New(llm.Options{Provider: llm.NewMockProvider("mock", llm.Response{}), RatePerSecond: 100, RateBurst: 100})
	enq := &fakeEnqueuer{}

	directive := campaign.Directive{Text: "evolve", Flags: map[campaign.Phase]bool{
		campaign.PhaseAudit:     true,
		campaign.PhaseBlueprint: true,
		campaign.PhaseExecute:   true,
	}}
	m := &Mastermind{Gateway: gw, Campaigns: store, Enqueuer: enq}
	id, err := m.RunCampaign(context.Background(), directive)
	require.NoError(t, err)

	rec, err := store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, rec.Phases)
	assert.Empty(t, enq.calls)
}

func TestValidateComputesResolutionScore(t *testing.T) {
	store := campaign.New(filepath.Join(t.TempDir(), "campaigns.json"), 2)
	provider := llm.NewMockProvider("mock", llm.Response{Text: `[]`})
	gw := llm.New(llm.Options{Provider: provider, RatePerSecond: 100, RateBurst: 100})
	m := &Mastermind{Gateway: gw, Campaigns: store}

	id, err := store.Start(campaign.Directive{Text: "d"})
	require.NoError(t, err)

	rec, err := m.Validate(context.Background(), id, 4)
	require.NoError(t, err)
	require.NotNil(t, rec.ResolutionScore)
	assert.InDelta(t, 100.0, *rec.ResolutionScore, 0.001)
	assert.Equal(t, campaign.GradeA, rec.Grade)
}
