package backlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueThenListContainsItem(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "backlog.json"), 2)
	id, err := s.Enqueue(Item{TargetComponent: "llm.gateway", Suggestion: "x", Priority: 5})
	require.NoError(t, err)

	items, err := s.List(Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, StatusPending, items[0].Status)
}

func TestApproveIsIdempotent(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "backlog.json"), 2)
	id, err := s.Enqueue(Item{TargetComponent: "a", Suggestion: "x", Priority: 1})
	require.NoError(t, err)

	require.NoError(t, s.Approve(id))
	first, err := s.Get(id)
	require.NoError(t, err)

	require.NoError(t, s.Approve(id))
	second, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHITLGateBlocksCriticalComponentUntilApproved(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "backlog.json"), 2)
	id, err := s.RequestImprovement(context.Background(), "core.planner", "x", 5, true)
	require.NoError(t, err)

	item, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, item.Status)

	_, ok, err := s.NextEligible(time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "a PENDING item requiring approval must not be tactically eligible")

	require.NoError(t, s.Approve(id))
	next, ok, err := s.NextEligible(time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, next.ID)
}

func TestNextEligibleHonorsCooldown(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "backlog.json"), 2)
	until := time.Now().Add(time.Hour)
	id, err := s.Enqueue(Item{TargetComponent: "a", Suggestion: "x", Priority: 1, CooldownUntilTs: &until})
	require.NoError(t, err)

	_, ok, err := s.NextEligible(time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	next, ok, err := s.NextEligible(until.Add(time.Second))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, next.ID)
}

func TestNextEligiblePicksHighestPriority(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "backlog.json"), 2)
	_, err := s.Enqueue(Item{TargetComponent: "low", Suggestion: "x", Priority: 1})
	require.NoError(t, err)
	highID, err := s.Enqueue(Item{TargetComponent: "high", Suggestion: "x", Priority: 9})
	require.NoError(t, err)

	next, ok, err := s.NextEligible(time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, highID, next.ID)
}

func TestMarkInProgressRejectsAlreadyInProgressItem(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "backlog.json"), 2)
	id, err := s.Enqueue(Item{TargetComponent: "a", Suggestion: "x", Priority: 1})
	require.NoError(t, err)
	require.NoError(t, s.MarkInProgress(id))

	err = s.MarkInProgress(id)
	assert.Error(t, err)
}

func TestResetOrphanedInProgressRestoresPending(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "backlog.json"), 2)
	id, err := s.Enqueue(Item{TargetComponent: "a", Suggestion: "x", Priority: 1})
	require.NoError(t, err)
	require.NoError(t, s.MarkInProgress(id))

	reset, err := s.ResetOrphanedInProgress()
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	item, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, item.Status)
}
