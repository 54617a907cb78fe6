package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectReturnsConfiguredStrategiesWithEqualScores(t *testing.T) {
	f := New()
	strategies := f.Select(KindToolExecutionError)
	want := defaultStrategies[KindToolExecutionError]
	require := assert.New(t)
	require.Len(strategies, len(want))
	// With no recorded outcomes every strategy ties at 0.5, so the only
	// possible difference from the configured order is the ε-exploration
	// swap of the first two entries.
	if strategies[0] == want[0] {
		require.Equal(want[1:], strategies[1:])
	} else {
		require.Equal(want[0], strategies[1])
		require.Equal(want[1], strategies[0])
		require.Equal(want[2:], strategies[2:])
	}
}

func TestRecordShiftsScoreTowardOutcome(t *testing.T) {
	f := New()
	for i := 0; i < 20; i++ {
		f.Record(KindNetworkError, StrategyRetryWithDelay, true)
	}
	assert.Greater(t, f.Score(KindNetworkError, StrategyRetryWithDelay), 0.9)

	for i := 0; i < 20; i++ {
		f.Record(KindNetworkError, StrategyEscalateToIntelligence, false)
	}
	assert.Less(t, f.Score(KindNetworkError, StrategyEscalateToIntelligence), 0.1)
}

func TestSelectPrefersHigherScoringStrategy(t *testing.T) {
	f := New()
	for i := 0; i < 30; i++ {
		f.Record(KindPlanningError, StrategyEscalateToIntelligence, true)
		f.Record(KindPlanningError, StrategySimplifyPlan, false)
	}
	strategies := f.Select(KindPlanningError)
	// The ε-exploration swap only ever exchanges the top two entries, so a
	// strategy scored this much lower stays last regardless of it firing.
	assert.Equal(t, StrategySimplifyPlan, strategies[len(strategies)-1])
}

func TestUnknownKindFallsBackToDefault(t *testing.T) {
	f := New()
	strategies := f.Select(Kind("nonsense"))
	assert.Equal(t, defaultStrategies[KindUnknown], strategies)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	base := 500 * time.Millisecond
	max := 4 * time.Second
	assert.Equal(t, base, Backoff(base, max, 1))
	assert.Equal(t, 2*base, Backoff(base, max, 2))
	assert.Equal(t, 4*base, Backoff(base, max, 3))
	assert.Equal(t, max, Backoff(base, max, 10))
}
