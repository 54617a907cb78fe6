package campaign

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartThenGetRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "campaigns.json"), 2)
	id, err := s.Start(Directive{Text: "assess and evolve"})
	require.NoError(t, err)

	rec, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "assess and evolve", rec.Directive.Text)
	assert.Empty(t, rec.Phases)
}

func TestRecordPhaseAppends(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "campaigns.json"), 2)
	id, err := s.Start(Directive{Text: "d"})
	require.NoError(t, err)

	require.NoError(t, s.RecordPhase(id, PhaseAudit))
	require.NoError(t, s.RecordPhase(id, PhaseBlueprint))

	rec, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseAudit, PhaseBlueprint}, rec.Phases)
}

func TestFinishComputesGrade(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "campaigns.json"), 2)
	id, err := s.Start(Directive{Text: "d"})
	require.NoError(t, err)

	require.NoError(t, s.Finish(id, 92))
	rec, err := s.Get(id)
	require.NoError(t, err)
	require.NotNil(t, rec.EndedTs)
	assert.Equal(t, GradeA, rec.Grade)
}

func TestDirectiveSkipsPhase(t *testing.T) {
	d := Directive{Text: "d", Flags: map[Phase]bool{PhaseValidate: true}}
	assert.True(t, d.SkipsPhase(PhaseValidate))
	assert.False(t, d.SkipsPhase(PhaseAudit))
}

func TestGradeForScoreBoundaries(t *testing.T) {
	cases := map[float64]Grade{
		100: GradeA, 90: GradeA,
		89: GradeB, 75: GradeB,
		74: GradeC, 60: GradeC,
		59: GradeD, 40: GradeD,
		39: GradeF, 0: GradeF,
	}
	for score, want := range cases {
		assert.Equal(t, want, GradeForScore(score), "score=%v", score)
	}
}

func TestResolutionScoreComputesRatio(t *testing.T) {
	assert.InDelta(t, 50.0, ResolutionScore(5, 10), 0.001)
	assert.InDelta(t, 100.0, ResolutionScore(0, 0), 0.001)
}
