package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultGuardOKWhenNoSamplersConfigured(t *testing.T) {
	g := DefaultGuard{}
	ok, _ := g.OK()
	assert.True(t, ok)
}

func TestDefaultGuardRejectsOverCPUCeiling(t *testing.T) {
	g := DefaultGuard{
		CPUCeiling: 50,
		CPUSampler: func() (float64, error) { return 90, nil },
	}
	ok, reason := g.OK()
	assert.False(t, ok)
	assert.Equal(t, "cpu_ceiling_exceeded", reason)
}

func TestDefaultGuardRejectsExhaustedBudget(t *testing.T) {
	g := DefaultGuard{
		RemainingBudget: func() int64 { return 0 },
	}
	ok, reason := g.OK()
	assert.False(t, ok)
	assert.Equal(t, "daily_budget_exhausted", reason)
}

func TestDefaultGuardAllowsPositiveRemainingBudget(t *testing.T) {
	g := DefaultGuard{
		RemainingBudget: func() int64 { return 1 },
	}
	ok, _ := g.OK()
	assert.True(t, ok)
}

func TestDefaultGuardRejectsBelowDiskFloor(t *testing.T) {
	g := DefaultGuard{
		FreeDiskFloor: 1024,
		FreeDiskBytes: func() (int64, error) { return 100, nil },
	}
	ok, reason := g.OK()
	assert.False(t, ok)
	assert.Equal(t, "free_disk_below_floor", reason)
}
