package coordinator

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// ResourceGuard reports whether it is currently safe to launch the SIW or
// a strategic LLM batch (spec §5 "resource guards": CPU ceiling, remaining
// daily LLM-cost budget, free disk floor). On a guard failure
// Coordinator.Tick skips the current tick without error and without setting
// a cooldown; the next tick checks the guard again.
type ResourceGuard interface {
	OK() (bool, string)
}

// Sampler reads the current load-average-derived CPU estimate, in percent
// of total CPU capacity (100 means every core busy). It is injected so tests can supply a fixed value instead of
// reading actual host state.
type Sampler func() (float64, error)

// LoadAvgSampler reads /proc/loadavg (Linux-only, standard library only: no
// third-party library in the example corpus reads host CPU/load, so this
// stays stdlib per the module's grounding ledger). It returns the 1-minute
// load average as a percentage of numCPU.
func LoadAvgSampler(numCPU int) Sampler {
	return func() (float64, error) {
		f, err := os.Open("/proc/loadavg")
		if err != nil {
			return 0, err
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		if !scanner.Scan() {
			return 0, scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			return 0, nil
		}
		load, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, err
		}
		if numCPU <= 0 {
			numCPU = 1
		}
		return 100 * load / float64(numCPU), nil
	}
}

// DefaultGuard composes the three resource checks from spec §5 into one
// ResourceGuard.
type DefaultGuard struct {
	CPUCeiling      float64
	CPUSampler      Sampler
	RemainingBudget func() int64
	FreeDiskBytes   func() (int64, error)
	FreeDiskFloor   int64
}

func (g DefaultGuard) OK() (bool, string) {
	if g.CPUSampler != nil {
		pct, err := g.CPUSampler()
		if err == nil && g.CPUCeiling > 0 && pct > g.CPUCeiling {
			return false, "cpu_ceiling_exceeded"
		}
	}
	if g.RemainingBudget != nil && g.RemainingBudget() <= 0 {
		return false, "daily_budget_exhausted"
	}
	if g.FreeDiskBytes != nil {
		free, err := g.FreeDiskBytes()
		if err == nil && g.FreeDiskFloor > 0 && free < g.FreeDiskFloor {
			return false, "free_disk_below_floor"
		}
	}
	return true, ""
}
