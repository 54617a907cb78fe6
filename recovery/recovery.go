// Package recovery implements the failure classification and strategy
// selection framework (spec §4.11, C11): a failure kind enum, an ordered
// strategy table keyed by kind, and an exponential-moving-average scorer
// with epsilon-greedy exploration over (kind, strategy) pairs. Grounded on
// the exponential-backoff shape of the teacher's runtime/a2a/retry package,
// generalized from a single linear retry policy into a scored, explorable
// strategy selector.
package recovery

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mindforge-ai/mindforge/errs"
)

// Kind classifies a recoverable failure (spec §4.11). Distinct from
// errs.Kind: errs.Kind describes the shape of an error as it propagates
// across package boundaries, while Kind describes how the recovery
// framework should respond to a failed action.
type Kind string

const (
	KindToolUnavailable    Kind = "TOOL_UNAVAILABLE"
	KindToolExecutionError Kind = "TOOL_EXECUTION_ERROR"
	KindInvalidParameters  Kind = "INVALID_PARAMETERS"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindPermissionDenied   Kind = "PERMISSION_DENIED"
	KindNetworkError       Kind = "NETWORK_ERROR"
	KindPlanningError      Kind = "PLANNING_ERROR"
	KindGoalParseError     Kind = "GOAL_PARSE_ERROR"
	KindUnknown            Kind = "UNKNOWN"
)

// Strategy is a recovery action the framework may take after a failure.
type Strategy string

const (
	StrategyRetryWithDelay         Strategy = "RETRY_WITH_DELAY"
	StrategyAlternativeTool        Strategy = "ALTERNATIVE_TOOL"
	StrategySimplifyPlan           Strategy = "SIMPLIFY_PLAN"
	StrategyEscalateToIntelligence Strategy = "ESCALATE_TO_INTELLIGENCE"
	StrategyManualFallback         Strategy = "MANUAL_FALLBACK"
	StrategyAbortGoal              Strategy = "ABORT_GOAL"
)

// defaultStrategies is the ordered strategy list per failure kind (spec
// §4.11: "a table keyed by (kind) returns an ordered strategy list").
var defaultStrategies = map[Kind][]Strategy{
	KindToolUnavailable:    {StrategyAlternativeTool, StrategySimplifyPlan, StrategyAbortGoal},
	KindToolExecutionError: {StrategyRetryWithDelay, StrategyAlternativeTool, StrategyAbortGoal},
	KindInvalidParameters:  {StrategySimplifyPlan, StrategyEscalateToIntelligence, StrategyAbortGoal},
	KindRateLimited:        {StrategyRetryWithDelay, StrategyEscalateToIntelligence},
	KindPermissionDenied:   {StrategyManualFallback, StrategyAbortGoal},
	KindNetworkError:       {StrategyRetryWithDelay, StrategyEscalateToIntelligence, StrategyAbortGoal},
	KindPlanningError:      {StrategySimplifyPlan, StrategyEscalateToIntelligence, StrategyAbortGoal},
	KindGoalParseError:     {StrategyEscalateToIntelligence, StrategyAbortGoal},
	KindUnknown:            {StrategyEscalateToIntelligence, StrategyAbortGoal},
}

// ClassifyErrsKind maps an errs.Kind onto the closest recovery Kind, used at
// the boundary where tool/gateway errors enter the recovery framework.
func ClassifyErrsKind(k errs.Kind) Kind {
	switch k {
	case errs.KindToolExecutionError:
		return KindToolExecutionError
	case errs.KindInvalidParameters, errs.KindSchemaViolation, errs.KindInvalidRequest:
		return KindInvalidParameters
	case errs.KindRateLimited:
		return KindRateLimited
	case errs.KindPermissionDenied:
		return KindPermissionDenied
	case errs.KindNetworkError, errs.KindTimeout:
		return KindNetworkError
	case errs.KindPlanningError:
		return KindPlanningError
	default:
		return KindUnknown
	}
}

const emaAlpha = 0.3
const explorationEpsilon = 0.1

// Framework tracks per-(kind, strategy) success rates via exponential
// moving average and selects strategies, preferring higher-scoring ones
// while occasionally exploring lower-scoring ones (spec §4.11).
type Framework struct {
	mu     sync.Mutex
	scores map[Kind]map[Strategy]float64
	rng    *rand.Rand
}

// New constructs a Framework with every strategy starting at a neutral
// score of 0.5.
func New() *Framework {
	return &Framework{
		scores: make(map[Kind]map[Strategy]float64),
		rng:    rand.New(rand.NewSource(1)),
	}
}

// Select returns the strategy list for kind ordered by current EMA score,
// highest first, except that with probability ε the top two entries are
// swapped to preserve exploration (spec §4.11: "occasionally (ε = 0.1)
// trying lower-scoring ones").
func (f *Framework) Select(kind Kind) []Strategy {
	candidates := defaultStrategies[kind]
	if len(candidates) == 0 {
		candidates = defaultStrategies[KindUnknown]
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ordered := make([]Strategy, len(candidates))
	copy(ordered, candidates)
	scores := f.scores[kind]
	sortByScoreDesc(ordered, scores)

	if len(ordered) >= 2 && f.rng.Float64() < explorationEpsilon {
		ordered[0], ordered[1] = ordered[1], ordered[0]
	}
	return ordered
}

func sortByScoreDesc(strategies []Strategy, scores map[Strategy]float64) {
	score := func(s Strategy) float64 {
		if scores == nil {
			return 0.5
		}
		if v, ok := scores[s]; ok {
			return v
		}
		return 0.5
	}
	for i := 1; i < len(strategies); i++ {
		for j := i; j > 0 && score(strategies[j]) > score(strategies[j-1]); j-- {
			strategies[j], strategies[j-1] = strategies[j-1], strategies[j]
		}
	}
}

// Record updates the EMA score for (kind, strategy) given whether the
// attempt succeeded.
func (f *Framework) Record(kind Kind, strategy Strategy, success bool) {
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scores[kind] == nil {
		f.scores[kind] = make(map[Strategy]float64)
	}
	prev, ok := f.scores[kind][strategy]
	if !ok {
		prev = 0.5
	}
	f.scores[kind][strategy] = emaAlpha*outcome + (1-emaAlpha)*prev
}

// Score returns the current EMA score for (kind, strategy), or 0.5 if no
// outcome has been recorded yet.
func (f *Framework) Score(kind Kind, strategy Strategy) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scores[kind]; ok {
		if v, ok := s[strategy]; ok {
			return v
		}
	}
	return 0.5
}

// Backoff computes the exponential backoff delay for attempt (1-indexed),
// starting at base and doubling each attempt, capped at max (spec §4.11:
// "exponential backoff starting at the configured base delay, doubling
// each attempt, capped at a configured ceiling").
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(2, float64(attempt-1))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}
