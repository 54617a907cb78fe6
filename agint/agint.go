// Package agint implements the Intelligence Layer (spec §4.7, C8): a
// single-threaded Perceive-Orient/Decide-Act cycle that chooses exactly one
// decision kind per tick and dispatches to the BDI layer, a research tool,
// the self-improvement worker, or a cooldown sleep. Grounded on the
// teacher's planner request/response loop shape (same family as bdi.Plan),
// generalized here into a decision-policy loop scored by exponential
// moving average rather than a single LLM-authored plan.
package agint

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mindforge-ai/mindforge/beliefs"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/telemetry"
)

// DecisionKind tags the exactly-one decision the Orient/Decide stage
// chooses each cycle (spec §4.7).
type DecisionKind string

const (
	DecisionBDIDelegate DecisionKind = "BDI_DELEGATE"
	DecisionResearch    DecisionKind = "RESEARCH"
	DecisionSelfRepair  DecisionKind = "SELF_REPAIR"
	DecisionCooldown    DecisionKind = "COOLDOWN"
)

// Perception is the Perceive stage's output (spec §4.7: "latest system
// health summary, recent BDI outcomes, last action's success/failure,
// unresolved beliefs under the environment.* namespace").
type Perception struct {
	HealthSummary          string
	RecentBDIOutcomes      []bool // true = success
	LastActionSucceeded    bool
	UnresolvedBeliefs      []beliefs.Belief
	ConsecutiveBDIFailures int
	GatewayErrorsRecent    int
}

// Decision is the Orient/Decide stage's output.
type Decision struct {
	Kind    DecisionKind
	SubGoal string // for BDI_DELEGATE
	Query   string // for RESEARCH
	Target  string // for SELF_REPAIR
	Seconds int    // for COOLDOWN
}

// BDIRunner is implemented by the BDI executor (C7). Kept as an interface so
// this package never imports bdi directly (spec §9).
type BDIRunner interface {
	RunGoalDescription(ctx context.Context, description string, priority int) error
}

// Researcher performs a RESEARCH decision, typically backed by a web-search
// or belief-query tool.
type Researcher interface {
	Research(ctx context.Context, query string) error
}

// SelfRepairer is implemented by the coordinator's improvement-request path
// (C9), invoked for a SELF_REPAIR decision.
type SelfRepairer interface {
	RequestImprovement(ctx context.Context, targetComponent, suggestion string, priority int, requiresApproval bool) (string, error)
}

const emaAlpha = 0.3
const explorationEpsilon = 0.1

// Intelligence is the C8 component: a single-threaded P-O-D-A loop. Only one
// decision is in flight per instance (spec §4.7: "the layer is
// single-threaded cooperative").
type Intelligence struct {
	Beliefs      *beliefs.Store
	BDI          BDIRunner
	Research     Researcher
	SelfRepair   SelfRepairer
	Log          telemetry.Logger

	mu     sync.Mutex
	inFlight bool
	scores   map[DecisionKind]float64
	rng      *rand.Rand

	consecutiveBDIFailures int
	gatewayErrorsRecent    int
}

// New constructs an Intelligence with every decision kind scored neutrally.
func New(store *beliefs.Store, bdi BDIRunner, research Researcher, selfRepair SelfRepairer, log telemetry.Logger) *Intelligence {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Intelligence{
		Beliefs:    store,
		BDI:        bdi,
		Research:   research,
		SelfRepair: selfRepair,
		Log:        log,
		scores:     make(map[DecisionKind]float64),
		rng:        rand.New(rand.NewSource(1)),
	}
}

// Perceive gathers the inputs the Orient/Decide stage needs (spec §4.7
// Perceive).
func (in *Intelligence) Perceive(ctx context.Context) (Perception, error) {
	unresolved, err := in.Beliefs.Query(ctx, "environment")
	if err != nil {
		return Perception{}, err
	}
	return Perception{
		UnresolvedBeliefs:      unresolved,
		ConsecutiveBDIFailures: in.consecutiveBDIFailures,
		GatewayErrorsRecent:    in.gatewayErrorsRecent,
	}, nil
}

// Decide chooses exactly one DecisionKind using the weighted policy spec
// §4.7 describes: consecutive BDI failures bias toward SELF_REPAIR, LLM
// gateway errors bias toward COOLDOWN, absence of fresh perceptions biases
// toward RESEARCH. Each weight is then scaled by 0.5 plus the EMA score
// recorded for that kind (a kind with no recorded score keeps its weight);
// remaining ties go to the earlier kind in bestKind's fixed order.
func (in *Intelligence) Decide(p Perception) Decision {
	weights := map[DecisionKind]float64{
		DecisionBDIDelegate: 1.0,
		DecisionResearch:    0.5,
		DecisionSelfRepair:  0.2,
		DecisionCooldown:    0.2,
	}
	if p.ConsecutiveBDIFailures >= 2 {
		weights[DecisionSelfRepair] += float64(p.ConsecutiveBDIFailures)
	}
	if p.GatewayErrorsRecent > 0 {
		weights[DecisionCooldown] += float64(p.GatewayErrorsRecent)
	}
	if len(p.UnresolvedBeliefs) == 0 {
		weights[DecisionResearch] += 1.0
	}

	in.mu.Lock()
	for kind := range weights {
		if score, ok := in.scores[kind]; ok {
			weights[kind] *= 0.5 + score // neutral score 0.5 leaves weight unchanged
		}
	}
	in.mu.Unlock()

	best := bestKind(weights)
	switch best {
	case DecisionSelfRepair:
		return Decision{Kind: DecisionSelfRepair, Target: "unknown"}
	case DecisionCooldown:
		return Decision{Kind: DecisionCooldown, Seconds: 60}
	case DecisionResearch:
		return Decision{Kind: DecisionResearch, Query: "system health"}
	default:
		return Decision{Kind: DecisionBDIDelegate, SubGoal: "continue pending goals"}
	}
}

func bestKind(weights map[DecisionKind]float64) DecisionKind {
	var best DecisionKind
	bestWeight := -1.0
	for _, kind := range []DecisionKind{DecisionBDIDelegate, DecisionResearch, DecisionSelfRepair, DecisionCooldown} {
		if w := weights[kind]; w > bestWeight {
			bestWeight = w
			best = kind
		}
	}
	return best
}

// Act dispatches decision to the appropriate collaborator (spec §4.7 Act).
func (in *Intelligence) Act(ctx context.Context, decision Decision) error {
	in.mu.Lock()
	if in.inFlight {
		in.mu.Unlock()
		return errs.New(errs.KindInvalidRequest, "agint: a decision is already in flight")
	}
	in.inFlight = true
	in.mu.Unlock()
	defer func() {
		in.mu.Lock()
		in.inFlight = false
		in.mu.Unlock()
	}()

	var err error
	switch decision.Kind {
	case DecisionBDIDelegate:
		if in.BDI != nil {
			err = in.BDI.RunGoalDescription(ctx, decision.SubGoal, 1)
		}
	case DecisionResearch:
		if in.Research != nil {
			err = in.Research.Research(ctx, decision.Query)
		}
	case DecisionSelfRepair:
		if in.SelfRepair != nil {
			_, err = in.SelfRepair.RequestImprovement(ctx, decision.Target, "self-repair requested by intelligence layer", 5, true)
		}
	case DecisionCooldown:
		seconds := decision.Seconds
		if seconds <= 0 {
			seconds = 60
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(time.Duration(seconds) * time.Second):
		}
	default:
		err = errs.Newf(errs.KindUnknown, "agint: unhandled decision kind %q", decision.Kind)
	}

	in.record(decision.Kind, err == nil)
	if decision.Kind == DecisionBDIDelegate {
		if err != nil {
			in.consecutiveBDIFailures++
		} else {
			in.consecutiveBDIFailures = 0
		}
	}
	if errs.KindOf(err) == errs.KindNetworkError || errs.KindOf(err) == errs.KindRateLimited {
		in.gatewayErrorsRecent++
	}
	return err
}

// Cycle runs one full Perceive-Orient/Decide-Act iteration.
func (in *Intelligence) Cycle(ctx context.Context) (Decision, error) {
	p, err := in.Perceive(ctx)
	if err != nil {
		return Decision{}, err
	}
	decision := in.Decide(p)
	err = in.Act(ctx, decision)
	return decision, err
}

func (in *Intelligence) record(kind DecisionKind, success bool) {
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	prev, ok := in.scores[kind]
	if !ok {
		prev = 0.5
	}
	in.scores[kind] = emaAlpha*outcome + (1-emaAlpha)*prev
}

// Score returns the current EMA success estimate for kind, or 0.5 if no
// outcome has been recorded yet.
func (in *Intelligence) Score(kind DecisionKind) float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	if s, ok := in.scores[kind]; ok {
		return s
	}
	return 0.5
}
