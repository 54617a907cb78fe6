// Package goals implements the Plan/Goal Manager (spec §4.5, C6): a
// priority goal queue ordered by (priority desc, created_ts asc) and a
// plan model whose actions form a DAG over `deps`. Grounded on the
// teacher's tagged-union design note (spec §9: "flatten to tagged
// variants... dispatch is a switch over the tag, not virtual calls") and on
// the priority-ordering pattern visible in the teacher's backlog-adjacent
// scheduling code.
package goals

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mindforge-ai/mindforge/errs"
)

// GoalStatus is the lifecycle state of a Goal (spec §3).
type GoalStatus string

const (
	GoalPending   GoalStatus = "PENDING"
	GoalActive    GoalStatus = "ACTIVE"
	GoalAchieved  GoalStatus = "ACHIEVED"
	GoalFailed    GoalStatus = "FAILED"
	GoalCancelled GoalStatus = "CANCELLED"
)

// Goal is a unit of intent the BDI layer works toward (spec §3).
type Goal struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      GoalStatus `json:"status"`
	ParentID    string     `json:"parent_id,omitempty"`
	CreatedTs   time.Time  `json:"created_ts"`
}

// NewGoal constructs a PENDING Goal with a fresh id.
func NewGoal(description string, priority int, now time.Time) Goal {
	return Goal{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    priority,
		Status:      GoalPending,
		CreatedTs:   now,
	}
}

// ActionType tags the kind of an Action (spec §9: a tagged union, dispatch
// by switch, not virtual calls).
type ActionType string

const (
	ActionToolCall              ActionType = "TOOL_CALL"
	ActionUpdateBelief          ActionType = "UPDATE_BELIEF"
	ActionDecomposeGoal         ActionType = "DECOMPOSE_GOAL"
	ActionExtractParamsFromGoal ActionType = "EXTRACT_PARAMS_FROM_GOAL"
	ActionReport                ActionType = "REPORT"
)

// ActionStatus is the lifecycle state of one Action within a Plan.
type ActionStatus string

const (
	ActionPending ActionStatus = "PENDING"
	ActionRunning ActionStatus = "RUNNING"
	ActionDone    ActionStatus = "DONE"
	ActionFailed  ActionStatus = "FAILED"
)

// Action is one step of a Plan (spec §3). Params holds type-specific
// arguments; for ActionToolCall, Params["tool_id"] and Params["args"] carry
// the tool identifier and its JSON argument object.
type Action struct {
	Type          ActionType     `json:"type"`
	Params        map[string]any `json:"params"`
	Deps          []int          `json:"deps"`
	Status        ActionStatus   `json:"status"`
	Attempts      int            `json:"attempts"`
	LastErrorKind string         `json:"last_error_kind,omitempty"`
}

// PlanStatus is the lifecycle state of a Plan.
type PlanStatus string

const (
	PlanPlanning  PlanStatus = "PLANNING"
	PlanExecuting PlanStatus = "EXECUTING"
	PlanDone      PlanStatus = "DONE"
	PlanFailed    PlanStatus = "FAILED"
)

// Plan is an ordered sequence of Actions pursuing one Goal (spec §3).
// Cursor is retained for compatibility with a strictly sequential reading
// of the plan, but eligibility for execution is determined by the DAG
// formed by each Action's Deps, per EligibleActions.
type Plan struct {
	ID     string     `json:"id"`
	GoalID string     `json:"goal_id"`
	Actions []Action  `json:"actions"`
	Cursor int        `json:"cursor"`
	Status PlanStatus `json:"status"`
}

// NewPlan constructs a PLANNING plan for goalID with the given actions,
// validating that Deps form an acyclic graph (spec §8: "Plan with cyclic
// deps is rejected at validation with PlanningError").
func NewPlan(goalID string, actions []Action) (Plan, error) {
	if err := ValidateDAG(actions); err != nil {
		return Plan{}, err
	}
	return Plan{
		ID:      uuid.NewString(),
		GoalID:  goalID,
		Actions: actions,
		Status:  PlanPlanning,
	}, nil
}

// ValidateDAG reports a PlanningError if actions' Deps contain a cycle or an
// out-of-range index.
func ValidateDAG(actions []Action) error {
	n := len(actions)
	for i, a := range actions {
		for _, d := range a.Deps {
			if d < 0 || d >= n || d == i {
				return errs.Newf(errs.KindPlanningError, "goals: action %d has invalid dependency index %d", i, d)
			}
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make([]int, n)
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visited:
			return nil
		case visiting:
			return errs.New(errs.KindPlanningError, "goals: plan dependency graph contains a cycle")
		}
		state[i] = visiting
		for _, d := range actions[i].Deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[i] = visited
		return nil
	}
	for i := range actions {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

// EligibleActions returns the indices of actions that are PENDING and whose
// every dependency is DONE (spec §4.5: "eligible actions are those with all
// deps in status DONE").
func (p *Plan) EligibleActions() []int {
	var out []int
	for i, a := range p.Actions {
		if a.Status != ActionPending {
			continue
		}
		ready := true
		for _, d := range a.Deps {
			if p.Actions[d].Status != ActionDone {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, i)
		}
	}
	return out
}

// Mark transitions action i to status, recording errorKind on failure (spec
// §4.5: "the manager provides mark(action, status, error_kind?)"). Cursor
// advances past i only when the marked status is DONE and i == Cursor,
// preserving the "cursor advances only after the current action reports
// success" invariant (spec §3) for callers that read Plan sequentially.
func (p *Plan) Mark(i int, status ActionStatus, errorKind string) error {
	if i < 0 || i >= len(p.Actions) {
		return errs.Newf(errs.KindInvalidParameters, "goals: action index %d out of range", i)
	}
	p.Actions[i].Status = status
	if status == ActionFailed {
		p.Actions[i].Attempts++
		p.Actions[i].LastErrorKind = errorKind
	}
	if status == ActionDone && i == p.Cursor {
		p.Cursor++
	}
	if p.allDone() {
		p.Status = PlanDone
	} else if p.anyFailed() {
		p.Status = PlanFailed
	}
	return nil
}

func (p *Plan) allDone() bool {
	for _, a := range p.Actions {
		if a.Status != ActionDone {
			return false
		}
	}
	return true
}

func (p *Plan) anyFailed() bool {
	for _, a := range p.Actions {
		if a.Status == ActionFailed {
			return true
		}
	}
	return false
}

// ResetInFlight resets any RUNNING action back to PENDING and increments its
// attempts; the plan's Status and Cursor are left unchanged. Used on process
// resume (spec §4.5: "on process resume,
// any EXECUTING plan has its in-flight action reset to PENDING with
// attempts incremented").
func (p *Plan) ResetInFlight() {
	for i := range p.Actions {
		if p.Actions[i].Status == ActionRunning {
			p.Actions[i].Status = ActionPending
			p.Actions[i].Attempts++
		}
	}
}

// Queue is a priority goal queue ordered by (priority desc, created_ts asc)
// (spec §4.5).
type Queue struct {
	goals []Goal
}

// NewQueue constructs an empty Queue.
func NewQueue() *Queue { return &Queue{} }

// Push adds g to the queue.
func (q *Queue) Push(g Goal) { q.goals = append(q.goals, g) }

// All returns every goal currently tracked, in queue order.
func (q *Queue) All() []Goal { return append([]Goal(nil), q.goals...) }

// NextGoal atomically transitions the highest-priority PENDING goal to
// ACTIVE and returns it (spec §4.5: "next_goal() atomically transitions the
// head from PENDING to ACTIVE"). Returns false if no PENDING goal exists.
func (q *Queue) NextGoal() (Goal, bool) {
	q.sortPending()
	for i := range q.goals {
		if q.goals[i].Status == GoalPending {
			q.goals[i].Status = GoalActive
			return q.goals[i], true
		}
	}
	return Goal{}, false
}

func (q *Queue) sortPending() {
	sort.SliceStable(q.goals, func(i, j int) bool {
		if q.goals[i].Priority != q.goals[j].Priority {
			return q.goals[i].Priority > q.goals[j].Priority
		}
		return q.goals[i].CreatedTs.Before(q.goals[j].CreatedTs)
	})
}

// SetStatus transitions the goal with id to status. Enforces the invariant
// that status transitions are monotone except PENDING<->ACTIVE (spec §3).
func (q *Queue) SetStatus(id string, status GoalStatus) error {
	for i := range q.goals {
		if q.goals[i].ID != id {
			continue
		}
		if !monotoneTransition(q.goals[i].Status, status) {
			return errs.Newf(errs.KindInvalidParameters, "goals: invalid status transition %s -> %s", q.goals[i].Status, status)
		}
		q.goals[i].Status = status
		return nil
	}
	return errs.Newf(errs.KindInvalidParameters, "goals: unknown goal %q", id)
}

func monotoneTransition(from, to GoalStatus) bool {
	if from == to {
		return true
	}
	if from == GoalPending && to == GoalActive {
		return true
	}
	if from == GoalActive && to == GoalPending {
		return true
	}
	switch from {
	case GoalAchieved, GoalFailed, GoalCancelled:
		return false
	}
	switch to {
	case GoalAchieved, GoalFailed, GoalCancelled:
		return true
	}
	return false
}
