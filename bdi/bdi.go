// Package bdi implements the Belief-Desire-Intention planner/executor
// (spec §4.6, C7): beliefs and a goal become an LLM-authored plan, which is
// executed action by action over registered tools, with failure
// classification and recovery delegated to package recovery. Grounded on
// the teacher's planner request/response loop shape (runtime/agent model
// and tools packages) and on the tagged-union Action dispatch called for by
// spec §9.
package bdi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindforge-ai/mindforge/beliefs"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/goals"
	"github.com/mindforge-ai/mindforge/llm"
	"github.com/mindforge-ai/mindforge/recovery"
	"github.com/mindforge-ai/mindforge/telemetry"
	"github.com/mindforge-ai/mindforge/tools"
)

const maxPlanAttempts = 3 // spec §4.6 step 2: "After three total attempts, classify as PLANNING_ERROR"
const maxActionRetries = 3

// Executor runs the BDI plan/repair/execute/normalize/recover loop for a
// single active goal.
type Executor struct {
	Gateway       *llm.Gateway
	Registry      *tools.Registry
	Beliefs       *beliefs.Store
	Goals         *goals.Queue
	Recovery      *recovery.Framework
	Aliases       AliasMap
	WorkspaceRoot string
	AgentID       string
	Log           telemetry.Logger
	BaseDelay     time.Duration
	MaxDelay      time.Duration
}

func (e *Executor) log() telemetry.Logger {
	if e.Log == nil {
		return telemetry.NewNoopLogger()
	}
	return e.Log
}

// RunGoal executes the full plan/repair/execute loop for goal until it
// reaches ACHIEVED or FAILED, returning the final Plan.
func (e *Executor) RunGoal(ctx context.Context, goal goals.Goal) (goals.Plan, error) {
	plan, err := e.Plan(ctx, goal)
	if err != nil {
		_ = e.Goals.SetStatus(goal.ID, goals.GoalFailed)
		return goals.Plan{}, err
	}
	plan.Status = goals.PlanExecuting

	for {
		eligible := plan.EligibleActions()
		if len(eligible) == 0 {
			if plan.Status == goals.PlanDone {
				_ = e.Goals.SetStatus(goal.ID, goals.GoalAchieved)
				return plan, nil
			}
			// No eligible action and not done: either finished with a
			// failure already recorded, or the DAG is exhausted without
			// reaching every action (shouldn't happen post-validation).
			_ = e.Goals.SetStatus(goal.ID, goals.GoalFailed)
			return plan, errs.New(errs.KindPlanningError, "bdi: no eligible action and plan not done")
		}

		idx := eligible[0]
		if err := e.executeWithRecovery(ctx, &plan, idx, goal); err != nil {
			_ = e.Goals.SetStatus(goal.ID, goals.GoalFailed)
			return plan, err
		}
	}
}

// RunGoalDescription pushes a new goal onto the queue and runs it to
// completion, satisfying agint.BDIRunner so the intelligence layer can
// delegate a sub-goal without importing this package directly (spec §9).
func (e *Executor) RunGoalDescription(ctx context.Context, description string, priority int) error {
	goal := goals.NewGoal(description, priority, time.Now())
	e.Goals.Push(goal)
	_, err := e.RunGoal(ctx, goal)
	return err
}

// Plan prompts the LLM for a JSON action list for goal, validating and
// repairing up to maxPlanAttempts total attempts (spec §4.6 steps 1-2).
func (e *Executor) Plan(ctx context.Context, goal goals.Goal) (goals.Plan, error) {
	toolSchemas := e.Registry.List()
	beliefSlice, err := e.Beliefs.Query(ctx, "")
	if err != nil {
		return goals.Plan{}, err
	}

	var lastText string
	var lastErr error
	for attempt := 1; attempt <= maxPlanAttempts; attempt++ {
		prompt := planPrompt(goal, beliefSlice, toolSchemas, lastErr, lastText)
		resp, _, err := e.Gateway.Generate(ctx, llm.Request{
			Messages: []llm.Message{llm.NewSystemMessage(planSystemPrompt), llm.NewUserMessage(prompt)},
			JSONMode: true,
		})
		if err != nil {
			return goals.Plan{}, err
		}
		lastText = resp.Text

		actions, parseErr := parseActions(resp.Text)
		if parseErr != nil {
			lastErr = parseErr
		} else if validateErr := validateActions(actions, e.Registry); validateErr != nil {
			lastErr = validateErr
		} else {
			return goals.NewPlan(goal.ID, actions)
		}
		e.log().Warn(ctx, "bdi: plan validation failed, repairing", "attempt", attempt, "error", lastErr)
	}
	return goals.Plan{}, errs.Wrap(errs.KindPlanningError, lastErr, "bdi: plan failed validation after repair attempts")
}

const planSystemPrompt = "You are a planner. Respond only with a JSON array of actions. " +
	"Each action has fields: type (one of TOOL_CALL, UPDATE_BELIEF, DECOMPOSE_GOAL, " +
	"EXTRACT_PARAMS_FROM_GOAL, REPORT), params (object), deps (array of integer indices " +
	"into this same array). For TOOL_CALL, params must include tool_id and args."

func planPrompt(goal goals.Goal, beliefSlice []beliefs.Belief, toolSchemas []tools.Descriptor, lastErr error, lastText string) string {
	base := fmt.Sprintf("Goal: %s\nBeliefs: %s\nTools: %s\n",
		goal.Description, summarizeBeliefs(beliefSlice), summarizeTools(toolSchemas))
	if lastErr == nil {
		return base
	}
	return base + fmt.Sprintf("\nThe previous plan failed validation with error: %v\nPrevious plan: %s\nProduce a corrected plan.", lastErr, lastText)
}

func summarizeBeliefs(bs []beliefs.Belief) string {
	out := "["
	for i, b := range bs {
		if i > 0 {
			out += ", "
		}
		out += b.Key
	}
	return out + "]"
}

func summarizeTools(ts []tools.Descriptor) string {
	out := "["
	for i, t := range ts {
		if i > 0 {
			out += ", "
		}
		out += string(t.ID)
	}
	return out + "]"
}

func parseActions(text string) ([]goals.Action, error) {
	var actions []goals.Action
	if err := json.Unmarshal([]byte(text), &actions); err != nil {
		return nil, fmt.Errorf("bdi: parse action list: %w", err)
	}
	return actions, nil
}

var validActionTypes = map[goals.ActionType]bool{
	goals.ActionToolCall:              true,
	goals.ActionUpdateBelief:          true,
	goals.ActionDecomposeGoal:         true,
	goals.ActionExtractParamsFromGoal: true,
	goals.ActionReport:                true,
}

func validateActions(actions []goals.Action, registry *tools.Registry) error {
	if len(actions) == 0 {
		return errs.New(errs.KindPlanningError, "bdi: plan must contain at least one action")
	}
	for i, a := range actions {
		if !validActionTypes[a.Type] {
			return errs.Newf(errs.KindPlanningError, "bdi: action %d has unknown type %q", i, a.Type)
		}
		if a.Type == goals.ActionToolCall {
			toolID, _ := a.Params["tool_id"].(string)
			if toolID == "" {
				return errs.Newf(errs.KindPlanningError, "bdi: action %d is TOOL_CALL without tool_id", i)
			}
			if _, ok := registry.Describe(tools.ID(toolID)); !ok {
				return errs.Newf(errs.KindPlanningError, "bdi: action %d references unknown or disabled tool %q", i, toolID)
			}
		}
	}
	return goals.ValidateDAG(actions)
}
