package bdi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/goals"
	"github.com/mindforge-ai/mindforge/llm"
	"github.com/mindforge-ai/mindforge/recovery"
	"github.com/mindforge-ai/mindforge/tools"
)

// executeWithRecovery normalizes params, executes the action at idx, and on
// failure classifies the error and applies the selected recovery strategy
// (spec §4.6 step 5, §4.11). Returns a non-nil error only when recovery is
// exhausted and the goal must fail.
func (e *Executor) executeWithRecovery(ctx context.Context, plan *goals.Plan, idx int, goal goals.Goal) error {
	action := &plan.Actions[idx]
	if err := NormalizeParams(action, e.WorkspaceRoot, e.Aliases); err != nil {
		_ = plan.Mark(idx, goals.ActionFailed, string(errs.KindOf(err)))
		return err
	}

	action.Status = goals.ActionRunning
	for attempt := 1; attempt <= maxActionRetries; attempt++ {
		err := e.dispatch(ctx, plan, idx, goal)
		if err == nil {
			_ = plan.Mark(idx, goals.ActionDone, "")
			return nil
		}

		kind := recovery.ClassifyErrsKind(errs.KindOf(err))
		strategies := e.Recovery.Select(kind)
		strategy := strategies[0]
		e.log().Warn(ctx, "bdi: action failed, applying recovery strategy",
			"action_index", idx, "kind", kind, "strategy", strategy, "error", err)

		switch strategy {
		case recovery.StrategyRetryWithDelay:
			if attempt == maxActionRetries {
				e.Recovery.Record(kind, strategy, false)
				_ = plan.Mark(idx, goals.ActionFailed, string(errs.KindOf(err)))
				return err
			}
			delay := recovery.Backoff(e.delayBase(), e.delayMax(), attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		default:
			e.Recovery.Record(kind, strategy, false)
			_ = plan.Mark(idx, goals.ActionFailed, string(errs.KindOf(err)))
			return err
		}
	}
	_ = plan.Mark(idx, goals.ActionFailed, "")
	return errs.New(errs.KindUnknown, "bdi: action retries exhausted")
}

func (e *Executor) delayBase() time.Duration {
	if e.BaseDelay > 0 {
		return e.BaseDelay
	}
	return 500 * time.Millisecond
}

func (e *Executor) delayMax() time.Duration {
	if e.MaxDelay > 0 {
		return e.MaxDelay
	}
	return 30 * time.Second
}

// dispatch performs the tagged-union switch over Action.Type (spec §9: "the
// Action type is a tagged union ... dispatch is a switch over the tag, not
// virtual calls").
func (e *Executor) dispatch(ctx context.Context, plan *goals.Plan, idx int, goal goals.Goal) error {
	action := &plan.Actions[idx]
	switch action.Type {
	case goals.ActionToolCall:
		return e.dispatchToolCall(ctx, action)
	case goals.ActionUpdateBelief:
		return e.dispatchUpdateBelief(ctx, action)
	case goals.ActionDecomposeGoal:
		return e.dispatchDecomposeGoal(ctx, action, goal)
	case goals.ActionExtractParamsFromGoal:
		return e.dispatchExtractParams(ctx, plan, action, goal)
	case goals.ActionReport:
		return nil // terminal action; success marks the goal ACHIEVED in RunGoal
	default:
		return errs.Newf(errs.KindPlanningError, "bdi: unhandled action type %q", action.Type)
	}
}

func (e *Executor) dispatchToolCall(ctx context.Context, action *goals.Action) error {
	toolID, _ := action.Params["tool_id"].(string)
	argsVal := action.Params["args"]
	argsJSON, err := json.Marshal(argsVal)
	if err != nil {
		return errs.Wrap(errs.KindInvalidParameters, err, "bdi: encode tool args")
	}
	_, err = e.Registry.Call(ctx, tools.Context{AgentID: e.AgentID}, tools.ID(toolID), argsJSON)
	return err
}

func (e *Executor) dispatchUpdateBelief(ctx context.Context, action *goals.Action) error {
	key, _ := action.Params["key"].(string)
	if key == "" {
		return errs.New(errs.KindInvalidParameters, "bdi: UPDATE_BELIEF requires a key")
	}
	confidence, _ := action.Params["confidence"].(float64)
	source, _ := action.Params["source"].(string)
	if source == "" {
		source = "bdi"
	}
	valueJSON, err := json.Marshal(action.Params["value"])
	if err != nil {
		return errs.Wrap(errs.KindInvalidParameters, err, "bdi: encode belief value")
	}
	return e.Beliefs.Add(ctx, key, valueJSON, confidence, source, false)
}

func (e *Executor) dispatchDecomposeGoal(_ context.Context, action *goals.Action, parent goals.Goal) error {
	subDescriptions, _ := action.Params["subgoals"].([]any)
	for _, raw := range subDescriptions {
		desc, ok := raw.(string)
		if !ok || desc == "" {
			continue
		}
		sub := goals.NewGoal(desc, parent.Priority, time.Now())
		sub.ParentID = parent.ID
		e.Goals.Push(sub)
	}
	return nil
}

// dispatchExtractParams asks the LLM for a JSON object mapping required
// parameter names to values extracted from the goal description, then fills
// a later action's Params with the result (spec §4.6 step 3: "used when the
// planner under-specifies arguments").
func (e *Executor) dispatchExtractParams(ctx context.Context, plan *goals.Plan, action *goals.Action, goal goals.Goal) error {
	requiredRaw, _ := action.Params["required_params"].([]any)
	targetIdx, _ := action.Params["target_action_index"].(float64)
	if len(requiredRaw) == 0 {
		return errs.New(errs.KindInvalidParameters, "bdi: EXTRACT_PARAMS_FROM_GOAL requires required_params")
	}
	required := make([]string, 0, len(requiredRaw))
	for _, r := range requiredRaw {
		if s, ok := r.(string); ok {
			required = append(required, s)
		}
	}

	prompt := fmt.Sprintf("Goal: %s\nExtract a JSON object with exactly these keys: %v", goal.Description, required)
	resp, _, err := e.Gateway.Generate(ctx, llm.Request{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
		JSONMode: true,
	})
	if err != nil {
		return err
	}
	var extracted map[string]any
	if err := json.Unmarshal([]byte(resp.Text), &extracted); err != nil {
		return errs.Wrap(errs.KindInvalidParameters, err, "bdi: parse extracted params")
	}

	ti := int(targetIdx)
	if ti < 0 || ti >= len(plan.Actions) {
		return errs.Newf(errs.KindInvalidParameters, "bdi: target_action_index %d out of range", ti)
	}
	if plan.Actions[ti].Params == nil {
		plan.Actions[ti].Params = make(map[string]any)
	}
	for _, key := range required {
		if v, ok := extracted[key]; ok {
			plan.Actions[ti].Params[key] = v
		}
	}
	return nil
}
