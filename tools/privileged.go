package tools

import (
	"context"
	"encoding/json"

	"github.com/mindforge-ai/mindforge/errs"
)

// Privileged tool identifiers (spec §4.3).
const (
	IDCoordinatorRequestImprovement ID = "coordinator.request_improvement"
	IDInvokeSelfImprovementWorker   ID = "siw.invoke"
)

// BacklogEnqueuer is implemented by the coordinator (C9) and invoked by the
// CoordinatorRequestImprovement tool. Kept as an interface here so the tools
// package never imports the coordinator package.
type BacklogEnqueuer interface {
	RequestImprovement(ctx context.Context, targetComponent, suggestion string, priority int, requiresApproval bool) (string, error)
}

// SIWInvoker is implemented by the coordinator's subprocess launcher (C9/C5)
// and invoked by the InvokeSelfImprovementWorker tool.
type SIWInvoker interface {
	Invoke(ctx context.Context, backlogItemID string) (SIWResult, error)
}

// SIWResult summarizes a completed self-improvement worker invocation.
type SIWResult struct {
	Success     bool   `json:"success"`
	Promoted    bool   `json:"promoted"`
	Summary     string `json:"summary"`
	CritiqueMsg string `json:"critique_message,omitempty"`
}

type requestImprovementArgs struct {
	TargetComponent  string `json:"target_component"`
	Suggestion       string `json:"suggestion"`
	Priority         int    `json:"priority"`
	RequiresApproval bool   `json:"requires_approval"`
}

type requestImprovementResult struct {
	BacklogItemID string `json:"backlog_item_id"`
}

// NewCoordinatorRequestImprovementTool builds the privileged tool that
// enqueues a backlog item (spec §4.3, §4.8 request_improvement operation).
func NewCoordinatorRequestImprovementTool(enqueuer BacklogEnqueuer, allowedAgents []string) Tool {
	descriptor := Descriptor{
		ID:          IDCoordinatorRequestImprovement,
		ModuleRef:   "coordinator",
		Description: "Enqueues a backlog item proposing an improvement to a named component.",
		Enabled:     true,
		AccessControl: AccessControl{
			AllowedAgents: allowedAgents,
		},
		Category: "privileged",
		Version:  "1",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["target_component", "suggestion", "priority"],
			"properties": {
				"target_component": {"type": "string", "minLength": 1},
				"suggestion": {"type": "string", "minLength": 1},
				"priority": {"type": "integer"},
				"requires_approval": {"type": "boolean"}
			}
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["backlog_item_id"],
			"properties": {"backlog_item_id": {"type": "string", "minLength": 1}}
		}`),
	}
	handler := func(toolCtx Context, args json.RawMessage) (json.RawMessage, error) {
		var in requestImprovementArgs
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, errs.Wrap(errs.KindInvalidParameters, err, "tools: decode request_improvement args")
		}
		id, err := enqueuer.RequestImprovement(context.Background(), in.TargetComponent, in.Suggestion, in.Priority, in.RequiresApproval)
		if err != nil {
			return nil, err
		}
		return json.Marshal(requestImprovementResult{BacklogItemID: id})
	}
	return Tool{Descriptor: descriptor, Handler: handler}
}

type invokeSIWArgs struct {
	BacklogItemID string `json:"backlog_item_id"`
}

// NewInvokeSelfImprovementWorkerTool builds the privileged tool that spawns
// the SIW subprocess against a backlog item (spec §4.9).
func NewInvokeSelfImprovementWorkerTool(invoker SIWInvoker, allowedAgents []string) Tool {
	descriptor := Descriptor{
		ID:          IDInvokeSelfImprovementWorker,
		ModuleRef:   "siw",
		Description: "Spawns the self-improvement worker subprocess against a backlog item.",
		Enabled:     true,
		AccessControl: AccessControl{
			AllowedAgents: allowedAgents,
		},
		Category: "privileged",
		Version:  "1",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["backlog_item_id"],
			"properties": {"backlog_item_id": {"type": "string", "minLength": 1}}
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["success", "promoted", "summary"],
			"properties": {
				"success": {"type": "boolean"},
				"promoted": {"type": "boolean"},
				"summary": {"type": "string"},
				"critique_message": {"type": "string"}
			}
		}`),
	}
	handler := func(toolCtx Context, args json.RawMessage) (json.RawMessage, error) {
		var in invokeSIWArgs
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, errs.Wrap(errs.KindInvalidParameters, err, "tools: decode siw.invoke args")
		}
		result, err := invoker.Invoke(context.Background(), in.BacklogItemID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}
	return Tool{Descriptor: descriptor, Handler: handler}
}
