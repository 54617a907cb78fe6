// Package tools implements the tool registry and tool interface (spec
// §4.3): a catalog of callable capabilities with JSON-schema-validated
// input/output, glob-based access control, and an enable flag, grounded on
// the teacher's runtime/agent/tools package (ToolSpec/Ident) and its
// schema-validation helper in registry/service.go.
package tools

import (
	"encoding/json"

	"github.com/mindforge-ai/mindforge/errs"
)

// ID is a fully qualified tool identifier.
type ID string

// AccessControl restricts which agent identifiers may invoke a tool. Patterns
// are matched with path.Match (spec §4.3: "allowed_agents (glob list)").
type AccessControl struct {
	AllowedAgents []string `json:"allowed_agents"`
}

// Descriptor is the catalog entry for one tool (spec §3 "Tool descriptor").
type Descriptor struct {
	ID            ID              `json:"id"`
	ModuleRef     string          `json:"module_ref"`
	Description   string          `json:"description"`
	InputSchema   json.RawMessage `json:"input_schema"`
	OutputSchema  json.RawMessage `json:"output_schema"`
	Enabled       bool            `json:"enabled"`
	AccessControl AccessControl   `json:"access_control"`
	Category      string          `json:"category"`
	Version       string          `json:"version"`
}

// Handler executes a tool call on behalf of an agent. Implementations
// receive already schema-validated args and return a result that the
// registry validates against OutputSchema before handing it back.
type Handler func(ctx Context, args json.RawMessage) (json.RawMessage, error)

// Context carries the caller identity and correlation metadata through a
// tool invocation, independent of context.Context (which is threaded
// separately for cancellation/deadlines).
type Context struct {
	AgentID       string
	CorrelationID string
}

// Tool pairs a Descriptor with its Handler.
type Tool struct {
	Descriptor Descriptor
	Handler    Handler
}

// newPermissionDenied builds a PermissionDenied error naming the offending agent.
func newPermissionDenied(agentID string, toolID ID) error {
	return errs.Newf(errs.KindPermissionDenied, "tools: agent %q is not permitted to call %q", agentID, toolID)
}
