package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/telemetry"
)

// Registry is the catalog of callable tools, mediating every call through
// schema validation and glob-based access control (spec §4.3). Tools are
// added one at a time with Register; the registry does not read descriptor
// files itself and does not verify descriptor signatures.
type Registry struct {
	mu    sync.RWMutex
	tools map[ID]*entry
	log   telemetry.Logger
}

type entry struct {
	tool         Tool
	inputSchema  *jsonschema.Schema
	outputSchema *jsonschema.Schema
}

// New constructs an empty Registry. log defaults to a no-op logger when nil.
func New(log telemetry.Logger) *Registry {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Registry{tools: make(map[ID]*entry), log: log}
}

// Register adds or replaces a tool. A non-empty InputSchema/OutputSchema is
// compiled eagerly so malformed schemas fail at registration time rather
// than on the first call.
func (r *Registry) Register(t Tool) error {
	if t.Descriptor.ID == "" {
		return errs.New(errs.KindInvalidRequest, "tools: descriptor id is required")
	}
	if t.Handler == nil {
		return errs.Newf(errs.KindInvalidRequest, "tools: tool %q has no handler", t.Descriptor.ID)
	}
	inSchema, err := compileSchema(string(t.Descriptor.ID)+"#input", t.Descriptor.InputSchema)
	if err != nil {
		return errs.Wrap(errs.KindInvalidRequest, err, "tools: compile input schema")
	}
	outSchema, err := compileSchema(string(t.Descriptor.ID)+"#output", t.Descriptor.OutputSchema)
	if err != nil {
		return errs.Wrap(errs.KindInvalidRequest, err, "tools: compile output schema")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Descriptor.ID] = &entry{tool: t, inputSchema: inSchema, outputSchema: outSchema}
	return nil
}

func compileSchema(resourceName string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(resourceName)
}

// Describe returns the descriptor for id, excluding disabled tools (spec
// §4.3: "Disabled tools are not listed.").
func (r *Registry) Describe(id ID) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[id]
	if !ok || !e.tool.Descriptor.Enabled {
		return Descriptor{}, false
	}
	return e.tool.Descriptor, true
}

// List returns the descriptors of every enabled tool, sorted by ID.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		if e.tool.Descriptor.Enabled {
			out = append(out, e.tool.Descriptor)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Call validates access control and the input schema, invokes the handler,
// then validates the output schema before returning the result.
func (r *Registry) Call(ctx context.Context, toolCtx Context, id ID, args json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	e, ok := r.tools[id]
	r.mu.RUnlock()
	if !ok || !e.tool.Descriptor.Enabled {
		return nil, errs.Newf(errs.KindInvalidRequest, "tools: unknown or disabled tool %q", id)
	}
	if !allowed(e.tool.Descriptor.AccessControl.AllowedAgents, toolCtx.AgentID) {
		return nil, newPermissionDenied(toolCtx.AgentID, id)
	}
	if err := validateAgainst(e.inputSchema, args); err != nil {
		return nil, errs.Wrap(errs.KindSchemaViolation, err, "tools: input schema violation")
	}

	result, err := e.tool.Handler(toolCtx, args)
	if err != nil {
		return nil, err
	}
	if err := validateAgainst(e.outputSchema, result); err != nil {
		return nil, errs.Wrap(errs.KindSchemaViolation, err, "tools: output schema violation")
	}
	return result, nil
}

func validateAgainst(schema *jsonschema.Schema, data json.RawMessage) error {
	if schema == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return schema.Validate(doc)
}

// allowed reports whether agentID matches any of the allowed glob patterns.
// An empty pattern list denies everyone; this mirrors the teacher's
// fail-closed posture for unconfigured access control.
func allowed(patterns []string, agentID string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, agentID); err == nil && ok {
			return true
		}
	}
	return false
}
