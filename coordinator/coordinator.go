// Package coordinator implements the Coordinator & Autonomous Tactical Loop
// (spec §4.8, C9): it owns the backlog, a per-component cooldown map, a
// resource guard, and the HITL approval gate, and drives SIW subprocess
// invocations through an injected tools.SIWInvoker so this package never
// imports the siw package directly (spec §9: "model as interfaces... inject
// at construction").
package coordinator

import (
	"context"
	"time"

	"github.com/mindforge-ai/mindforge/backlog"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/telemetry"
	"github.com/mindforge-ai/mindforge/tools"
)

// Config controls the tactical loop's cooldown and critical-component set
// (spec §4.8).
type Config struct {
	DefaultCooldown    time.Duration
	CriticalComponents []string
}

// Coordinator is the C9 component.
type Coordinator struct {
	backlog  *backlog.Store
	cooldown CooldownCache
	guard    ResourceGuard
	invoker  tools.SIWInvoker
	cfg      Config
	log      telemetry.Logger
}

// New constructs a Coordinator. guard and cooldown may be nil, in which case
// a no-op guard (always OK) and an in-memory cooldown cache are used.
func New(store *backlog.Store, invoker tools.SIWInvoker, guard ResourceGuard, cooldown CooldownCache, cfg Config, log telemetry.Logger) *Coordinator {
	if cooldown == nil {
		cooldown = NewMemCooldown()
	}
	if guard == nil {
		guard = DefaultGuard{}
	}
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Coordinator{backlog: store, cooldown: cooldown, guard: guard, invoker: invoker, cfg: cfg, log: log}
}

// isCritical reports whether component requires HITL approval (spec §4.8
// "items whose target_component is in the configured critical set").
func (c *Coordinator) isCritical(component string) bool {
	for _, comp := range c.cfg.CriticalComponents {
		if comp == component {
			return true
		}
	}
	return false
}

// Enqueue adds item directly to the backlog, honoring the HITL gate by
// forcing RequiresApproval when the target component is critical.
func (c *Coordinator) Enqueue(item backlog.Item) (string, error) {
	if c.isCritical(item.TargetComponent) {
		item.RequiresApproval = true
	}
	return c.backlog.Enqueue(item)
}

// RequestImprovement is the synchronous public operation spec §4.8 names,
// and also satisfies tools.BacklogEnqueuer so the privileged
// coordinator.request_improvement tool can call through to it directly.
func (c *Coordinator) RequestImprovement(ctx context.Context, targetComponent, suggestion string, priority int, requiresApproval bool) (string, error) {
	if c.isCritical(targetComponent) {
		requiresApproval = true
	}
	return c.backlog.RequestImprovement(ctx, targetComponent, suggestion, priority, requiresApproval)
}

// Approve transitions a PENDING item to APPROVED (spec §4.8 HITL gate).
func (c *Coordinator) Approve(id string) error { return c.backlog.Approve(id) }

// Reject transitions an item to REJECTED, whatever its current status.
func (c *Coordinator) Reject(id string) error { return c.backlog.Reject(id) }

// List returns backlog items matching filter.
func (c *Coordinator) List(filter backlog.Filter) ([]backlog.Item, error) {
	return c.backlog.List(filter)
}

// GetStatus summarizes backlog item counts by status, for the `status` CLI
// subcommand and the `get_status()` public operation (spec §4.8).
type GetStatusResult struct {
	Counts map[backlog.Status]int `json:"counts"`
	Total  int                    `json:"total"`
}

func (c *Coordinator) GetStatus() (GetStatusResult, error) {
	items, err := c.backlog.List(backlog.Filter{})
	if err != nil {
		return GetStatusResult{}, err
	}
	res := GetStatusResult{Counts: make(map[backlog.Status]int)}
	for _, it := range items {
		res.Counts[it.Status]++
		res.Total++
	}
	return res, nil
}

// Tick runs one iteration of the autonomous tactical loop (spec §4.8 steps
// 1-5). Returns the backlog item id processed, or "" if the tick skipped
// (resource guard failure or no eligible item).
func (c *Coordinator) Tick(ctx context.Context) (string, error) {
	if ok, reason := c.guard.OK(); !ok {
		c.log.Warn(ctx, "coordinator: tactical tick skipped by resource guard", "reason", reason)
		return "", nil
	}

	item, found, err := c.backlog.NextEligible(time.Now())
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}

	if err := c.backlog.MarkInProgress(item.ID); err != nil {
		return "", err
	}

	result, invokeErr := c.invoker.Invoke(ctx, item.ID)
	success := invokeErr == nil && result.Success
	cooldownUntil := time.Time{}
	if !success {
		cooldown := c.cfg.DefaultCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Minute
		}
		cooldownUntil = time.Now().Add(cooldown)
		if err := c.cooldown.Set(ctx, item.TargetComponent, cooldownUntil); err != nil {
			c.log.Warn(ctx, "coordinator: failed to persist cooldown", "component", item.TargetComponent, "error", err)
		}
	}
	if err := c.backlog.Complete(item.ID, success, cooldownUntil); err != nil {
		return "", err
	}
	if invokeErr != nil {
		return item.ID, errs.Wrap(errs.KindToolExecutionError, invokeErr, "coordinator: siw invocation failed")
	}
	return item.ID, nil
}
