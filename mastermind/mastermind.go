// Package mastermind implements Mastermind & the Strategic Loop (spec
// §4.10, C10 per SPEC_FULL.md's component-numbering note): it owns the
// campaign record and drives a four-phase campaign (audit, blueprint,
// execute, validate) by prompting the LLM gateway for findings and
// proposed backlog items, then handing execution off to an injected
// tools.BacklogEnqueuer (spec §9: inject collaborators as
// interfaces, do not import across layers directly).
package mastermind

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindforge-ai/mindforge/campaign"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/llm"
	"github.com/mindforge-ai/mindforge/telemetry"
	"github.com/mindforge-ai/mindforge/tools"
)

// Finding is one audit-phase result (spec §4.10 step 1: "severity, target,
// suggestion").
type Finding struct {
	Severity   string `json:"severity"`
	Target     string `json:"target"`
	Suggestion string `json:"suggestion"`
}

// ProposedItem is one blueprint-phase output (spec §4.10 step 2).
type ProposedItem struct {
	TargetComponent   string  `json:"target_component"`
	Suggestion        string  `json:"suggestion"`
	Priority          int     `json:"priority"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
	EstimatedDuration string  `json:"estimated_duration"`
	SafetyClass       string  `json:"safety_class"`
	RequiresApproval  bool    `json:"requires_approval"`
}

// Mastermind is the C10 component.
type Mastermind struct {
	Gateway   *llm.Gateway
	Campaigns *campaign.Store
	Enqueuer  tools.BacklogEnqueuer
	Log       telemetry.Logger

	// ValidateDelay holds the configured delay between Execute and a
	// campaign's Validate (spec §4.10 step 4). Mastermind does not read it:
	// RunCampaign does not schedule Validate, which runs only when a caller
	// invokes it.
	ValidateDelay time.Duration
}

func (m *Mastermind) log() telemetry.Logger {
	if m.Log == nil {
		return telemetry.NewNoopLogger()
	}
	return m.Log
}

// RunCampaign drives one campaign end to end through whichever phases
// directive does not skip (spec §4.10: "any of which may be skipped via
// directive flags"). Validate only runs if the caller also invokes
// Validate later, since it fires on a delayed tick rather than
// synchronously after Execute.
func (m *Mastermind) RunCampaign(ctx context.Context, directive campaign.Directive) (string, error) {
	id, err := m.Campaigns.Start(directive)
	if err != nil {
		return "", err
	}

	var findings []Finding
	if !directive.SkipsPhase(campaign.PhaseAudit) {
		findings, err = m.audit(ctx, directive)
		if err != nil {
			return id, err
		}
		if err := m.Campaigns.RecordPhase(id, campaign.PhaseAudit); err != nil {
			return id, err
		}
	}

	var proposed []ProposedItem
	if !directive.SkipsPhase(campaign.PhaseBlueprint) {
		proposed, err = m.blueprint(ctx, findings)
		if err != nil {
			return id, err
		}
		if err := m.Campaigns.RecordPhase(id, campaign.PhaseBlueprint); err != nil {
			return id, err
		}
	}

	if !directive.SkipsPhase(campaign.PhaseExecute) {
		spawned, err := m.execute(ctx, proposed)
		if err != nil {
			return id, err
		}
		if err := m.Campaigns.AppendSpawnedItems(id, spawned...); err != nil {
			return id, err
		}
		if err := m.Campaigns.RecordPhase(id, campaign.PhaseExecute); err != nil {
			return id, err
		}
	}

	return id, nil
}

// audit asks the gateway for a findings list (spec §4.10 step 1: "invokes
// analysis tools to produce findings"). In the core spec the analysis tools
// are LLM-driven summarization over belief/registry state; this module
// prompts the gateway directly rather than routing through the tool
// registry, since no analysis tool is itself a spec.md-named tool.
func (m *Mastermind) audit(ctx context.Context, directive campaign.Directive) ([]Finding, error) {
	prompt := fmt.Sprintf("Directive: %s\nProduce a JSON array of findings, each with severity, target, suggestion.", directive.Text)
	resp, _, err := m.Gateway.Generate(ctx, llm.Request{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}
	var findings []Finding
	if err := json.Unmarshal([]byte(resp.Text), &findings); err != nil {
		return nil, errs.Wrap(errs.KindPlanningError, err, "mastermind: parse audit findings")
	}
	return findings, nil
}

// blueprint synthesizes findings into prioritized proposed backlog items
// (spec §4.10 step 2).
func (m *Mastermind) blueprint(ctx context.Context, findings []Finding) ([]ProposedItem, error) {
	if len(findings) == 0 {
		return nil, nil
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Findings: %s\nProduce a JSON array of proposed backlog items, each with "+
		"target_component, suggestion, priority, estimated_cost_usd, estimated_duration, safety_class, requires_approval.", findingsJSON)
	resp, _, err := m.Gateway.Generate(ctx, llm.Request{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}
	var proposed []ProposedItem
	if err := json.Unmarshal([]byte(resp.Text), &proposed); err != nil {
		return nil, errs.Wrap(errs.KindPlanningError, err, "mastermind: parse blueprint items")
	}
	return proposed, nil
}

// execute enqueues proposed items into the coordinator without blocking on
// their completion (spec §4.10 step 3), returning the spawned backlog item
// ids.
func (m *Mastermind) execute(ctx context.Context, proposed []ProposedItem) ([]string, error) {
	ids := make([]string, 0, len(proposed))
	for _, p := range proposed {
		id, err := m.Enqueuer.RequestImprovement(ctx, p.TargetComponent, p.Suggestion, p.Priority, p.RequiresApproval)
		if err != nil {
			m.log().Warn(ctx, "mastermind: failed to enqueue proposed item", "target", p.TargetComponent, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate re-audits and computes the resolution score for a campaign
// started earlier by RunCampaign (spec §4.10 step 4), intended to be
// invoked on a later, independently scheduled tick after ValidateDelay has
// elapsed.
func (m *Mastermind) Validate(ctx context.Context, campaignID string, findingsInitial int) (campaign.Record, error) {
	rec, err := m.Campaigns.Get(campaignID)
	if err != nil {
		return campaign.Record{}, err
	}
	findingsNow, err := m.audit(ctx, rec.Directive)
	if err != nil {
		return campaign.Record{}, err
	}
	resolved := findingsInitial - len(findingsNow)
	if resolved < 0 {
		resolved = 0
	}
	score := campaign.ResolutionScore(resolved, findingsInitial)
	if err := m.Campaigns.RecordPhase(campaignID, campaign.PhaseValidate); err != nil {
		return campaign.Record{}, err
	}
	if err := m.Campaigns.Finish(campaignID, score); err != nil {
		return campaign.Record{}, err
	}
	return m.Campaigns.Get(campaignID)
}
