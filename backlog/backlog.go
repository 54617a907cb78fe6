// Package backlog implements the persistent, prioritized improvement
// backlog owned by the coordinator (spec §3 "Backlog item", §4.4, §4.8,
// C4/C9). All mutation is serialized through a single mutex held across the
// atomic-rename sequence (spec §5: "concurrent request_improvement calls
// are serialized via a mutex around the backlog file"), grounded on the
// teacher's per-file-mutex posture for shared durable state.
package backlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/store"
)

// Status is the lifecycle state of a backlog item (spec §3).
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusCompletedSuccess Status = "COMPLETED_SUCCESS"
	StatusCompletedFailure Status = "COMPLETED_FAILURE"
	StatusCooldown         Status = "COOLDOWN"
)

// Origin identifies what produced a backlog item (spec §3).
type Origin string

const (
	OriginStrategicAnalysis Origin = "STRATEGIC_ANALYSIS"
	OriginMastermind        Origin = "MASTERMIND_DIRECTIVE"
	OriginAudit             Origin = "AUDIT"
	OriginUser              Origin = "USER"
)

// Item is one backlog entry (spec §3). CorrelationID is a SPEC_FULL.md
// addition threading the same id used in structured error reporting (spec
// §7: "a correlation id for trace lookup") through to the item that
// triggered the failing operation.
type Item struct {
	ID               string     `json:"id"`
	TargetComponent  string     `json:"target_component"`
	Suggestion       string     `json:"suggestion"`
	Priority         int        `json:"priority"`
	Status           Status     `json:"status"`
	RequiresApproval bool       `json:"requires_human_approval"`
	Attempts         int        `json:"attempts"`
	LastAttemptTs    *time.Time `json:"last_attempt_ts,omitempty"`
	CooldownUntilTs  *time.Time `json:"cooldown_until_ts,omitempty"`
	Origin           Origin     `json:"origin"`
	CorrelationID    string     `json:"correlation_id"`
	CreatedTs        time.Time  `json:"created_ts"`
}

type snapshot struct {
	Items []Item `json:"items"`
}

// Store is the persisted backlog, guarded by a single mutex across every
// mutation so `request_improvement` calls serialize (spec §5).
type Store struct {
	mu   sync.Mutex
	file *store.JSONFile[snapshot]
	now  func() time.Time
}

// New constructs a Store backed by path, loading any existing snapshot.
func New(path string, backupRotation int) *Store {
	return &Store{file: store.NewJSONFile[snapshot](path, backupRotation), now: time.Now}
}

// Filter narrows List to items matching non-zero fields. A zero-value
// Status/Origin field is not filtered on.
type Filter struct {
	Status Status
	Origin Origin
}

// Enqueue appends item with a fresh id and PENDING status, returning the
// assigned id (spec §4.8 "enqueue(item)").
func (s *Store) Enqueue(item Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return "", err
	}
	item.ID = uuid.NewString()
	item.Status = StatusPending
	item.CreatedTs = s.now()
	snap.Items = append(snap.Items, item)
	if err := s.file.Save(snap); err != nil {
		return "", err
	}
	return item.ID, nil
}

// RequestImprovement enqueues a backlog item synchronously, implementing
// the CoordinatorRequestImprovement tool contract and the coordinator's
// public request_improvement operation (spec §4.8).
func (s *Store) RequestImprovement(ctx context.Context, targetComponent, suggestion string, priority int, requiresApproval bool) (string, error) {
	return s.Enqueue(Item{
		TargetComponent:  targetComponent,
		Suggestion:       suggestion,
		Priority:         priority,
		RequiresApproval: requiresApproval,
		Origin:           OriginUser,
	})
}

// Approve transitions item id from PENDING to APPROVED. A second call on an
// already-approved item is a no-op (spec §8: "Approve then approve: second
// call is a no-op returning the same state").
func (s *Store) Approve(id string) error {
	return s.transition(id, func(it *Item) error {
		if it.Status == StatusApproved {
			return nil
		}
		if it.Status != StatusPending {
			return errs.Newf(errs.KindInvalidParameters, "backlog: item %q is not pending approval", id)
		}
		it.Status = StatusApproved
		return nil
	})
}

// Reject transitions item id to REJECTED.
func (s *Store) Reject(id string) error {
	return s.transition(id, func(it *Item) error {
		it.Status = StatusRejected
		return nil
	})
}

// MarkInProgress atomically transitions id from PENDING/APPROVED to
// IN_PROGRESS, recording the attempt timestamp (spec §4.8 step 3).
func (s *Store) MarkInProgress(id string) error {
	now := s.now()
	return s.transition(id, func(it *Item) error {
		if it.Status != StatusPending && it.Status != StatusApproved {
			return errs.Newf(errs.KindInvalidParameters, "backlog: item %q is not eligible to start (status=%s)", id, it.Status)
		}
		it.Status = StatusInProgress
		it.Attempts++
		it.LastAttemptTs = &now
		return nil
	})
}

// Complete transitions an IN_PROGRESS item to COMPLETED_SUCCESS or
// COMPLETED_FAILURE. On failure, cooldownUntil sets cooldown_until_ts (spec
// §4.8 steps 4-5).
func (s *Store) Complete(id string, success bool, cooldownUntil time.Time) error {
	return s.transition(id, func(it *Item) error {
		if success {
			it.Status = StatusCompletedSuccess
		} else {
			it.Status = StatusCompletedFailure
			it.CooldownUntilTs = &cooldownUntil
		}
		return nil
	})
}

// Reject is used for safety violations too (spec §7: "backlog item
// transitions to REJECTED").

// ResetOrphanedInProgress transitions every IN_PROGRESS item back to
// PENDING. Called on supervisor restart recovery (spec §3 invariant:
// "an IN_PROGRESS item must terminate ... or be reset on supervisor
// restart recovery").
func (s *Store) ResetOrphanedInProgress() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return 0, err
	}
	reset := 0
	for i := range snap.Items {
		if snap.Items[i].Status == StatusInProgress {
			snap.Items[i].Status = StatusPending
			reset++
		}
	}
	if reset > 0 {
		if err := s.file.Save(snap); err != nil {
			return 0, err
		}
	}
	return reset, nil
}

func (s *Store) transition(id string, mutate func(*Item) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return err
	}
	for i := range snap.Items {
		if snap.Items[i].ID != id {
			continue
		}
		if err := mutate(&snap.Items[i]); err != nil {
			return err
		}
		return s.file.Save(snap)
	}
	return errs.Newf(errs.KindInvalidParameters, "backlog: unknown item %q", id)
}

// Get returns the item with id.
func (s *Store) Get(id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return Item{}, err
	}
	for _, it := range snap.Items {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, errs.Newf(errs.KindInvalidParameters, "backlog: unknown item %q", id)
}

// List returns items matching filter, sorted by (priority desc, created_ts
// asc).
func (s *Store) List(filter Filter) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(snap.Items))
	for _, it := range snap.Items {
		if filter.Status != "" && it.Status != filter.Status {
			continue
		}
		if filter.Origin != "" && it.Origin != filter.Origin {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedTs.Before(out[j].CreatedTs)
	})
	return out, nil
}

// NextEligible returns the highest-priority item in status APPROVED, or
// PENDING if it does not require human approval, whose cooldown has
// elapsed (spec §4.8 step 2).
func (s *Store) NextEligible(now time.Time) (Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return Item{}, false, err
	}
	var candidates []Item
	for _, it := range snap.Items {
		eligible := it.Status == StatusApproved || (it.Status == StatusPending && !it.RequiresApproval)
		if !eligible {
			continue
		}
		if it.CooldownUntilTs != nil && it.CooldownUntilTs.After(now) {
			continue
		}
		candidates = append(candidates, it)
	}
	if len(candidates) == 0 {
		return Item{}, false, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedTs.Before(candidates[j].CreatedTs)
	})
	return candidates[0], true, nil
}
