// Package campaign implements the campaign record persisted by Mastermind's
// strategic loop (spec §3 "Campaign record", §4.10, C10), grounded on the
// same atomic-store pattern as backlog.Store.
package campaign

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/store"
)

// Phase names the four strategic-pipeline stages (spec §4.10).
type Phase string

const (
	PhaseAudit     Phase = "audit"
	PhaseBlueprint Phase = "blueprint"
	PhaseExecute   Phase = "execute"
	PhaseValidate  Phase = "validate"
)

// Grade buckets a resolution score (spec §4.10).
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeForScore maps a resolution score in [0,100] to a letter grade (spec
// §4.10: "grade A (>=90), B (>=75), C (>=60), D (>=40), F otherwise").
func GradeForScore(score float64) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 75:
		return GradeB
	case score >= 60:
		return GradeC
	case score >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// Directive is a campaign's initiating request. Flags is a SPEC_FULL.md
// addition carrying the per-phase skip flags spec §4.10 allows ("any of
// which may be skipped via directive flags").
type Directive struct {
	Text  string          `json:"text"`
	Flags map[Phase]bool  `json:"flags,omitempty"` // true => skip this phase
}

// SkipsPhase reports whether d requests skipping phase.
func (d Directive) SkipsPhase(phase Phase) bool {
	return d.Flags != nil && d.Flags[phase]
}

// Record is one campaign execution (spec §3).
type Record struct {
	ID                 string     `json:"id"`
	Directive          Directive  `json:"directive"`
	StartedTs          time.Time  `json:"started_ts"`
	EndedTs            *time.Time `json:"ended_ts,omitempty"`
	Phases             []Phase    `json:"phases"`
	ResolutionScore    *float64   `json:"resolution_score,omitempty"`
	Grade              Grade      `json:"grade,omitempty"`
	BacklogItemsSpawned []string  `json:"backlog_items_spawned"`
}

type snapshot struct {
	Records []Record `json:"records"`
}

// Store is the persisted campaign history.
type Store struct {
	mu   sync.Mutex
	file *store.JSONFile[snapshot]
	now  func() time.Time
}

// New constructs a Store backed by path.
func New(path string, backupRotation int) *Store {
	return &Store{file: store.NewJSONFile[snapshot](path, backupRotation), now: time.Now}
}

// Start begins a new campaign record and persists it, returning its id.
func (s *Store) Start(directive Directive) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return "", err
	}
	rec := Record{ID: uuid.NewString(), Directive: directive, StartedTs: s.now()}
	snap.Records = append(snap.Records, rec)
	if err := s.file.Save(snap); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// RecordPhase appends phase to the campaign's completed-phases list.
func (s *Store) RecordPhase(id string, phase Phase) error {
	return s.mutate(id, func(r *Record) error {
		r.Phases = append(r.Phases, phase)
		return nil
	})
}

// AppendSpawnedItems records backlog item ids spawned by the blueprint/
// execute phases.
func (s *Store) AppendSpawnedItems(id string, itemIDs ...string) error {
	return s.mutate(id, func(r *Record) error {
		r.BacklogItemsSpawned = append(r.BacklogItemsSpawned, itemIDs...)
		return nil
	})
}

// Finish records the campaign's resolution score and end time, deriving the
// letter grade (spec §4.10).
func (s *Store) Finish(id string, resolutionScore float64) error {
	now := s.now()
	return s.mutate(id, func(r *Record) error {
		r.EndedTs = &now
		r.ResolutionScore = &resolutionScore
		r.Grade = GradeForScore(resolutionScore)
		return nil
	})
}

func (s *Store) mutate(id string, fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return err
	}
	for i := range snap.Records {
		if snap.Records[i].ID != id {
			continue
		}
		if err := fn(&snap.Records[i]); err != nil {
			return err
		}
		return s.file.Save(snap)
	}
	return errs.Newf(errs.KindInvalidParameters, "campaign: unknown record %q", id)
}

// Get returns the record with id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return Record{}, err
	}
	for _, r := range snap.Records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, errs.Newf(errs.KindInvalidParameters, "campaign: unknown record %q", id)
}

// List returns every campaign record, most recently started first.
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	out := append([]Record(nil), snap.Records...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartedTs.After(out[j].StartedTs) })
	return out, nil
}

// ResolutionScore computes 100 * resolved/initial, per spec §4.10.
func ResolutionScore(findingsResolved, findingsInitial int) float64 {
	if findingsInitial <= 0 {
		return 100
	}
	return 100 * float64(findingsResolved) / float64(findingsInitial)
}
