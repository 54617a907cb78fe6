// Package agents implements the agent registry backing the `agent
// create|delete|list` CLI subcommands (spec §6). An agent record is a named
// BDI identity (an agent id plus its own workspace root),
// not a running process: `deploy` looks one up and drives a BDI executor
// scoped to it. Grounded on the same JSONFile-backed, mutex-guarded pattern
// as backlog.Store and campaign.Store.
package agents

import (
	"sync"
	"time"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/store"
)

// Status is an agent record's lifecycle state.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusDeleted Status = "DELETED"
)

// Record is one registered agent identity.
type Record struct {
	ID            string    `json:"id"`
	WorkspaceRoot string    `json:"workspace_root"`
	Status        Status    `json:"status"`
	CreatedTs     time.Time `json:"created_ts"`
}

type snapshot struct {
	Records []Record `json:"records"`
}

// Store is the persisted agent registry.
type Store struct {
	mu   sync.Mutex
	file *store.JSONFile[snapshot]
	now  func() time.Time
}

// New constructs a Store backed by path.
func New(path string, backupRotation int) *Store {
	return &Store{file: store.NewJSONFile[snapshot](path, backupRotation), now: time.Now}
}

// Create registers a new agent identity. Creating a duplicate, still-active
// id is an error.
func (s *Store) Create(id, workspaceRoot string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return Record{}, err
	}
	for _, r := range snap.Records {
		if r.ID == id && r.Status == StatusActive {
			return Record{}, errs.Newf(errs.KindInvalidRequest, "agents: %q already exists", id)
		}
	}
	rec := Record{ID: id, WorkspaceRoot: workspaceRoot, Status: StatusActive, CreatedTs: s.now()}
	snap.Records = append(snap.Records, rec)
	if err := s.file.Save(snap); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete marks id as deleted. Deleting an unknown or already-deleted id is
// an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return err
	}
	found := false
	for i, r := range snap.Records {
		if r.ID == id && r.Status == StatusActive {
			snap.Records[i].Status = StatusDeleted
			found = true
			break
		}
	}
	if !found {
		return errs.Newf(errs.KindInvalidRequest, "agents: %q not found", id)
	}
	return s.file.Save(snap)
}

// Get returns the active record for id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return Record{}, err
	}
	for _, r := range snap.Records {
		if r.ID == id && r.Status == StatusActive {
			return r, nil
		}
	}
	return Record{}, errs.Newf(errs.KindInvalidRequest, "agents: %q not found", id)
}

// List returns every active agent record.
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(snap.Records))
	for _, r := range snap.Records {
		if r.Status == StatusActive {
			out = append(out, r)
		}
	}
	return out, nil
}
