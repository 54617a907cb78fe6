// Package beliefs implements the namespaced, persistent belief store (spec
// §4.1, C1): a key→(value, confidence, source, updated_ts) map, one JSON file
// per namespace, guarded by a per-namespace mutex with multi-reader/
// single-writer discipline.
package beliefs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/store"
	"github.com/mindforge-ai/mindforge/telemetry"
)

// Belief is one entry in the store, keyed by a dotted namespace key.
type Belief struct {
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
	Source     string          `json:"source"`
	UpdatedTs  time.Time       `json:"updated_ts"`
}

type namespaceFile struct {
	Beliefs map[string]Belief `json:"beliefs"`
}

// Store is a multi-namespace belief store. Each namespace is persisted to
// data/state/beliefs/<namespace>.json independently; namespaces share no
// locks so unrelated namespaces never contend.
type Store struct {
	dir    string
	log    telemetry.Logger
	mu     sync.Mutex // guards the namespaces map itself, not its contents
	byNS   map[string]*namespace
	rotate int
}

type namespace struct {
	mu   sync.RWMutex
	file *store.JSONFile[namespaceFile]
	data namespaceFile
}

// New constructs a Store rooted at dir (typically data/state/beliefs).
func New(dir string, backupRotation int, log telemetry.Logger) *Store {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Store{dir: dir, log: log, byNS: make(map[string]*namespace), rotate: backupRotation}
}

func namespaceOf(key string) string {
	if i := strings.IndexByte(key, '.'); i > 0 {
		return key[:i]
	}
	return key
}

func (s *Store) ns(name string) (*namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byNS[name]; ok {
		return n, nil
	}
	path := filepath.Join(s.dir, name+".json")
	n := &namespace{file: store.NewJSONFile[namespaceFile](path, s.rotate)}
	loaded, err := n.file.Load()
	if err != nil {
		return nil, err
	}
	if loaded.Beliefs == nil {
		loaded.Beliefs = make(map[string]Belief)
	}
	n.data = loaded
	s.byNS[name] = n
	return n, nil
}

// Add inserts or updates a belief. It is last-write-wins unless
// confidenceRequired is true, in which case the update is rejected (no-op,
// non-error) when the stored confidence already exceeds value's confidence
// (spec §4.1).
func (s *Store) Add(ctx context.Context, key string, value json.RawMessage, confidence float64, source string, confidenceRequired bool) error {
	if key == "" {
		return errs.New(errs.KindInvalidRequest, "beliefs: key is required")
	}
	n, err := s.ns(namespaceOf(key))
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if confidenceRequired {
		if existing, ok := n.data.Beliefs[key]; ok && existing.Confidence > confidence {
			s.log.Debug(ctx, "beliefs: rejected lower-confidence update", "key", key,
				"existing_confidence", existing.Confidence, "proposed_confidence", confidence)
			return nil
		}
	}
	n.data.Beliefs[key] = Belief{
		Key:        key,
		Value:      value,
		Confidence: confidence,
		Source:     source,
		UpdatedTs:  time.Now().UTC(),
	}
	return n.file.Save(n.data)
}

// Get returns the belief stored under key, or ok=false if absent.
func (s *Store) Get(ctx context.Context, key string) (Belief, bool, error) {
	n, err := s.ns(namespaceOf(key))
	if err != nil {
		return Belief{}, false, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	b, ok := n.data.Beliefs[key]
	return b, ok, nil
}

// Query returns every belief whose key has the given dotted prefix, sorted by
// key for deterministic iteration. Query operates within a single namespace
// (the one derived from prefix) per the store's single-file-per-namespace
// design; a prefix cannot span several namespaces.
func (s *Store) Query(ctx context.Context, prefix string) ([]Belief, error) {
	n, err := s.ns(namespaceOf(prefix))
	if err != nil {
		return nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Belief, 0)
	for k, b := range n.data.Beliefs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Remove deletes the belief stored under key, if present.
func (s *Store) Remove(ctx context.Context, key string) error {
	n, err := s.ns(namespaceOf(key))
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.data.Beliefs[key]; !ok {
		return nil
	}
	delete(n.data.Beliefs, key)
	return n.file.Save(n.data)
}

// Flush is a no-op: Add/Remove already persist synchronously through the
// atomic-write protocol. It exists to satisfy callers written against an
// explicit flush lifecycle (spec §4.1 operation list).
func (s *Store) Flush(ctx context.Context) error {
	return nil
}
