// Package state implements the persistent, per-project state store of
// spec.md §3: a JSON document recording, per project, the data that must
// survive between runs (last built commit, last successful phase, option
// values discovered rather than configured). Every write goes through
// github.com/google/renameio so a crash or concurrent run never observes
// a half-written file (spec.md §3's persistence invariant).
package state

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// ProjectState is the persisted record for one project.
type ProjectState struct {
	LastSuccessfulPhase string            `json:"lastSuccessfulPhase,omitempty"`
	LastBuiltCommit     string            `json:"lastBuiltCommit,omitempty"`
	LastFailedPhase     string            `json:"lastFailedPhase,omitempty"`
	Extra               map[string]string `json:"extra,omitempty"` // forward-compatible: unknown keys round-trip
}

// Store is the whole persistent-state document, keyed by project name.
type Store struct {
	path string

	mu       sync.Mutex
	Projects map[string]*ProjectState `json:"projects"`
	// Unknown preserves any top-level keys this version of the program
	// does not recognize, so a newer binary's top-level keys survive a
	// round-trip through this one.
	Unknown map[string]json.RawMessage `json:"-"`
}

// Load reads path if it exists, or returns an empty Store otherwise.
func Load(path string) (*Store, error) {
	s := &Store{path: path, Projects: make(map[string]*ProjectState)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, xerrors.Errorf("reading persistent state %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, xerrors.Errorf("parsing persistent state %s: %w", path, err)
	}
	if projectsRaw, ok := raw["projects"]; ok {
		if err := json.Unmarshal(projectsRaw, &s.Projects); err != nil {
			return nil, xerrors.Errorf("parsing persistent state %s: %w", path, err)
		}
		delete(raw, "projects")
	}
	s.Unknown = raw
	return s, nil
}

// Project returns the state record for name, creating an empty one if
// absent. The returned pointer is live: mutate it, then call Save.
func (s *Store) Project(name string) *ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Projects[name]
	if !ok {
		p = &ProjectState{}
		s.Projects[name] = p
	}
	return p
}

// Save atomically rewrites the state file at s.path via a temp-file
// rename, so readers never observe a partial write.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := make(map[string]json.RawMessage, len(s.Unknown)+1)
	for k, v := range s.Unknown {
		doc[k] = v
	}
	projectsJSON, err := json.MarshalIndent(s.Projects, "", "  ")
	if err != nil {
		return xerrors.Errorf("encoding persistent state: %w", err)
	}
	doc["projects"] = projectsJSON

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return xerrors.Errorf("encoding persistent state: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return xerrors.Errorf("writing persistent state %s: %w", s.path, err)
	}
	return nil
}
