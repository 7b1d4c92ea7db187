// Package options implements the canonical option table: the single
// source of per-project configuration described in spec.md §4.1. It knows
// nothing about rc-files or the command line; internal/rcfile and
// cmd/kde-builder build a Table by calling Set/SetSticky.
package options

import (
	"strings"

	"github.com/kde-builder/kde-builder/internal/kerrors"
)

// Scope identifies which tier of the option table a value belongs to.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeGroup
	ScopeProject
)

type scopedStore struct {
	global  map[string]string
	byGroup map[string]map[string]string
	byProj  map[string]map[string]string
}

func newScopedStore() scopedStore {
	return scopedStore{
		global:  make(map[string]string),
		byGroup: make(map[string]map[string]string),
		byProj:  make(map[string]map[string]string),
	}
}

func (s *scopedStore) get(scope Scope, key, name string) (string, bool) {
	switch scope {
	case ScopeGlobal:
		v, ok := s.global[name]
		return v, ok
	case ScopeGroup:
		v, ok := s.byGroup[key][name]
		return v, ok
	case ScopeProject:
		v, ok := s.byProj[key][name]
		return v, ok
	}
	return "", false
}

func (s *scopedStore) set(scope Scope, key, name, value string) {
	switch scope {
	case ScopeGlobal:
		s.global[name] = value
	case ScopeGroup:
		if s.byGroup[key] == nil {
			s.byGroup[key] = make(map[string]string)
		}
		s.byGroup[key][name] = value
	case ScopeProject:
		if s.byProj[key] == nil {
			s.byProj[key] = make(map[string]string)
		}
		s.byProj[key][name] = value
	}
}

// Table is the option table for one run: a global scope, per-group
// scopes, and per-project scopes, plus a "sticky" overlay of the same
// shape used by command-line overrides, which mask file-derived values at
// the same scope tier (spec.md §4.1 set_sticky).
type Table struct {
	file   scopedStore
	sticky scopedStore
}

// New returns an empty option table with every catalog default populated
// at global scope.
func New() *Table {
	t := &Table{file: newScopedStore(), sticky: newScopedStore()}
	for name, spec := range Catalog {
		if spec.Default != "" {
			t.file.global[name] = spec.Default
		}
	}
	return t
}

// Set assigns value to name at the given scope (group/project name is
// ignored for ScopeGlobal). Returns UnknownOptionError if name is neither
// in Catalog nor a user variable.
func (t *Table) Set(scope Scope, key, name, value string) error {
	if !IsUserVariable(name) {
		if _, ok := Catalog[name]; !ok {
			return &kerrors.UnknownOptionError{Name: name}
		}
	}
	t.file.set(scope, key, name, value)
	return nil
}

// SetSticky assigns value to name at the given scope as a sticky
// (command-line) override, masking file-derived values at that scope for
// the remainder of the run.
func (t *Table) SetSticky(scope Scope, key, name, value string) error {
	if !IsUserVariable(name) {
		if _, ok := Catalog[name]; !ok {
			return &kerrors.UnknownOptionError{Name: name}
		}
	}
	t.sticky.set(scope, key, name, value)
	return nil
}

func (t *Table) lookup(scope Scope, key, name string) (string, bool) {
	if v, ok := t.sticky.get(scope, key, name); ok {
		return v, ok
	}
	return t.file.get(scope, key, name)
}

// Get resolves name for a project in group (group may be ""), falling
// back group → global → catalog default, or append-combining all three
// scopes for Composition: Append options.
func (t *Table) Get(project, group, name string) string {
	spec, known := Catalog[name]
	if known && spec.Composition == Append {
		var parts []string
		if v, ok := t.lookup(ScopeGlobal, "", name); ok && v != "" {
			parts = append(parts, v)
		}
		if group != "" {
			if v, ok := t.lookup(ScopeGroup, group, name); ok && v != "" {
				parts = append(parts, v)
			}
		}
		if v, ok := t.lookup(ScopeProject, project, name); ok && v != "" {
			parts = append(parts, v)
		}
		return strings.Join(parts, " ")
	}

	if v, ok := t.lookup(ScopeProject, project, name); ok {
		return v
	}
	if group != "" {
		if v, ok := t.lookup(ScopeGroup, group, name); ok {
			return v
		}
	}
	if v, ok := t.lookup(ScopeGlobal, "", name); ok {
		return v
	}
	return spec.Default
}

// GetGlobal resolves a global-scope-only option (no project/group
// context), e.g. for CLI-only knobs.
func (t *Table) GetGlobal(name string) string {
	return t.Get("", "", name)
}

// ScopeOnly returns the raw value set directly at scope/key for name,
// without falling back to a less specific scope. Used where a caller must
// distinguish "this group itself sets X" from "X is merely inherited",
// e.g. resolver's group-scoped ignore-projects (spec.md §4.2 step 4).
func (t *Table) ScopeOnly(scope Scope, key, name string) (string, bool) {
	return t.lookup(scope, key, name)
}

// Expand recursively substitutes ${name} references in value with
// Get(project, group, name), detecting self-reference cycles.
func (t *Table) Expand(project, group, value string) (string, error) {
	return t.expand(project, group, value, nil)
}

func (t *Table) expand(project, group, value string, chain []string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(value) {
		start := strings.Index(value[i:], "${")
		if start < 0 {
			b.WriteString(value[i:])
			break
		}
		start += i
		b.WriteString(value[i:start])
		end := strings.IndexByte(value[start+2:], '}')
		if end < 0 {
			b.WriteString(value[start:])
			break
		}
		end += start + 2
		name := value[start+2 : end]
		for _, seen := range chain {
			if seen == name {
				return "", &kerrors.CycleError{Chain: append(append([]string{}, chain...), name)}
			}
		}
		raw := t.Get(project, group, name)
		expanded, err := t.expand(project, group, raw, append(chain, name))
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
		i = end + 1
	}
	return b.String(), nil
}

// Phases computes the phase list for a project from its toggle options,
// per spec.md §4.1 "Phase computation".
func (t *Table) Phases(project, group string) []string {
	if t.Get(project, group, "uninstall") == "true" {
		return []string{"uninstall"}
	}

	phases := map[string]bool{"update": true, "build": true, "install": true}
	if t.Get(project, group, "no-src") == "true" {
		delete(phases, "update")
	}
	if t.Get(project, group, "no-build") == "true" {
		delete(phases, "build")
	}
	if t.Get(project, group, "no-install") == "true" {
		delete(phases, "install")
	}
	if t.Get(project, group, "build-only") == "true" {
		phases = map[string]bool{"build": true}
	}
	if t.Get(project, group, "install-only") == "true" {
		phases = map[string]bool{"install": true}
	}
	if phases["build"] && t.Get(project, group, "run-tests") == "true" {
		phases["test"] = true
	}
	for _, filtered := range strings.Fields(t.Get(project, group, "filter-out-phases")) {
		delete(phases, filtered)
	}

	order := []string{"update", "build-system-setup", "build", "test", "install"}
	var out []string
	for _, p := range order {
		if p == "build-system-setup" {
			if phases["build"] {
				out = append(out, p)
			}
			continue
		}
		if phases[p] {
			out = append(out, p)
		}
	}
	return out
}
