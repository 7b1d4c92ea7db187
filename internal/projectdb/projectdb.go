// Package projectdb implements the project database of spec.md §4.2: a
// directed acyclic dependency graph over project names, a mapping from
// each name to its logical hierarchy path, its repository URL, its
// per-branch-group branch, and an active/inactive flag. It is obtained by
// cloning a dedicated metadata repository (a one-shot fetch that runs
// before the three scheduler peers fork, per spec.md §5).
//
// The metadata repository's on-disk schema is an implementation detail
// spec.md leaves unspecified (out of scope per spec.md §1, akin to the
// rc-file's YAML grammar): this package reads a single "projects.json"
// document at the repository root, recording one entry per project.
package projectdb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kde-builder/kde-builder/internal/gitutil"
	"github.com/kde-builder/kde-builder/internal/kerrors"
	"golang.org/x/xerrors"
)

// Entry describes one project as recorded in the metadata repository.
type Entry struct {
	Path          string              `json:"path"` // e.g. "kde/kdeutils/kcalc"
	URL           string              `json:"url"`
	DefaultBranch string              `json:"defaultBranch"`
	BranchGroups  map[string]string   `json:"branchGroups,omitempty"`
	Dependencies  map[string][]string `json:"dependencies,omitempty"` // branch-group -> direct dep paths
	Active        bool                `json:"active"`
}

// Name returns the entry's leaf (project) name.
func (e *Entry) Name() string {
	parts := strings.Split(e.Path, "/")
	return parts[len(parts)-1]
}

// Database is a loaded, queryable project database.
type Database struct {
	Root    string // local clone directory
	entries []*Entry
	byPath  map[string]*Entry
	byName  map[string][]*Entry
}

// Fetch clones url into dir if absent, or fast-forward-pulls it if
// present. This is the database's one-shot fetcher (spec.md §5 "Shared
// resources": "written only by a dedicated one-shot fetcher that runs
// before the three workers fork").
func Fetch(ctx context.Context, dir, url string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return &kerrors.FilesystemError{Op: "mkdir project database parent", Err: err}
		}
		repo := gitutil.New(filepath.Dir(dir))
		if err := repo.RunSilent(ctx, "clone", "--depth=1", url, dir); err != nil {
			return &kerrors.NetworkError{Project: "project-database", Err: err}
		}
		return nil
	}
	repo := gitutil.New(dir)
	if err := repo.RunSilent(ctx, "pull", "--ff-only"); err != nil {
		return &kerrors.NetworkError{Project: "project-database", Err: err}
	}
	return nil
}

// Load reads projects.json from dir (a prior Fetch target) into a
// Database.
func Load(dir string) (*Database, error) {
	f, err := os.Open(filepath.Join(dir, "projects.json"))
	if err != nil {
		return nil, &kerrors.FilesystemError{Op: "open project database", Err: err}
	}
	defer f.Close()

	var entries []*Entry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, xerrors.Errorf("parsing project database: %w", err)
	}

	db := &Database{
		Root:    dir,
		entries: entries,
		byPath:  make(map[string]*Entry, len(entries)),
		byName:  make(map[string][]*Entry, len(entries)),
	}
	for _, e := range entries {
		db.byPath[e.Path] = e
		db.byName[e.Name()] = append(db.byName[e.Name()], e)
	}
	return db, nil
}

// Lookup returns the entry matching name, by full path or leaf name, if
// it is unique.
func (db *Database) Lookup(name string) (*Entry, bool) {
	if e, ok := db.byPath[name]; ok {
		return e, true
	}
	if es, ok := db.byName[name]; ok && len(es) == 1 {
		return es[0], true
	}
	return nil, false
}

func splitPath(p string) []string { return strings.Split(p, "/") }

// isStrictDescendant reports whether path is nested under parent (not
// equal to it). parent is either a leading run of path components
// ("kde/kdeutils") or an inner one ("kdeutils" covers "kde/kdeutils/kcalc").
func isStrictDescendant(path, parent string) bool {
	return strings.HasPrefix(path, parent+"/") || strings.Contains(path, "/"+parent+"/")
}

// Expand resolves a selector pattern to the set of full project paths it
// denotes, per spec.md §4.2's pattern grammar:
//
//	exact name             -> the one matching entry
//	path suffix             -> unique match by trailing path components
//	parent/*                -> all strict descendants of parent
//	bare suffix (kdeutils)  -> same as kdeutils/*
func (db *Database) Expand(pattern string) ([]string, error) {
	if strings.HasSuffix(pattern, "/*") {
		parent := strings.TrimSuffix(pattern, "/*")
		return db.descendants(parent), nil
	}

	if es, ok := db.byName[pattern]; ok && len(es) == 1 {
		return []string{es[0].Path}, nil
	}

	if strings.Contains(pattern, "/") {
		want := splitPath(pattern)
		var matches []string
		for _, e := range db.entries {
			have := splitPath(e.Path)
			if hasSuffix(have, want) {
				matches = append(matches, e.Path)
			}
		}
		if len(matches) == 1 {
			return matches, nil
		}
		if len(matches) > 1 {
			return nil, xerrors.Errorf("ambiguous project pattern %q: matches %v", pattern, matches)
		}
	}

	if d := db.descendants(pattern); len(d) > 0 {
		return d, nil
	}

	return nil, &kerrors.UnknownProjectError{Selector: pattern}
}

func hasSuffix(have, want []string) bool {
	if len(want) > len(have) {
		return false
	}
	off := len(have) - len(want)
	for i, w := range want {
		if have[off+i] != w {
			return false
		}
	}
	return true
}

func (db *Database) descendants(parent string) []string {
	var out []string
	for _, e := range db.entries {
		if isStrictDescendant(e.Path, parent) {
			out = append(out, e.Path)
		}
	}
	return out
}

// Dependencies returns the direct dependency project paths of name for
// the given branch-group, falling back to the "default" key.
func (db *Database) Dependencies(name, branchGroup string) ([]string, error) {
	e, ok := db.Lookup(name)
	if !ok {
		return nil, &kerrors.UnknownProjectError{Selector: name}
	}
	if deps, ok := e.Dependencies[branchGroup]; ok {
		return deps, nil
	}
	return e.Dependencies["default"], nil
}

// ResolveBranch returns the branch to use for name in branchGroup, with
// fallback to the entry's repository default branch.
func (db *Database) ResolveBranch(name, branchGroup string) (string, error) {
	e, ok := db.Lookup(name)
	if !ok {
		return "", &kerrors.UnknownProjectError{Selector: name}
	}
	if branchGroup != "" {
		if b, ok := e.BranchGroups[branchGroup]; ok {
			return b, nil
		}
	}
	return e.DefaultBranch, nil
}

// Ignore removes, from paths, every entry whose path contains pattern's
// components as a contiguous subsequence (spec.md §4.2 ignore, invariant
// 4 in spec.md §8).
func Ignore(paths []string, pattern string) []string {
	want := splitPath(pattern)
	var out []string
	for _, p := range paths {
		if containsConsecutive(splitPath(p), want) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func containsConsecutive(have, want []string) bool {
	if len(want) == 0 || len(want) > len(have) {
		return false
	}
	for start := 0; start+len(want) <= len(have); start++ {
		match := true
		for i, w := range want {
			if have[start+i] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// URL returns the entry's clone URL for name.
func (db *Database) URL(name string) (string, error) {
	e, ok := db.Lookup(name)
	if !ok {
		return "", &kerrors.UnknownProjectError{Selector: name}
	}
	return e.URL, nil
}

// Active reports whether name is marked active in the database.
func (db *Database) Active(name string) bool {
	e, ok := db.Lookup(name)
	return ok && e.Active
}
