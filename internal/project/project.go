// Package project defines the Project and Group types of spec.md §3: the
// smallest buildable unit (one git repository, one build directory) and
// the template that expands into a set of projects.
package project

import (
	"path/filepath"

	"github.com/kde-builder/kde-builder/internal/options"
)

// KDEProjectsToken is the special repository value meaning "resolve the
// clone URL via the project database" (spec.md §3 Project).
const KDEProjectsToken = "kde-projects"

// Project is one buildable unit.
type Project struct {
	Name       string
	Repository string // clone URL, or KDEProjectsToken
	Group      string // back-reference to a Group.Name, may be ""
	SCMPlugin  string // "git", or "" for auto-detect
	BuildKind  string // forced build-system kind, or "" for auto-detect

	// ProjectPath is the project database's logical hierarchy path, e.g.
	// "kde/kdeutils/kcalc". Empty for projects not sourced from the
	// database.
	ProjectPath string

	Dependencies []string // resolved project names, direct deps only

	// RCOrder is this project's position in rc-file (or inclusion) order,
	// used as the resolver's ordering tie-break (spec.md §4.2). Zero for
	// projects that exist only in the project database.
	RCOrder int

	// Held reports that hold-work-branches applies: the source checkout is
	// currently on a work/* or mr/* branch, so the update phase is skipped
	// (spec.md §4.2 step 6).
	Held bool

	Options *options.Table

	SourceDir  string
	BuildDir   string
	InstallDir string
	LogDir     string
}

// Phases returns this project's computed phase list, dropping "update" when
// the project is held on a work branch (spec.md §4.2 step 6).
func (p *Project) Phases() []string {
	phases := p.Options.Phases(p.Name, p.Group)
	if !p.Held {
		return phases
	}
	out := phases[:0:0]
	for _, ph := range phases {
		if ph != "update" {
			out = append(out, ph)
		}
	}
	return out
}

// Get resolves name in this project's option scope.
func (p *Project) Get(name string) string {
	return p.Options.Get(p.Name, p.Group, name)
}

// Expand resolves ${..} references in value in this project's scope.
func (p *Project) Expand(value string) (string, error) {
	return p.Options.Expand(p.Name, p.Group, value)
}

// ResolvePaths fills in SourceDir/BuildDir/InstallDir/LogDir from the
// option table, honoring directory-layout (spec.md §4.1 Build behavior).
// Paths are stable for the remainder of the run once computed (spec.md §3
// invariant).
func (p *Project) ResolvePaths() error {
	sourceRoot, err := p.Expand(p.Get("source-dir"))
	if err != nil {
		return err
	}
	buildRoot, err := p.Expand(p.Get("build-dir"))
	if err != nil {
		return err
	}
	installRoot, err := p.Expand(p.Get("install-dir"))
	if err != nil {
		return err
	}
	logRoot, err := p.Expand(p.Get("log-dir"))
	if err != nil {
		return err
	}

	layout := p.Get("directory-layout")
	rel := p.Name
	if layout == "invent" || layout == "metadata" {
		if p.ProjectPath != "" {
			rel = p.ProjectPath
		}
	}

	p.SourceDir = filepath.Join(sourceRoot, rel)
	p.BuildDir = filepath.Join(buildRoot, rel)
	p.InstallDir = installRoot
	p.LogDir = filepath.Join(logRoot, p.Name)
	return nil
}

// Group is a template that expands into zero or more Projects sharing
// options (spec.md §3 Group).
type Group struct {
	Name           string
	UseProjects    []string // use-projects patterns
	RepositoryHint string   // e.g. "kde-projects"
}
