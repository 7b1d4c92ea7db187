package buildsystem

import (
	"os"
	"path/filepath"

	"github.com/kde-builder/kde-builder/internal/project"
)

// generic is the fallback plug-in (spec.md §4.5): a plain Makefile with
// no configure step, or a project whose build-system option points at a
// user-supplied custom-build-command.
type generic struct{}

func (generic) Name() string { return "generic" }

func (generic) Detect(sourceDir string) bool {
	_, err := os.Stat(filepath.Join(sourceDir, "Makefile"))
	return err == nil
}

func (generic) NeedsReconfigure(p *project.Project) bool { return false }

func (generic) Pipeline(p *project.Project, phase string) ([][]string, error) {
	if custom := p.Get("custom-build-command"); custom != "" {
		return [][]string{{"/bin/sh", "-c", custom + " " + phase}}, nil
	}
	switch phase {
	case "build":
		return [][]string{{"make", "-j" + jobs(p)}}, nil
	case "install":
		return [][]string{{"make", "install"}}, nil
	case "uninstall":
		return [][]string{{"make", "uninstall"}}, nil
	}
	return nil, nil
}
