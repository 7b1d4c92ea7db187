package buildsystem

import (
	"os"
	"path/filepath"

	"github.com/kde-builder/kde-builder/internal/project"
)

// meson drives a Meson+Ninja project, adapted from the teacher's
// buildmeson.go pipeline shape.
type meson struct{}

func (meson) Name() string { return "meson" }

func (meson) Detect(sourceDir string) bool {
	_, err := os.Stat(filepath.Join(sourceDir, "meson.build"))
	return err == nil
}

func (meson) NeedsReconfigure(p *project.Project) bool {
	_, err := os.Stat(filepath.Join(p.BuildDir, "build.ninja"))
	return err != nil
}

func (meson) Pipeline(p *project.Project, phase string) ([][]string, error) {
	switch phase {
	case "build-system-setup":
		configure := append([]string{
			"meson", "setup",
			"--prefix=" + p.Get("install-dir"),
			".", p.SourceDir,
		}, buildDirFlag(p, "meson-options")...)
		return [][]string{configure}, nil
	case "build":
		return [][]string{append([]string{"ninja", "-v", "-j", jobs(p)}, buildDirFlag(p, "ninja-options")...)}, nil
	case "test":
		if p.Get("run-tests") != "true" {
			return nil, nil
		}
		return [][]string{{"meson", "test"}}, nil
	case "install":
		return [][]string{{"ninja", "install"}}, nil
	case "uninstall":
		return [][]string{{"ninja", "uninstall"}}, nil
	}
	return nil, nil
}
