package buildsystem

import (
	"os"
	"path/filepath"

	"github.com/kde-builder/kde-builder/internal/project"
)

// qmake drives a Qt qmake .pro project (spec.md §4.5 auto-detection,
// ranked below KDE-CMake/Generic-CMake/Meson).
type qmake struct{}

func (qmake) Name() string { return "qmake" }

func (qmake) Detect(sourceDir string) bool {
	matches, _ := filepath.Glob(filepath.Join(sourceDir, "*.pro"))
	return len(matches) > 0
}

func (qmake) NeedsReconfigure(p *project.Project) bool {
	_, err := os.Stat(filepath.Join(p.BuildDir, "Makefile"))
	return err != nil
}

func (qmake) Pipeline(p *project.Project, phase string) ([][]string, error) {
	switch phase {
	case "build-system-setup":
		configure := append([]string{
			"qmake",
			"PREFIX=" + p.Get("install-dir"),
			p.SourceDir,
		}, buildDirFlag(p, "qmake-options")...)
		return [][]string{configure}, nil
	case "build":
		return [][]string{{"make", "-j" + jobs(p)}}, nil
	case "test":
		if p.Get("run-tests") != "true" {
			return nil, nil
		}
		return [][]string{{"make", "check"}}, nil
	case "install":
		return [][]string{{"make", "install"}}, nil
	case "uninstall":
		return [][]string{{"make", "uninstall"}}, nil
	}
	return nil, nil
}
