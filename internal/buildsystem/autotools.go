package buildsystem

import (
	"os"
	"path/filepath"

	"github.com/kde-builder/kde-builder/internal/project"
)

// autotools drives a configure-script project.
type autotools struct{}

func (autotools) Name() string { return "autotools" }

func (autotools) Detect(sourceDir string) bool {
	_, err := os.Stat(filepath.Join(sourceDir, "configure"))
	return err == nil
}

func (autotools) NeedsReconfigure(p *project.Project) bool {
	_, err := os.Stat(filepath.Join(p.BuildDir, "Makefile"))
	return err != nil
}

func (autotools) Pipeline(p *project.Project, phase string) ([][]string, error) {
	switch phase {
	case "build-system-setup":
		configure := append([]string{
			filepath.Join(p.SourceDir, "configure"),
			"--prefix=" + p.Get("install-dir"),
		}, buildDirFlag(p, "configure-flags")...)
		return [][]string{configure}, nil
	case "build":
		return [][]string{append([]string{"make", "-j" + jobs(p)}, buildDirFlag(p, "make-options")...)}, nil
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
