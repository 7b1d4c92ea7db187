package buildsystem

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kde-builder/kde-builder/internal/project"
)

// genericCMake drives a plain CMake project (adapted from the teacher's
// buildcmake.go: a fixed argv pipeline of cmake, then the chosen
// generator's build/install commands, built from the project's own
// options rather than a hardcoded distri sandbox layout).
type genericCMake struct{}

func (genericCMake) Name() string { return "cmake" }

func (genericCMake) Detect(sourceDir string) bool {
	_, err := os.Stat(filepath.Join(sourceDir, "CMakeLists.txt"))
	return err == nil
}

func (genericCMake) NeedsReconfigure(p *project.Project) bool {
	_, err := os.Stat(filepath.Join(p.BuildDir, "CMakeCache.txt"))
	return err != nil
}

func (genericCMake) Pipeline(p *project.Project, phase string) ([][]string, error) {
	switch phase {
	case "build-system-setup":
		configure := append([]string{
			"cmake", p.SourceDir,
			"-DCMAKE_INSTALL_PREFIX:PATH=" + p.Get("install-dir"),
			"-DCMAKE_BUILD_TYPE=" + orDefault(p.Get("cmake-build-type"), "RelWithDebInfo"),
			"-G", orDefault(p.Get("cmake-generator"), "Ninja"),
		}, buildDirFlag(p, "cmake-options")...)
		return [][]string{configure}, nil
	case "build":
		return [][]string{append([]string{"cmake", "--build", ".", "--", "-j" + jobs(p)}, buildDirFlag(p, "make-options")...)}, nil
	case "test":
		if p.Get("run-tests") != "true" {
			return nil, nil
		}
		return [][]string{{"ctest", "--output-on-failure"}}, nil
	case "install":
		return [][]string{{"cmake", "--install", "."}}, nil
	case "uninstall":
		manifest := filepath.Join(p.BuildDir, "install_manifest.txt")
		if _, err := os.Stat(manifest); err != nil {
			return nil, nil
		}
		return [][]string{{"xargs", "rm", "-f"}}, nil
	}
	return nil, nil
}

// kdeCMake is genericCMake for a CMakeLists.txt that uses ECM or KDE
// Frameworks (spec.md §4.5 "KDE-CMake" plug-in, the highest-priority
// match). Its configure step differs only by passing -DBUILD_TESTING, ON
// unless run-tests is "false"; run-tests defaults to "false", so testing
// is off unless a project turns it on.
type kdeCMake struct{}

func (kdeCMake) Name() string { return "kde-cmake" }

func (kdeCMake) Detect(sourceDir string) bool {
	if _, err := os.Stat(filepath.Join(sourceDir, "CMakeLists.txt")); err != nil {
		return false
	}
	data, err := os.ReadFile(filepath.Join(sourceDir, "CMakeLists.txt"))
	if err != nil {
		return false
	}
	return containsAny(string(data), "ECMGeneratePkgConfigFile", "KDEInstallDirs", "find_package(ECM", "find_package(KF")
}

func (kdeCMake) NeedsReconfigure(p *project.Project) bool {
	return genericCMake{}.NeedsReconfigure(p)
}

func (kdeCMake) Pipeline(p *project.Project, phase string) ([][]string, error) {
	if phase != "build-system-setup" {
		return genericCMake{}.Pipeline(p, phase)
	}
	configure := append([]string{
		"cmake", p.SourceDir,
		"-DCMAKE_INSTALL_PREFIX:PATH=" + p.Get("install-dir"),
		"-DCMAKE_BUILD_TYPE=" + orDefault(p.Get("cmake-build-type"), "RelWithDebInfo"),
		"-DBUILD_TESTING=" + boolFlag(p.Get("run-tests") != "false"),
		"-G", orDefault(p.Get("cmake-generator"), "Ninja"),
	}, buildDirFlag(p, "cmake-options")...)
	return [][]string{configure}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func boolFlag(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
