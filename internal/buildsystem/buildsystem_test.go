package buildsystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kde-builder/kde-builder/internal/options"
	"github.com/kde-builder/kde-builder/internal/project"
)

func TestSelectDetectsByPriority(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(x)\nfind_package(ECM REQUIRED)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	plugin, err := Select(dir, "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if plugin.Name() != "kde-cmake" {
		t.Errorf("Name() = %q, want kde-cmake (ECM marker should outrank generic cmake)", plugin.Name())
	}
}

func TestSelectGenericCMakeWithoutKDEMarkers(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(x)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	plugin, err := Select(dir, "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if plugin.Name() != "cmake" {
		t.Errorf("Name() = %q, want cmake", plugin.Name())
	}
}

func TestSelectForcedOverride(t *testing.T) {
	dir := t.TempDir()
	plugin, err := Select(dir, "meson")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if plugin.Name() != "meson" {
		t.Errorf("Name() = %q, want meson", plugin.Name())
	}
}

func TestSelectUnknownOverride(t *testing.T) {
	dir := t.TempDir()
	if _, err := Select(dir, "does-not-exist"); err == nil {
		t.Fatal("expected an error for an unrecognized override-build-system")
	}
}

func TestSelectFallsBackToGeneric(t *testing.T) {
	dir := t.TempDir()
	plugin, err := Select(dir, "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if plugin.Name() != "generic" {
		t.Errorf("Name() = %q, want generic", plugin.Name())
	}
}

func TestJobsResolvesAutoToNumCPU(t *testing.T) {
	p := &project.Project{Name: "kcalc", Options: options.New()}
	if got := jobs(p); got == "" || got == "auto" {
		t.Errorf("jobs() = %q, want a resolved core count", got)
	}
}

func TestJobsHonorsExplicitNumCores(t *testing.T) {
	p := &project.Project{Name: "kcalc", Options: options.New()}
	if err := p.Options.Set(options.ScopeProject, p.Name, "num-cores", "4"); err != nil {
		t.Fatal(err)
	}
	if got := jobs(p); got != "4" {
		t.Errorf("jobs() = %q, want 4", got)
	}
}

func TestRefreshMarker(t *testing.T) {
	p := &project.Project{Name: "kcalc", BuildDir: t.TempDir(), Options: options.New()}
	if hasRefreshMarker(p) {
		t.Fatal("hasRefreshMarker should be false before the marker file exists")
	}
	if err := os.WriteFile(filepath.Join(p.BuildDir, refreshMarker), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !hasRefreshMarker(p) {
		t.Fatal("hasRefreshMarker should be true once the marker file exists")
	}
	clearRefreshMarker(p)
	if hasRefreshMarker(p) {
		t.Fatal("hasRefreshMarker should be false after clearRefreshMarker")
	}
}
