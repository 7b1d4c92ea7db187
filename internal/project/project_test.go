package project

import (
	"testing"

	"github.com/kde-builder/kde-builder/internal/options"
)

func newProject(t *testing.T) *Project {
	t.Helper()
	return &Project{Name: "kcalc", Group: "kde-utils", Options: options.New()}
}

func TestPhasesDropsUpdateWhenHeld(t *testing.T) {
	p := newProject(t)
	p.Held = true
	phases := p.Phases()
	for _, ph := range phases {
		if ph == "update" {
			t.Fatalf("held project should not include update phase, got %v", phases)
		}
	}
}

func TestPhasesIncludesUpdateWhenNotHeld(t *testing.T) {
	p := newProject(t)
	phases := p.Phases()
	var found bool
	for _, ph := range phases {
		if ph == "update" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected update in phases, got %v", phases)
	}
}

func TestGetResolvesThroughOptionsTable(t *testing.T) {
	p := newProject(t)
	if err := p.Options.Set(options.ScopeProject, "kcalc", "cmake-generator", "Unix Makefiles"); err != nil {
		t.Fatal(err)
	}
	if got := p.Get("cmake-generator"); got != "Unix Makefiles" {
		t.Errorf("Get() = %q, want Unix Makefiles", got)
	}
}

func TestExpandResolvesProjectScopedReferences(t *testing.T) {
	p := newProject(t)
	if err := p.Options.Set(options.ScopeGlobal, "", "source-dir", "/home/user/kde/src"); err != nil {
		t.Fatal(err)
	}
	got, err := p.Expand("${source-dir}/kcalc")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "/home/user/kde/src/kcalc" {
		t.Errorf("Expand() = %q", got)
	}
}

func TestResolvePathsFlatLayoutUsesProjectName(t *testing.T) {
	p := newProject(t)
	p.ProjectPath = "kde/kdeutils/kcalc"
	if err := p.Options.Set(options.ScopeGlobal, "", "source-dir", "/src"); err != nil {
		t.Fatal(err)
	}
	if err := p.Options.Set(options.ScopeGlobal, "", "build-dir", "/build"); err != nil {
		t.Fatal(err)
	}
	if err := p.Options.Set(options.ScopeGlobal, "", "install-dir", "/opt/kde"); err != nil {
		t.Fatal(err)
	}
	if err := p.Options.Set(options.ScopeGlobal, "", "log-dir", "/log"); err != nil {
		t.Fatal(err)
	}
	if err := p.ResolvePaths(); err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if p.SourceDir != "/src/kcalc" {
		t.Errorf("SourceDir = %q, want /src/kcalc (flat layout ignores ProjectPath)", p.SourceDir)
	}
	if p.LogDir != "/log/kcalc" {
		t.Errorf("LogDir = %q, want /log/kcalc", p.LogDir)
	}
}

func TestResolvePathsInventLayoutUsesProjectPath(t *testing.T) {
	p := newProject(t)
	p.ProjectPath = "kde/kdeutils/kcalc"
	if err := p.Options.Set(options.ScopeGlobal, "", "source-dir", "/src"); err != nil {
		t.Fatal(err)
	}
	if err := p.Options.Set(options.ScopeGlobal, "", "build-dir", "/build"); err != nil {
		t.Fatal(err)
	}
	if err := p.Options.Set(options.ScopeGlobal, "", "install-dir", "/opt/kde"); err != nil {
		t.Fatal(err)
	}
	if err := p.Options.Set(options.ScopeGlobal, "", "log-dir", "/log"); err != nil {
		t.Fatal(err)
	}
	if err := p.Options.Set(options.ScopeGlobal, "", "directory-layout", "invent"); err != nil {
		t.Fatal(err)
	}
	if err := p.ResolvePaths(); err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if p.SourceDir != "/src/kde/kdeutils/kcalc" {
		t.Errorf("SourceDir = %q, want /src/kde/kdeutils/kcalc", p.SourceDir)
	}
}
