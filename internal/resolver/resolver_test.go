package resolver

import (
	"context"
	"reflect"
	"testing"

	"github.com/kde-builder/kde-builder/internal/kerrors"
	"github.com/kde-builder/kde-builder/internal/options"
	"github.com/kde-builder/kde-builder/internal/project"
	"github.com/kde-builder/kde-builder/internal/rcfile"
)

func newTestProject(name string, rcOrder int, deps ...string) *project.Project {
	return &project.Project{
		Name:         name,
		Dependencies: deps,
		RCOrder:      rcOrder,
		Options:      options.New(),
	}
}

func TestTopoOrderDependencyPrecedence(t *testing.T) {
	byName := map[string]*project.Project{
		"a": newTestProject("a", 1),
		"b": newTestProject("b", 2, "a"),
		"c": newTestProject("c", 3, "a", "b"),
	}
	got, err := topoOrder([]string{"c", "b", "a"}, byName)
	if err != nil {
		t.Fatalf("topoOrder: %v", err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("topoOrder = %v, want %v", got, want)
	}
}

func TestTopoOrderRCFileTieBreak(t *testing.T) {
	// b and c both have no dependencies; rc-file order must decide, not
	// name or map iteration order.
	byName := map[string]*project.Project{
		"c": newTestProject("c", 1),
		"b": newTestProject("b", 2),
	}
	got, err := topoOrder([]string{"b", "c"}, byName)
	if err != nil {
		t.Fatalf("topoOrder: %v", err)
	}
	want := []string{"c", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("topoOrder = %v, want %v", got, want)
	}
}

func TestTopoOrderProjectDatabasePathTieBreak(t *testing.T) {
	a := newTestProject("a", 0)
	a.ProjectPath = "kde/kdeutils/zzz"
	b := newTestProject("b", 0)
	b.ProjectPath = "kde/kdeutils/aaa"
	byName := map[string]*project.Project{"a": a, "b": b}

	got, err := topoOrder([]string{"a", "b"}, byName)
	if err != nil {
		t.Fatalf("topoOrder: %v", err)
	}
	want := []string{"b", "a"} // "aaa" sorts before "zzz"
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("topoOrder = %v, want %v", got, want)
	}
}

func TestTopoOrderCycleDetection(t *testing.T) {
	byName := map[string]*project.Project{
		"a": newTestProject("a", 1, "b"),
		"b": newTestProject("b", 2, "a"),
	}
	_, err := topoOrder([]string{"a", "b"}, byName)
	if err == nil {
		t.Fatal("expected a DependencyCycleError, got nil")
	}
	cycleErr, ok := err.(*kerrors.DependencyCycleError)
	if !ok {
		t.Fatalf("err = %T, want *kerrors.DependencyCycleError", err)
	}
	want := []string{"a", "b"}
	if !reflect.DeepEqual(cycleErr.Cycle, want) {
		t.Fatalf("Cycle = %v, want %v", cycleErr.Cycle, want)
	}
}

// A project selected by bare name (not by its group's name) must still see
// its group's options: findGroupFor locates the owning group but, unless it
// also writes the group's Options into the table's group scope, Table.Get
// falls back to an always-empty group scope and the value is silently
// dropped.
func TestResolveAppliesGroupOptionsWhenProjectSelectedByName(t *testing.T) {
	doc := &rcfile.Document{
		Global: map[string]string{},
		Groups: []rcfile.GroupNode{
			{Name: "kde-utils", Options: map[string]string{"use-projects": "kcalc", "cxxflags": "-DGROUP=1"}},
		},
		Projects: []rcfile.ProjectNode{
			{Name: "kcalc", Options: map[string]string{"repository": "https://invent.kde.org/utilities/kcalc.git"}},
		},
	}

	r := New(doc, nil, options.New())
	plan, err := r.Resolve(context.Background(), Selection{Selectors: []string{"kcalc"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(plan) != 1 || plan[0].Name != "kcalc" {
		t.Fatalf("plan = %v, want [kcalc]", plan)
	}
	if got := plan[0].Get("cxxflags"); got != "-DGROUP=1" {
		t.Errorf("Get(cxxflags) = %q, want -DGROUP=1 from the owning group", got)
	}
	if plan[0].Group != "kde-utils" {
		t.Errorf("Group = %q, want kde-utils", plan[0].Group)
	}
}

// The same applies to the no-selector "build everything in the rc-file"
// path, which resolves every group for every project up front rather than
// looking one up by name.
func TestResolveAppliesGroupOptionsWithNoSelectors(t *testing.T) {
	doc := &rcfile.Document{
		Global: map[string]string{},
		Groups: []rcfile.GroupNode{
			{Name: "kde-utils", Options: map[string]string{"use-projects": "kcalc", "cxxflags": "-DGROUP=1"}},
		},
		Projects: []rcfile.ProjectNode{
			{Name: "kcalc", Options: map[string]string{}},
		},
	}

	r := New(doc, nil, options.New())
	plan, err := r.Resolve(context.Background(), Selection{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(plan) != 1 || plan[0].Name != "kcalc" {
		t.Fatalf("plan = %v, want [kcalc]", plan)
	}
	if got := plan[0].Get("cxxflags"); got != "-DGROUP=1" {
		t.Errorf("Get(cxxflags) = %q, want -DGROUP=1 from the owning group", got)
	}
}

func TestFindCycleIsolatesComponentFromUpstreamNoise(t *testing.T) {
	// a depends on the cyclic pair b<->c, but a itself is not part of any
	// cycle and should not be reported as one.
	byName := map[string]*project.Project{
		"a": newTestProject("a", 1, "b"),
		"b": newTestProject("b", 2, "c"),
		"c": newTestProject("c", 3, "b"),
	}
	cycle := findCycle([]string{"a", "b", "c"}, byName)
	want := []string{"b", "c"}
	if !reflect.DeepEqual(cycle, want) {
		t.Fatalf("findCycle = %v, want %v", cycle, want)
	}
}
