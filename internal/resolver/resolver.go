// Package resolver implements spec.md §4.2's resolver: rc-file nodes plus
// a list of selectors, and a project database, become an ordered,
// fully-resolved build plan. The dependency ordering itself is a
// hand-rolled, tie-break-aware Kahn's algorithm rather than
// gonum/graph/topo.Sort (which the teacher's internal/batch/batch.go uses
// for cycle detection but not for a deterministic final order): spec.md's
// ordering rule requires a specific tie-break (rc-file order, then
// project-database path) among topologically-equal candidates, which
// topo.Sort's node-iteration order cannot guarantee. When the hand-rolled
// pass does detect a cycle, topo.Sort is run a second time over the same
// edges -- exactly the teacher's "Break cycles" step -- solely to recover
// the precise cyclic component for the error message, rather than the
// coarser "every still-blocked node" set.
package resolver

import (
	"context"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/kde-builder/kde-builder/internal/gitutil"
	"github.com/kde-builder/kde-builder/internal/kerrors"
	"github.com/kde-builder/kde-builder/internal/options"
	"github.com/kde-builder/kde-builder/internal/project"
	"github.com/kde-builder/kde-builder/internal/projectdb"
	"github.com/kde-builder/kde-builder/internal/rcfile"
)

// BranchProber reports the currently checked-out branch of an existing
// source checkout, used by the hold-work-branches check (spec.md §4.2
// step 6).
type BranchProber interface {
	CurrentBranch(ctx context.Context, sourceDir string) (string, error)
}

type gitBranchProber struct{}

func (gitBranchProber) CurrentBranch(ctx context.Context, sourceDir string) (string, error) {
	return gitutil.New(sourceDir).CurrentBranch(ctx)
}

// DefaultBranchProber probes the branch with a real git invocation.
var DefaultBranchProber BranchProber = gitBranchProber{}

// Selection is the set of command-line inputs that drive and slice a
// resolve (spec.md §4.2, §6).
type Selection struct {
	Selectors       []string // project names, possibly "+"-prefixed
	IgnoreExtra     []string // --ignore-projects appends
	Resume          bool
	ResumeFrom      string
	ResumeAfter     string
	StopBefore      string
	StopAfter       string
	RebuildFailures bool
	PreviouslyFailed []string
}

// Resolver turns rc-file nodes and a project database into an ordered
// build plan.
type Resolver struct {
	Doc          *rcfile.Document
	DB           *projectdb.Database // may be nil if no kde-projects groups/selectors are used
	Table        *options.Table
	BranchProber BranchProber
}

// New returns a Resolver. db may be nil.
func New(doc *rcfile.Document, db *projectdb.Database, table *options.Table) *Resolver {
	return &Resolver{Doc: doc, DB: db, Table: table, BranchProber: DefaultBranchProber}
}

// Resolve computes the final, ordered, sliced build plan.
func (r *Resolver) Resolve(ctx context.Context, sel Selection) ([]*project.Project, error) {
	byName := make(map[string]*project.Project)
	var order []string // insertion order, for later reference only

	projByName := make(map[string]*rcfile.ProjectNode, len(r.Doc.Projects))
	for i := range r.Doc.Projects {
		projByName[r.Doc.Projects[i].Name] = &r.Doc.Projects[i]
	}
	groupByName := make(map[string]*rcfile.GroupNode, len(r.Doc.Groups))
	for i := range r.Doc.Groups {
		groupByName[r.Doc.Groups[i].Name] = &r.Doc.Groups[i]
	}
	overrideByName := make(map[string]*rcfile.OverrideNode, len(r.Doc.Overrides))
	for i := range r.Doc.Overrides {
		overrideByName[r.Doc.Overrides[i].Name] = &r.Doc.Overrides[i]
	}

	applyOverride := func(scope options.Scope, key, name string) {
		if ov, ok := overrideByName[name]; ok {
			for k, v := range ov.Options {
				r.Table.Set(scope, key, k, v)
			}
		}
	}

	addProjectNode := func(pn *rcfile.ProjectNode, group string) *project.Project {
		if p, exists := byName[pn.Name]; exists {
			return p
		}
		for k, v := range pn.Options {
			r.Table.Set(options.ScopeProject, pn.Name, k, v)
		}
		applyOverride(options.ScopeProject, pn.Name, pn.Name)
		p := &project.Project{Name: pn.Name, Group: group, Options: r.Table, RCOrder: pn.Order + 1}
		p.Repository = p.Get("repository")
		p.BuildKind = p.Get("override-build-system")
		byName[pn.Name] = p
		order = append(order, pn.Name)
		return p
	}

	addDBProject := func(path, group string, rcOrder int) *project.Project {
		parts := strings.Split(path, "/")
		name := parts[len(parts)-1]
		if p, exists := byName[name]; exists {
			return p
		}
		applyOverride(options.ScopeProject, name, name)
		p := &project.Project{Name: name, Group: group, ProjectPath: path, Options: r.Table}
		p.Repository = p.Get("repository")
		if p.Repository == "" {
			p.Repository = project.KDEProjectsToken
		}
		p.BuildKind = p.Get("override-build-system")
		byName[name] = p
		order = append(order, name)
		return p
	}

	expandKDEProjectsGroup := func(g *rcfile.GroupNode) error {
		for k, v := range g.Options {
			r.Table.Set(options.ScopeGroup, g.Name, k, v)
		}
		if r.DB == nil {
			return noDatabaseError(g.Name)
		}
		for _, pattern := range fields(g.Options["use-projects"]) {
			paths, err := r.DB.Expand(pattern)
			if err != nil {
				return err
			}
			for _, path := range paths {
				addDBProject(path, g.Name, math.MaxInt32)
			}
		}
		return nil
	}

	matchingRCProjects := func(pattern string) []*rcfile.ProjectNode {
		var out []*rcfile.ProjectNode
		if strings.HasSuffix(pattern, "*") {
			prefix := strings.TrimSuffix(pattern, "*")
			for i := range r.Doc.Projects {
				if strings.HasPrefix(r.Doc.Projects[i].Name, prefix) {
					out = append(out, &r.Doc.Projects[i])
				}
			}
			return out
		}
		if pn, ok := projByName[pattern]; ok {
			return []*rcfile.ProjectNode{pn}
		}
		return nil
	}

	findGroupFor := func(name string) string {
		for i := range r.Doc.Groups {
			g := &r.Doc.Groups[i]
			if g.Options["repository"] == project.KDEProjectsToken {
				continue
			}
			for _, pat := range fields(g.Options["use-projects"]) {
				for _, pn := range matchingRCProjects(pat) {
					if pn.Name == name {
						for k, v := range g.Options {
							r.Table.Set(options.ScopeGroup, g.Name, k, v)
						}
						return g.Name
					}
				}
			}
		}
		return ""
	}

	isKDEProjectsGroup := func(g *rcfile.GroupNode) bool {
		return g.Options["repository"] == project.KDEProjectsToken
	}

	if len(sel.Selectors) == 0 {
		for i := range r.Doc.Projects {
			pn := &r.Doc.Projects[i]
			addProjectNode(pn, findGroupFor(pn.Name))
		}
		for i := range r.Doc.Groups {
			g := &r.Doc.Groups[i]
			if isKDEProjectsGroup(g) {
				if err := expandKDEProjectsGroup(g); err != nil {
					return nil, err
				}
			}
		}
	} else {
		for _, s := range sel.Selectors {
			if strings.HasPrefix(s, "+") {
				name := strings.TrimPrefix(s, "+")
				if r.DB == nil {
					return nil, noDatabaseError(name)
				}
				paths, err := r.DB.Expand(name)
				if err != nil {
					return nil, err
				}
				for _, path := range paths {
					addDBProject(path, "", math.MaxInt32)
				}
				continue
			}
			if pn, ok := projByName[s]; ok {
				addProjectNode(pn, findGroupFor(s))
				continue
			}
			if g, ok := groupByName[s]; ok {
				if isKDEProjectsGroup(g) {
					if err := expandKDEProjectsGroup(g); err != nil {
						return nil, err
					}
				} else {
					for k, v := range g.Options {
						r.Table.Set(options.ScopeGroup, g.Name, k, v)
					}
					for _, pat := range fields(g.Options["use-projects"]) {
						for _, pn2 := range matchingRCProjects(pat) {
							addProjectNode(pn2, g.Name)
						}
					}
				}
				continue
			}
			if r.DB != nil {
				if paths, err := r.DB.Expand(s); err == nil {
					for _, path := range paths {
						addDBProject(path, "", math.MaxInt32)
					}
					continue
				}
			}
			return nil, &kerrors.UnknownProjectError{Selector: s}
		}
	}

	// Step 4: ignore-projects, global ∪ CLI, then group-scoped.
	globalIgnore := append(fields(r.Table.GetGlobal("ignore-projects")), sel.IgnoreExtra...)
	for name, p := range byName {
		path := p.ProjectPath
		if path == "" {
			path = p.Name
		}
		for _, pat := range globalIgnore {
			if projectdb.Ignore([]string{path}, pat) == nil {
				delete(byName, name)
				break
			}
		}
	}
	for i := range r.Doc.Groups {
		g := &r.Doc.Groups[i]
		raw, ok := r.Table.ScopeOnly(options.ScopeGroup, g.Name, "ignore-projects")
		if !ok {
			continue
		}
		for name, p := range byName {
			if p.Group != g.Name {
				continue
			}
			path := p.ProjectPath
			if path == "" {
				path = p.Name
			}
			for _, pat := range fields(raw) {
				if projectdb.Ignore([]string{path}, pat) == nil {
					delete(byName, name)
					break
				}
			}
		}
	}

	// Step 5: include-dependencies, transitive.
	if r.DB != nil {
		initial := make([]string, 0, len(byName))
		for name := range byName {
			initial = append(initial, name)
		}
		seen := make(map[string]bool)
		var addDeps func(name string) error
		addDeps = func(name string) error {
			if seen[name] {
				return nil
			}
			seen[name] = true
			p, ok := byName[name]
			if !ok {
				return nil
			}
			if p.Get("include-dependencies") != "true" {
				return nil
			}
			bg := p.Get("branch-group")
			deps, err := r.DB.Dependencies(dbKey(p), bg)
			if err != nil {
				return nil // no database entry for this project; nothing to expand
			}
			for _, depPath := range deps {
				parts := strings.Split(depPath, "/")
				depName := parts[len(parts)-1]
				if _, exists := byName[depName]; !exists {
					addDBProject(depPath, "", math.MaxInt32)
				}
				if err := addDeps(depName); err != nil {
					return err
				}
			}
			return nil
		}
		for _, name := range initial {
			if err := addDeps(name); err != nil {
				return nil, err
			}
		}
	}

	// Resolve paths and dependency edges, and apply hold-work-branches.
	for _, p := range byName {
		if err := p.ResolvePaths(); err != nil {
			return nil, err
		}
		if r.DB != nil {
			bg := p.Get("branch-group")
			if deps, err := r.DB.Dependencies(dbKey(p), bg); err == nil {
				for _, depPath := range deps {
					parts := strings.Split(depPath, "/")
					depName := parts[len(parts)-1]
					if _, ok := byName[depName]; ok {
						p.Dependencies = append(p.Dependencies, depName)
					}
				}
			}
		}
		if p.Get("hold-work-branches") == "true" {
			branch, err := r.BranchProber.CurrentBranch(ctx, p.SourceDir)
			if err == nil && (strings.HasPrefix(branch, "work/") || strings.HasPrefix(branch, "mr/")) {
				p.Held = true
			}
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	ordered, err := topoOrder(names, byName)
	if err != nil {
		return nil, err
	}

	sliced, err := slice(ordered, sel)
	if err != nil {
		return nil, err
	}

	plan := make([]*project.Project, 0, len(sliced))
	for _, name := range sliced {
		plan = append(plan, byName[name])
	}
	return plan, nil
}

func dbKey(p *project.Project) string {
	if p.ProjectPath != "" {
		return p.ProjectPath
	}
	return p.Name
}

func fields(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func noDatabaseError(name string) error {
	return &kerrors.UnknownProjectError{Selector: name}
}

// topoOrder performs a tie-break-aware Kahn's algorithm: among nodes whose
// dependencies are all satisfied, the one with the lowest (rc-file Order,
// ProjectPath) tie-break is emitted next (spec.md §4.2 Ordering rule).
func topoOrder(names []string, byName map[string]*project.Project) ([]string, error) {
	indegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
		indegree[n] = 0
	}
	for _, n := range names {
		for _, dep := range byName[n].Dependencies {
			if !present[dep] {
				continue
			}
			dependents[dep] = append(dependents[dep], n)
			indegree[n]++
		}
	}

	tieLess := func(a, b string) bool {
		pa, pb := byName[a], byName[b]
		oa, ob := projectOrderKey(pa), projectOrderKey(pb)
		if oa != ob {
			return oa < ob
		}
		pathA, pathB := pa.ProjectPath, pb.ProjectPath
		if pathA == "" {
			pathA = pa.Name
		}
		if pathB == "" {
			pathB = pb.Name
		}
		return pathA < pathB
	}

	var ready []string
	for _, n := range names {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	var out []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return tieLess(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(out) != len(names) {
		blocked := make([]string, 0, len(names)-len(out))
		for _, n := range names {
			if indegree[n] > 0 {
				blocked = append(blocked, n)
			}
		}
		return nil, &kerrors.DependencyCycleError{Cycle: findCycle(blocked, byName)}
	}
	return out, nil
}

// namedNode adapts a project name to graph.Node for gonum's topo.Sort.
type namedNode struct {
	id   int64
	name string
}

func (n namedNode) ID() int64 { return n.id }

// findCycle narrows blocked (every node topoOrder could not emit) down to
// one actual cyclic component, via the same topo.Sort-then-inspect-
// Unorderable technique the teacher's internal/batch/batch.go build
// graph uses to find and break cycles.
func findCycle(blocked []string, byName map[string]*project.Project) []string {
	g := simple.NewDirectedGraph()
	nodes := make(map[string]namedNode, len(blocked))
	present := make(map[string]bool, len(blocked))
	for _, n := range blocked {
		present[n] = true
	}
	for i, n := range blocked {
		nodes[n] = namedNode{id: int64(i), name: n}
		g.AddNode(nodes[n])
	}
	for _, n := range blocked {
		for _, dep := range byName[n].Dependencies {
			if present[dep] {
				g.SetEdge(g.NewEdge(nodes[n], nodes[dep]))
			}
		}
	}

	_, err := topo.Sort(g)
	uo, ok := err.(topo.Unorderable)
	if !ok || len(uo) == 0 {
		sort.Strings(blocked)
		return blocked
	}
	component := uo[0]
	cycle := make([]string, 0, len(component))
	for _, gn := range component {
		cycle = append(cycle, gn.(namedNode).name)
	}
	sort.Strings(cycle)
	return cycle
}

var _ graph.Node = namedNode{}

// projectOrderKey returns a project's rc-file appearance order, or
// math.MaxInt32 for database-only projects (spec.md §4.2 tie-break).
func projectOrderKey(p *project.Project) int {
	if p.RCOrder != 0 {
		return p.RCOrder
	}
	return math.MaxInt32
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// slice applies --resume/--resume-from/--resume-after/--stop-before/
// --stop-after/--rebuild-failures as post-ordering slicing operations
// (spec.md §4.2 step 8, §8 invariant 3).
func slice(names []string, sel Selection) ([]string, error) {
	start, end := 0, len(names)

	if sel.Resume {
		for i, n := range names {
			if containsStr(sel.PreviouslyFailed, n) {
				start = i
				break
			}
		}
	}
	if sel.ResumeFrom != "" {
		idx := indexOf(names, sel.ResumeFrom)
		if idx < 0 {
			return nil, &kerrors.UnknownProjectError{Selector: sel.ResumeFrom}
		}
		start = idx
	}
	if sel.ResumeAfter != "" {
		idx := indexOf(names, sel.ResumeAfter)
		if idx < 0 {
			return nil, &kerrors.UnknownProjectError{Selector: sel.ResumeAfter}
		}
		start = idx + 1
	}
	if sel.StopBefore != "" {
		idx := indexOf(names, sel.StopBefore)
		if idx < 0 {
			return nil, &kerrors.UnknownProjectError{Selector: sel.StopBefore}
		}
		end = idx
	}
	if sel.StopAfter != "" {
		idx := indexOf(names, sel.StopAfter)
		if idx < 0 {
			return nil, &kerrors.UnknownProjectError{Selector: sel.StopAfter}
		}
		end = idx + 1
	}
	if start > end {
		start = end
	}

	sliced := append([]string{}, names[start:end]...)
	if sel.RebuildFailures {
		var filtered []string
		for _, n := range sliced {
			if containsStr(sel.PreviouslyFailed, n) {
				filtered = append(filtered, n)
			}
		}
		return filtered, nil
	}
	return sliced, nil
}

func containsStr(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
