package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/kde-builder/kde-builder/internal/bus"
	"github.com/kde-builder/kde-builder/internal/options"
	"github.com/kde-builder/kde-builder/internal/project"
)

func newPlanProject(name string, deps ...string) *project.Project {
	return &project.Project{
		Name:         name,
		Dependencies: deps,
		Options:      options.New(),
	}
}

type fakeUpdater struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (u *fakeUpdater) Update(ctx context.Context, p *project.Project) (bool, string, string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail[p.Name] {
		return false, "", "", errUpdateFailed{p.Name}
	}
	return true, "deadbeef", "", nil
}

type errUpdateFailed struct{ name string }

func (e errUpdateFailed) Error() string { return "update failed: " + e.name }

type fakeBuilder struct {
	mu   sync.Mutex
	ran  []string
	fail map[string]bool // "project:phase" -> error out instead of succeeding
}

type errBuildFailed struct{ name, phase string }

func (e errBuildFailed) Error() string { return e.name + " " + e.phase + " failed" }

func (b *fakeBuilder) RunPhase(ctx context.Context, p *project.Project, phase string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ran = append(b.ran, p.Name+":"+phase)
	if b.fail[p.Name+":"+phase] {
		return errBuildFailed{p.Name, phase}
	}
	return nil
}

func TestSchedulerSkipsDependentsOnFailure(t *testing.T) {
	a := newPlanProject("a")
	b := newPlanProject("b", "a")

	updater := &fakeUpdater{fail: map[string]bool{"a": true}}
	builder := &fakeBuilder{}

	var mu sync.Mutex
	var msgs []bus.Message
	sched := &Scheduler{
		Plan:    []*project.Project{a, b},
		Updater: updater,
		Builder: builder,
		Opts:    Options{Workers: 1, StopOnFailure: true},
		Monitor: func(m bus.Message) {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, m)
		},
	}

	if err := sched.Run(context.Background()); err == nil {
		t.Fatal("expected an error from a's failed update")
	}

	var bSkipped bool
	for _, m := range msgs {
		if s, ok := m.(bus.UpdateSkipped); ok && s.ProjectName == "b" {
			bSkipped = true
		}
	}
	if !bSkipped {
		t.Errorf("expected b's update to be skipped after a failed, got %#v", msgs)
	}
	for _, ran := range builder.ran {
		if ran == "b:build" {
			t.Errorf("b should not have been built after its dependency failed")
		}
	}
}

func TestSchedulerRunsIndependentProjects(t *testing.T) {
	a := newPlanProject("a")
	b := newPlanProject("b")

	updater := &fakeUpdater{}
	builder := &fakeBuilder{}

	sched := &Scheduler{
		Plan:    []*project.Project{a, b},
		Updater: updater,
		Builder: builder,
		Opts:    Options{Workers: 1},
	}

	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := map[string]bool{}
	for _, r := range builder.ran {
		found[r] = true
	}
	for _, phase := range []string{"a:build-system-setup", "a:build", "a:install", "b:build-system-setup", "b:build", "b:install"} {
		if !found[phase] {
			t.Errorf("expected phase %q to have run, ran = %v", phase, builder.ran)
		}
	}
}

func TestSchedulerEmitsBuildOkOnSuccess(t *testing.T) {
	a := newPlanProject("a")

	var mu sync.Mutex
	var msgs []bus.Message
	sched := &Scheduler{
		Plan:    []*project.Project{a},
		Updater: &fakeUpdater{},
		Builder: &fakeBuilder{},
		Opts:    Options{Workers: 1},
		Monitor: func(m bus.Message) {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, m)
		},
	}

	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var gotBuildOk bool
	for _, m := range msgs {
		if ok, isOk := m.(bus.BuildOk); isOk && ok.ProjectName == "a" {
			gotBuildOk = true
		}
	}
	if !gotBuildOk {
		t.Errorf("expected a bus.BuildOk for a, got %#v", msgs)
	}
}

func TestSchedulerEmitsBuildFailedWithPhase(t *testing.T) {
	a := newPlanProject("a")

	var mu sync.Mutex
	var msgs []bus.Message
	sched := &Scheduler{
		Plan:    []*project.Project{a},
		Updater: &fakeUpdater{},
		Builder: &fakeBuilder{fail: map[string]bool{"a:build": true}},
		Opts:    Options{Workers: 1},
		Monitor: func(m bus.Message) {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, m)
		},
	}

	if err := sched.Run(context.Background()); err == nil {
		t.Fatal("expected an error from a's failed build phase")
	}

	var failed *bus.BuildFailed
	for i := range msgs {
		if f, ok := msgs[i].(bus.BuildFailed); ok {
			failed = &f
		}
	}
	if failed == nil {
		t.Fatalf("expected a bus.BuildFailed message, got %#v", msgs)
	}
	if failed.ProjectName != "a" || failed.Phase != "build" {
		t.Errorf("BuildFailed = %+v, want ProjectName=a Phase=build", failed)
	}
}

func TestSchedulerReportsHeldWorkBranchReason(t *testing.T) {
	a := newPlanProject("a")
	a.Held = true

	var mu sync.Mutex
	var msgs []bus.Message
	sched := &Scheduler{
		Plan:    []*project.Project{a},
		Updater: &fakeUpdater{},
		Builder: &fakeBuilder{},
		Opts:    Options{Workers: 1},
		Monitor: func(m bus.Message) {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, m)
		},
	}

	if err := sched.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var gotReason string
	for _, m := range msgs {
		if s, ok := m.(bus.UpdateSkipped); ok && s.ProjectName == "a" {
			gotReason = s.Reason
		}
	}
	if gotReason != "held work branch" {
		t.Errorf("UpdateSkipped.Reason = %q, want %q", gotReason, "held work branch")
	}
}
