// Package scheduler runs the build plan's three cooperating peers (spec.md
// §4.3): an updater that walks the plan in order running each project's
// update phase, a builder worker pool that runs configure/build/install
// once a project's update has landed and its dependencies have finished,
// and monitor goroutines that relay both streams to Scheduler.Monitor and
// record each update outcome for the builder. The peers are goroutines connected by
// internal/bus.Bus, following the worker-pool-plus-errgroup shape of the
// teacher's internal/batch/batch.go scheduler (itself gonum/graph-driven),
// generalized from "build a package DAG" to "run update then build phases
// over a pre-ordered plan with a ready-dependency gate".
package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/kde-builder/kde-builder/internal/bus"
	"github.com/kde-builder/kde-builder/internal/project"
)

// Updater is the plug-in that runs a project's update phase (spec.md
// §4.4). Implemented by internal/gitupdater.
type Updater interface {
	Update(ctx context.Context, p *project.Project) (ok bool, revision string, fromCommit string, err error)
}

// Builder is the plug-in that runs a project's build-system-setup, build,
// install, or uninstall phases (spec.md §4.5). Implemented by
// internal/buildsystem.
type Builder interface {
	RunPhase(ctx context.Context, p *project.Project, phase string) error
}

// Options configures one Run.
type Options struct {
	Workers         int  // builder worker pool size; 1 when Async is false
	Async           bool // spec.md §5 "async": update and build run concurrently across projects; when false the updater finishes the plan before the first build
	StopOnFailure   bool // spec.md §5: abandon dependents of a failed project
}

// Scheduler runs one build plan to completion.
type Scheduler struct {
	Plan     []*project.Project
	Updater  Updater
	Builder  Builder
	Opts     Options
	Monitor  func(bus.Message) // invoked for every message, in arrival order; must not block long
}

// result records a completed project's outcome for dependency gating.
type result struct {
	ok  bool
	err error
}

// Run drives the plan to completion or until ctx is canceled. It returns
// the first project's error in plan order (an update error counts), or nil if every reachable project
// succeeded (projects abandoned under StopOnFailure are not themselves
// errors).
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updaterBus := bus.New(len(s.Plan) + 1)
	builderBus := bus.New(len(s.Plan)*4 + 1)

	byName := make(map[string]*project.Project, len(s.Plan))
	for _, p := range s.Plan {
		byName[p.Name] = p
	}

	var mu sync.Mutex
	results := make(map[string]result, len(s.Plan))
	ready := make(map[string]chan struct{}, len(s.Plan))
	built := make(map[string]chan struct{}, len(s.Plan)) // closed once a project's build outcome is recorded
	for _, p := range s.Plan {
		ready[p.Name] = make(chan struct{}, 1)
		built[p.Name] = make(chan struct{})
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer updaterBus.Close()
		for _, p := range s.Plan {
			if ctx.Err() != nil {
				updaterBus.Send(bus.UpdateSkipped{ProjectName: p.Name, Reason: "canceled"})
				continue
			}
			if !hasPhase(p, "update") {
				reason := "update phase disabled"
				if p.Held {
					reason = "held work branch"
				}
				updaterBus.Send(bus.UpdateSkipped{ProjectName: p.Name, Reason: reason})
				continue
			}
			if s.Opts.StopOnFailure && dependencyFailed(p, &mu, results) {
				updaterBus.Send(bus.UpdateSkipped{ProjectName: p.Name, Reason: "dependency failed"})
				continue
			}
			ok, revision, fromCommit, err := s.Updater.Update(ctx, p)
			if err != nil {
				updaterBus.Send(bus.UpdateFailed{ProjectName: p.Name, Err: err})
				continue
			}
			if !ok {
				updaterBus.Send(bus.UpdateSkipped{ProjectName: p.Name, Reason: "already up to date"})
				continue
			}
			updaterBus.Send(bus.UpdateOk{ProjectName: p.Name, Revision: revision, FromCommit: fromCommit})
		}
		updaterBus.Send(bus.EndOfStream{Producer: "updater"})
		return nil
	})

	// monitorForUpdater relays the updater stream to s.Monitor and signals
	// each project's ready channel once its update phase (or skip/failure)
	// has been recorded -- the builder waits on this before starting.
	eg.Go(func() error {
		for msg := range updaterBus.Recv() {
			if s.Monitor != nil {
				s.Monitor(msg)
			}
			switch m := msg.(type) {
			case bus.UpdateOk:
				recordResult(&mu, results, m.ProjectName, true, nil)
				close(ready[m.ProjectName])
			case bus.UpdateSkipped:
				recordResult(&mu, results, m.ProjectName, true, nil)
				close(ready[m.ProjectName])
			case bus.UpdateFailed:
				recordResult(&mu, results, m.ProjectName, false, m.Err)
				close(ready[m.ProjectName])
			}
		}
		return nil
	})

	workers := s.Opts.Workers
	if !s.Opts.Async || workers < 1 {
		workers = 1
	}
	work := make(chan *project.Project, len(s.Plan))

	eg.Go(func() error {
		defer builderBus.Close()
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for p := range work {
					s.buildOne(ctx, p, &mu, results, builderBus)
					close(built[p.Name])
				}
			}()
		}

		if !s.Opts.Async {
			for _, p := range s.Plan {
				<-ready[p.Name]
			}
		}
		for _, p := range s.Plan {
			select {
			case <-ready[p.Name]:
			case <-ctx.Done():
				close(work)
				wg.Wait()
				return ctx.Err()
			}
			for _, dep := range p.Dependencies {
				if ch, ok := built[dep]; ok {
					<-ch
				}
			}
			mu.Lock()
			failed := s.Opts.StopOnFailure && dependencyFailedLocked(p, results)
			mu.Unlock()
			if failed {
				builderBus.Send(bus.UpdateSkipped{ProjectName: p.Name, Reason: "dependency failed"})
				recordResult(&mu, results, p.Name+":build", false, xerrors.New("dependency failed"))
				close(built[p.Name])
				continue
			}
			work <- p
		}
		close(work)
		wg.Wait()
		builderBus.Send(bus.EndOfStream{Producer: "builder"})
		return nil
	})

	eg.Go(func() error {
		for msg := range builderBus.Recv() {
			if s.Monitor != nil {
				s.Monitor(msg)
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	for _, p := range s.Plan {
		mu.Lock()
		r := results[p.Name+":build"]
		mu.Unlock()
		if !r.ok && r.err != nil {
			return r.err
		}
	}
	return nil
}

func (s *Scheduler) buildOne(ctx context.Context, p *project.Project, mu *sync.Mutex, results map[string]result, out *bus.Bus) {
	mu.Lock()
	updateResult := results[p.Name]
	mu.Unlock()
	if !updateResult.ok {
		recordResult(mu, results, p.Name+":build", false, updateResult.err)
		return
	}

	for _, phase := range p.Phases() {
		if phase == "update" {
			continue
		}
		if err := s.Builder.RunPhase(ctx, p, phase); err != nil {
			out.Send(bus.BuildFailed{ProjectName: p.Name, Phase: phase, Err: err})
			recordResult(mu, results, p.Name+":build", false, err)
			return
		}
	}
	out.Send(bus.BuildOk{ProjectName: p.Name})
	recordResult(mu, results, p.Name+":build", true, nil)
}

func recordResult(mu *sync.Mutex, results map[string]result, key string, ok bool, err error) {
	mu.Lock()
	results[key] = result{ok: ok, err: err}
	mu.Unlock()
}

func dependencyFailed(p *project.Project, mu *sync.Mutex, results map[string]result) bool {
	mu.Lock()
	defer mu.Unlock()
	return dependencyFailedLocked(p, results)
}

func dependencyFailedLocked(p *project.Project, results map[string]result) bool {
	for _, dep := range p.Dependencies {
		if r, ok := results[dep+":build"]; ok && !r.ok {
			return true
		}
		if r, ok := results[dep]; ok && !r.ok {
			return true
		}
	}
	return false
}

func hasPhase(p *project.Project, phase string) bool {
	for _, ph := range p.Phases() {
		if ph == phase {
			return true
		}
	}
	return false
}
