// Command kde-builder drives a source checkout and build of a federation
// of interdependent KDE projects, per the component design of spec.md
// §4: load the rc-file and project database, resolve a build plan,
// then run it through the update/build scheduler.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kde-builder/kde-builder/internal/bus"
	"github.com/kde-builder/kde-builder/internal/buildsystem"
	"github.com/kde-builder/kde-builder/internal/gitupdater"
	"github.com/kde-builder/kde-builder/internal/kerrors"
	"github.com/kde-builder/kde-builder/internal/logging"
	"github.com/kde-builder/kde-builder/internal/options"
	"github.com/kde-builder/kde-builder/internal/procutil"
	"github.com/kde-builder/kde-builder/internal/project"
	"github.com/kde-builder/kde-builder/internal/projectdb"
	"github.com/kde-builder/kde-builder/internal/rcfile"
	"github.com/kde-builder/kde-builder/internal/resolver"
	"github.com/kde-builder/kde-builder/internal/scheduler"
	"github.com/kde-builder/kde-builder/internal/state"
	"github.com/kde-builder/kde-builder/internal/status"
)

// Exit codes per spec.md §6.
const (
	exitOK              = 0
	exitGeneralFailure  = 1
	exitPartialFailure  = 2 // some projects built, others failed
	exitConfigError     = 3
	exitUnknownSelector = 4
	exitDependencyCycle = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("kde-builder", flag.ContinueOnError)
	rcFile := fs.String("rc-file", "", "path to the rc-file (default: "+options.DefaultConfigPath()+")")
	pretend := fs.Bool("pretend", false, "resolve and print the build plan without running it")
	debug := fs.Bool("debug", false, "force DEBUG-level logging")
	async := fs.Bool("async", true, "run update and build phases concurrently across projects")
	stopOnFailure := fs.Bool("stop-on-failure", true, "abandon a project's dependents when it fails")
	jobs := fs.Int("jobs", 1, "number of concurrent builder workers")
	ignoreProjects := fs.String("ignore-projects", "", "space-separated extra ignore-projects patterns")
	resume := fs.Bool("resume", false, "resume after the last run's first failure")
	resumeFrom := fs.String("resume-from", "", "resume the plan starting at this project")
	resumeAfter := fs.String("resume-after", "", "resume the plan starting after this project")
	stopBefore := fs.String("stop-before", "", "stop the plan before this project")
	stopAfter := fs.String("stop-after", "", "stop the plan after this project")
	rebuildFailures := fs.Bool("rebuild-failures", false, "only run projects that failed last run")
	includeDependencies := fs.Bool("include-dependencies", false, "transitively include selected projects' dependencies")
	noSrc := fs.Bool("no-src", false, "skip the update phase for every selected project")
	buildOnly := fs.Bool("build-only", false, "run only the build phase")

	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}
	selectors := fs.Args()

	path := *rcFile
	if path == "" {
		path = options.DefaultConfigPath()
	}
	doc, err := rcfile.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kde-builder:", err)
		return exitConfigError
	}

	table := options.New()
	for k, v := range doc.Global {
		if err := table.Set(options.ScopeGlobal, "", k, v); err != nil {
			fmt.Fprintln(os.Stderr, "kde-builder:", err)
			return exitConfigError
		}
	}
	if table.GetGlobal("source-dir") == "" {
		table.SetSticky(options.ScopeGlobal, "", "source-dir", options.DefaultSourceRoot())
	}
	if table.GetGlobal("build-dir") == "" {
		table.SetSticky(options.ScopeGlobal, "", "build-dir", options.DefaultBuildRoot())
	}
	if table.GetGlobal("log-dir") == "" {
		table.SetSticky(options.ScopeGlobal, "", "log-dir", options.DefaultLogRoot())
	}
	if *includeDependencies {
		table.SetSticky(options.ScopeGlobal, "", "include-dependencies", "true")
	}
	if *noSrc {
		table.SetSticky(options.ScopeGlobal, "", "no-src", "true")
	}
	if *buildOnly {
		table.SetSticky(options.ScopeGlobal, "", "build-only", "true")
	}

	ctrl := procutil.NewController()
	defer ctrl.Stop()

	var db *projectdb.Database
	if usesProjectDatabase(doc, selectors) {
		dbDir := table.GetGlobal("project-database-dir")
		if dbDir == "" {
			dbDir = os.ExpandEnv("$HOME/.cache/kde-builder/kde-projects")
		}
		dbURL := table.GetGlobal("project-database-url")
		if dbURL == "" {
			dbURL = "https://invent.kde.org/sysadmin/repo-metadata.git"
		}
		if err := projectdb.Fetch(ctrl.Context(), dbDir, dbURL); err != nil {
			fmt.Fprintln(os.Stderr, "kde-builder: fetching project database:", err)
			return exitGeneralFailure
		}
		db, err = projectdb.Load(dbDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "kde-builder:", err)
			return exitGeneralFailure
		}
	}

	st, err := state.Load(options.DefaultPersistentDataPath())
	if err != nil {
		fmt.Fprintln(os.Stderr, "kde-builder:", err)
		return exitGeneralFailure
	}

	res := resolver.New(doc, db, table)
	sel := resolver.Selection{
		Selectors:       selectors,
		IgnoreExtra:     strings.Fields(*ignoreProjects),
		Resume:          *resume,
		ResumeFrom:      *resumeFrom,
		ResumeAfter:     *resumeAfter,
		StopBefore:      *stopBefore,
		StopAfter:       *stopAfter,
		RebuildFailures: *rebuildFailures,
		PreviouslyFailed: previouslyFailed(st),
	}

	plan, err := res.Resolve(ctrl.Context(), sel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kde-builder:", err)
		return exitCodeFor(err)
	}

	if *pretend {
		for _, p := range plan {
			fmt.Printf("%s (%s)\n", p.Name, strings.Join(p.Phases(), ","))
		}
		return exitOK
	}

	logRoot := table.GetGlobal("log-dir")
	runDir, err := logging.CreateRunDir(logRoot, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "kde-builder: creating run log directory:", err)
		return exitGeneralFailure
	}
	for _, p := range plan {
		p.LogDir = filepath.Join(runDir, p.Name)
	}

	root, err := logging.New(logging.Config{LogDir: runDir, Debug: *debug})
	if err != nil {
		fmt.Fprintln(os.Stderr, "kde-builder:", err)
		return exitGeneralFailure
	}
	schedLog := root.Component("scheduler")

	if table.GetGlobal("purge-old-logs") == "true" {
		if freedDirs, freedBytes, err := logging.PurgeOldRuns(logRoot, 10); err != nil {
			schedLog.WithError(err).Warn("failed to purge old run directories")
		} else if summary := logging.PurgeSummary(freedDirs, freedBytes); summary != "" {
			schedLog.Info(summary)
		}
	}

	view := status.New(os.Stdout, os.Stdout.Fd(), table.GetGlobal("colorful-output") == "true")

	failures := 0
	statusOf := make(map[string]string, len(plan))
	sched := &scheduler.Scheduler{
		Plan:    plan,
		Updater: &gitupdater.Updater{DB: db},
		Builder: &buildsystem.Runner{LogLine: func(projectName, phase, line string) {
			view.Handle(bus.LogLine{ProjectName: projectName, Phase: phase, Line: line})
		}},
		Opts: scheduler.Options{
			Workers:       *jobs,
			Async:         *async,
			StopOnFailure: *stopOnFailure,
		},
		Monitor: func(msg bus.Message) {
			view.Handle(msg)
			recordOutcome(st, msg)
			switch m := msg.(type) {
			case bus.UpdateOk:
				statusOf[m.ProjectName] = "updated"
			case bus.UpdateSkipped:
				statusOf[m.ProjectName] = "skipped: " + m.Reason
			case bus.UpdateFailed:
				failures++
				statusOf[m.ProjectName] = "failed: " + m.Err.Error()
				if p, ok := planProject(plan, m.ProjectName); ok {
					_ = logging.LinkErrorLog(p.LogDir, logging.PhaseLogFileName("update"))
				}
			case bus.BuildOk:
				statusOf[m.ProjectName] = "built"
			case bus.BuildFailed:
				failures++
				statusOf[m.ProjectName] = "failed: " + m.Phase + ": " + m.Err.Error()
				if p, ok := planProject(plan, m.ProjectName); ok {
					_ = logging.LinkErrorLog(p.LogDir, logging.PhaseLogFileName(m.Phase))
				}
			}
		},
	}

	runErr := sched.Run(ctrl.Context())
	view.Finish()
	if err := st.Save(); err != nil {
		schedLog.WithError(err).Warn("failed to save persistent state")
	}

	lines := make([]string, 0, len(plan))
	for _, p := range plan {
		outcome, ok := statusOf[p.Name]
		if !ok {
			outcome = "not run"
		}
		lines = append(lines, p.Name+": "+outcome)
	}
	if err := logging.WriteStatusList(runDir, lines); err != nil {
		schedLog.WithError(err).Warn("failed to write status-list.log")
	}

	if runErr != nil {
		schedLog.WithError(runErr).Error("build failed")
		if failures > 0 && failures < len(plan) {
			return exitPartialFailure
		}
		return exitGeneralFailure
	}
	return exitOK
}

func usesProjectDatabase(doc *rcfile.Document, selectors []string) bool {
	for _, g := range doc.Groups {
		if g.Options["repository"] == project.KDEProjectsToken {
			return true
		}
	}
	for _, s := range selectors {
		if strings.HasPrefix(s, "+") {
			return true
		}
	}
	return false
}

func planProject(plan []*project.Project, name string) (*project.Project, bool) {
	for _, p := range plan {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func previouslyFailed(st *state.Store) []string {
	var out []string
	for name, p := range st.Projects {
		if p.LastFailedPhase != "" {
			out = append(out, name)
		}
	}
	return out
}

func recordOutcome(st *state.Store, msg bus.Message) {
	switch m := msg.(type) {
	case bus.UpdateOk:
		p := st.Project(m.ProjectName)
		p.LastBuiltCommit = m.Revision
		p.LastFailedPhase = ""
	case bus.UpdateFailed:
		p := st.Project(m.ProjectName)
		p.LastFailedPhase = "update"
	case bus.BuildOk:
		p := st.Project(m.ProjectName)
		p.LastFailedPhase = ""
	case bus.BuildFailed:
		p := st.Project(m.ProjectName)
		p.LastFailedPhase = m.Phase
	}
}

func exitCodeFor(err error) int {
	switch err.(type) {
	case *kerrors.UnknownProjectError:
		return exitUnknownSelector
	case *kerrors.DependencyCycleError:
		return exitDependencyCycle
	case *kerrors.ConfigError, *kerrors.UnknownOptionError:
		return exitConfigError
	default:
		return exitGeneralFailure
	}
}
