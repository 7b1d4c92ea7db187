// Package buildsystem implements the build-system driver and its
// plug-ins (spec.md §4.5): auto-detection of the build system a
// project's source tree uses, and the command pipeline that configures,
// builds, tests, installs, and uninstalls it. Each plug-in follows the
// teacher's internal/build/buildcmake.go and buildmeson.go shape -- given
// the project's resolved options, build a [][]string pipeline of argv
// vectors -- generalized from a fixed distri sandbox layout (DISTRI_*
// env vars, a single Ninja generator) to the project's own directories
// and its choice of generator/flags.
package buildsystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/kde-builder/kde-builder/internal/kerrors"
	"github.com/kde-builder/kde-builder/internal/logging"
	"github.com/kde-builder/kde-builder/internal/procutil"
	"github.com/kde-builder/kde-builder/internal/project"
)

// Plugin detects and drives one build system.
type Plugin interface {
	// Name identifies the plug-in, e.g. "kde-cmake".
	Name() string
	// Detect reports whether sourceDir's layout matches this build system.
	Detect(sourceDir string) bool
	// NeedsReconfigure reports whether configure must run again before
	// build, e.g. because build-dir lacks a cache file or a .refresh-me
	// marker is present (spec.md §4.5).
	NeedsReconfigure(p *project.Project) bool
	// Pipeline returns the argv vectors for phase ("build-system-setup",
	// "build", "test", "install", "uninstall"); nil if the phase is a
	// no-op for this plug-in (e.g. most plug-ins have no "test" pipeline
	// unless make-test/ctest is requested).
	Pipeline(p *project.Project, phase string) ([][]string, error)
}

// priority is the auto-detection order, most to least specific (spec.md
// §4.5: "KDE-CMake > Generic-CMake > Meson > qmake > autotools >
// generic").
var priority = []Plugin{
	kdeCMake{},
	genericCMake{},
	meson{},
	qmake{},
	autotools{},
	generic{},
}

// Select returns the plug-in forced by forcedKind if non-empty, otherwise
// the first plug-in (in priority order) whose Detect matches sourceDir, or
// the generic plug-in when none matches.
func Select(sourceDir, forcedKind string) (Plugin, error) {
	if forcedKind != "" {
		for _, plugin := range priority {
			if plugin.Name() == forcedKind {
				return plugin, nil
			}
		}
		return nil, &kerrors.ConfigError{Msg: "unknown override-build-system " + forcedKind}
	}
	for _, plugin := range priority {
		if plugin.Detect(sourceDir) {
			return plugin, nil
		}
	}
	return generic{}, nil
}

// refreshMarker is the marker file name that forces a reconfigure
// (spec.md §4.5 ".refresh-me").
const refreshMarker = ".refresh-me"

func hasRefreshMarker(p *project.Project) bool {
	_, err := os.Stat(filepath.Join(p.BuildDir, refreshMarker))
	return err == nil
}

func clearRefreshMarker(p *project.Project) {
	os.Remove(filepath.Join(p.BuildDir, refreshMarker))
}

func jobs(p *project.Project) string {
	n := p.Get("num-cores")
	if n == "" || n == "auto" {
		return strconv.Itoa(runtime.NumCPU())
	}
	return n
}

func fieldsOrEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// Runner executes a Plugin's pipelines and satisfies
// internal/scheduler.Builder.
type Runner struct {
	// LogLine is called with each line of subprocess output, for the
	// status view and per-project log file.
	LogLine func(projectName, phase, line string)
	// Niceness, when non-zero, is applied to every spawned process. The
	// Runner sets no I/O priority or CPU affinity.
	Niceness int
}

// RunPhase runs phase for p using its auto-detected (or forced) build
// system plug-in.
func (r *Runner) RunPhase(ctx context.Context, p *project.Project, phase string) error {
	plugin, err := Select(p.SourceDir, p.BuildKind)
	if err != nil {
		return err
	}

	if phase == "build-system-setup" {
		if !plugin.NeedsReconfigure(p) && !hasRefreshMarker(p) && p.Get("reconfigure") != "true" {
			return nil
		}
	}

	pipeline, err := plugin.Pipeline(p, phase)
	if err != nil {
		return &kerrors.ConfigureError{Project: p.Name, Err: err}
	}
	if pipeline == nil {
		return nil
	}

	if err := os.MkdirAll(p.BuildDir, 0o755); err != nil {
		return &kerrors.FilesystemError{Op: "mkdir build-dir", Err: err}
	}

	for _, argv := range pipeline {
		if err := r.run(ctx, p, phase, argv); err != nil {
			return wrapPhaseError(phase, p.Name, err)
		}
	}
	if phase == "build-system-setup" {
		clearRefreshMarker(p)
	}
	return nil
}

func wrapPhaseError(phase, name string, err error) error {
	switch phase {
	case "build-system-setup":
		return &kerrors.ConfigureError{Project: name, Err: err}
	case "build":
		return &kerrors.BuildError{Project: name, Err: err}
	case "test":
		return &kerrors.TestError{Project: name, Err: err}
	case "install":
		return &kerrors.InstallError{Project: name, Err: err}
	default:
		return err
	}
}

func (r *Runner) run(ctx context.Context, p *project.Project, phase string, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = p.BuildDir
	cmd.Env = os.Environ()
	procutil.Detach(cmd)
	cmd.Cancel = func() error {
		return procutil.TerminateGroup(cmd.Process.Pid, syscall.SIGKILL)
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	var logFile *os.File
	if p.LogDir != "" {
		if err := os.MkdirAll(p.LogDir, 0o755); err == nil {
			logFile, _ = os.OpenFile(filepath.Join(p.LogDir, logging.PhaseLogFileName(phase)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if logFile != nil {
			defer logFile.Close()
		}
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			line := scanner.Text()
			if logFile != nil {
				fmt.Fprintln(logFile, line)
			}
			if r.LogLine != nil {
				r.LogLine(p.Name, phase, line)
			}
		}
	}()

	if err := cmd.Start(); err != nil {
		pw.Close()
		<-done
		return err
	}
	if r.Niceness != 0 {
		_ = procutil.SetNiceness(cmd.Process.Pid, r.Niceness)
	}

	err := cmd.Wait()
	pw.Close()
	<-done
	return err
}

func buildDirFlag(p *project.Project, flag string) []string {
	return append([]string{}, fieldsOrEmpty(p.Get(flag))...)
}
