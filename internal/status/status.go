// Package status implements the terminal status view of spec.md §4.6: one
// line per project, redrawn in place, colored when the terminal
// supports it and colorful-output hasn't been disabled. The redraw
// technique -- print every line, then move the cursor back up with
// "\033[%dA" -- is lifted directly from the teacher's
// internal/batch/batch.go refreshStatus/updateStatus; what's new is
// driving it from bus.Message instead of a single build loop, and gating
// color/TTY behavior through go-isatty, fatih/color, and x/term the way
// spec.md's status view requires.
package status

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/kde-builder/kde-builder/internal/bus"
)

// View renders one line per active project, refreshed in place.
type View struct {
	out        io.Writer
	fd         uintptr
	isTerminal bool
	colorful   bool

	mu         sync.Mutex
	lines      map[string]string // project name -> current status line
	order      []string          // first-seen order, for stable line positions
	last       string            // project whose line changed most recently
	lastRedraw time.Time
}

// New returns a View writing to out, whose underlying file descriptor is
// fd (used for TTY and width detection). colorfulOutput mirrors the
// colorful-output option; when false, color is disabled even on a TTY.
func New(out io.Writer, fd uintptr, colorfulOutput bool) *View {
	isTerm := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return &View{
		out:        out,
		fd:         fd,
		isTerminal: isTerm,
		colorful:   isTerm && colorfulOutput,
		lines:      make(map[string]string),
	}
}

// Width returns the terminal width, or a conservative default when fd is
// not a terminal.
func (v *View) Width() int {
	if !v.isTerminal {
		return 80
	}
	w, _, err := term.GetSize(int(v.fd))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// Handle updates the view for one bus message. Safe for concurrent use.
func (v *View) Handle(msg bus.Message) {
	switch m := msg.(type) {
	case bus.UpdateOk:
		v.set(m.ProjectName, v.colorize(color.FgGreen, "updated"))
	case bus.UpdateSkipped:
		v.set(m.ProjectName, v.colorize(color.FgYellow, "skipped: "+m.Reason))
	case bus.UpdateFailed:
		v.set(m.ProjectName, v.colorize(color.FgRed, "update failed: "+m.Err.Error()))
	case bus.BuildOk:
		v.set(m.ProjectName, v.colorize(color.FgGreen, "built"))
	case bus.BuildFailed:
		v.set(m.ProjectName, v.colorize(color.FgRed, m.Phase+" failed: "+m.Err.Error()))
	case bus.LogLine:
		v.set(m.ProjectName, m.Phase+": "+m.Line)
	case bus.PostBuildMessage:
		v.set(m.ProjectName, v.colorize(color.FgCyan, m.Text))
	case bus.EndOfStream:
		// Nothing to render; the scheduler's own completion summary covers
		// end-of-run reporting.
	}
	v.redraw()
}

func (v *View) colorize(attr color.Attribute, s string) string {
	if !v.colorful {
		return s
	}
	return color.New(attr).Sprint(s)
}

func (v *View) set(project, line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.lines[project]; !ok {
		v.order = append(v.order, project)
	}
	v.lines[project] = line
	v.last = project
}

// redraw reprints every tracked line and restores the cursor to the top
// of the block, throttled to avoid slowing the run down on chatty phases
// (spec.md §4.6, same throttle distri's batch scheduler applies). On a
// non-terminal it instead prints only the line that changed last.
func (v *View) redraw() {
	if !v.isTerminal {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.last == "" {
			return
		}
		fmt.Fprintf(v.out, "%s: %s\n", v.last, v.lines[v.last])
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if time.Since(v.lastRedraw) < 100*time.Millisecond {
		return
	}
	v.lastRedraw = time.Now()

	width := v.Width()
	for _, project := range v.order {
		line := project + ": " + v.lines[project]
		if len(line) > width {
			line = line[:width]
		}
		fmt.Fprintln(v.out, line)
	}
	fmt.Fprintf(v.out, "\033[%dA", len(v.order))
}

// Finish prints every line one last time without the cursor restore, so
// the final state remains visible after the run ends.
func (v *View) Finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, project := range v.order {
		fmt.Fprintf(v.out, "%s: %s\n", project, v.lines[project])
	}
}
