package status

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/kde-builder/kde-builder/internal/bus"
)

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}

// devNullFD returns a non-terminal file descriptor, so View exercises its
// non-interactive ("not a TTY") rendering path deterministically.
func devNullFD(t *testing.T) uintptr {
	t.Helper()
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f.Fd()
}

func TestNewDetectsNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, devNullFD(t), true)
	if v.isTerminal {
		t.Fatal("expected /dev/null to not be detected as a terminal")
	}
	if v.colorful {
		t.Fatal("colorful output requires a terminal regardless of colorfulOutput")
	}
}

func TestHandleUpdateOkPrintsLineOnNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, devNullFD(t), false)
	v.Handle(bus.UpdateOk{ProjectName: "kcalc"})

	out := buf.String()
	if !strings.Contains(out, "kcalc") || !strings.Contains(out, "updated") {
		t.Errorf("output = %q, want it to mention kcalc and updated", out)
	}
}

func TestHandleBuildOkPrintsLineOnNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, devNullFD(t), false)
	v.Handle(bus.BuildOk{ProjectName: "kcalc"})

	out := buf.String()
	if !strings.Contains(out, "kcalc") || !strings.Contains(out, "built") {
		t.Errorf("output = %q, want it to mention kcalc and built", out)
	}
}

func TestHandleBuildFailedPrintsPhaseAndError(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, devNullFD(t), false)
	v.Handle(bus.BuildFailed{ProjectName: "kcalc", Phase: "test", Err: errBoom})

	out := buf.String()
	if !strings.Contains(out, "kcalc") || !strings.Contains(out, "test failed") || !strings.Contains(out, "boom") {
		t.Errorf("output = %q, want it to mention kcalc, test failed, and boom", out)
	}
}

func TestFinishPrintsEveryTrackedProject(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, devNullFD(t), false)
	v.Handle(bus.UpdateOk{ProjectName: "kcalc"})
	v.Handle(bus.UpdateSkipped{ProjectName: "kate", Reason: "no-src"})

	buf.Reset()
	v.Finish()

	out := buf.String()
	if !strings.Contains(out, "kcalc") || !strings.Contains(out, "kate") {
		t.Errorf("Finish output = %q, want lines for both kcalc and kate", out)
	}
}

func TestWidthFallsBackWhenNotATerminal(t *testing.T) {
	v := New(&bytes.Buffer{}, devNullFD(t), false)
	if got := v.Width(); got != 80 {
		t.Errorf("Width() = %d, want 80 fallback for a non-terminal fd", got)
	}
}
