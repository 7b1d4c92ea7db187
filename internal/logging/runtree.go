package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// runDirDateLayout is the date part of "YYYY-MM-DD_NN" run directory
// names (spec.md §3 "Log tree").
const runDirDateLayout = "2006-01-02"

// CreateRunDir makes the next sequenced run directory under logRoot for
// today's date and repoints the "latest" symlink at it. now is passed in
// rather than read from time.Now so callers control the timestamp.
func CreateRunDir(logRoot string, now time.Time) (string, error) {
	if err := os.MkdirAll(logRoot, 0o755); err != nil {
		return "", err
	}
	date := now.Format(runDirDateLayout)
	entries, err := os.ReadDir(logRoot)
	if err != nil {
		return "", err
	}
	max := 0
	prefix := date + "_"
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix)); err == nil && n > max {
			max = n
		}
	}
	dir := filepath.Join(logRoot, fmt.Sprintf("%s_%02d", date, max+1))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	latest := filepath.Join(logRoot, "latest")
	os.Remove(latest)
	_ = os.Symlink(filepath.Base(dir), latest)

	return dir, nil
}

// PurgeOldRuns removes run directories under logRoot beyond the most
// recent keep, honoring the purge-old-logs option (spec.md §4.1 Build
// behavior). It returns how many directories and bytes were freed, for a
// human-readable summary line in the caller's log.
func PurgeOldRuns(logRoot string, keep int) (freedDirs int, freedBytes int64, err error) {
	entries, err := os.ReadDir(logRoot)
	if err != nil {
		return 0, 0, err
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != "latest" {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	if len(runs) <= keep {
		return 0, 0, nil
	}
	for _, name := range runs[:len(runs)-keep] {
		dir := filepath.Join(logRoot, name)
		size := dirSize(dir)
		if err := os.RemoveAll(dir); err != nil {
			return freedDirs, freedBytes, err
		}
		freedDirs++
		freedBytes += size
	}
	return freedDirs, freedBytes, nil
}

func dirSize(dir string) int64 {
	var total int64
	filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// PurgeSummary renders a human-readable freed-space line (e.g. "removed 3
// old run directories, freed 128 MB"), or "" if nothing was freed.
func PurgeSummary(freedDirs int, freedBytes int64) string {
	if freedDirs == 0 {
		return ""
	}
	return fmt.Sprintf("removed %d old run director%s, freed %s",
		freedDirs, plural(freedDirs), humanize.Bytes(uint64(freedBytes)))
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// PhaseLogFileName maps a scheduler phase name to its per-phase log file
// ("git-update.log", "configure.log", "build-1.log", ...). Unrecognized phases
// (custom build-system plug-ins) fall back to "<phase>.log".
func PhaseLogFileName(phase string) string {
	switch phase {
	case "update":
		return "git-update.log"
	case "build-system-setup":
		return "configure.log"
	case "build":
		return "build-1.log"
	case "test":
		return "test.log"
	case "install":
		return "install.log"
	case "uninstall":
		return "uninstall.log"
	default:
		return phase + ".log"
	}
}

// LinkErrorLog points projectDir's error.log at logFile, the file
// containing a project's first fatal error (spec.md §3, §4.6).
func LinkErrorLog(projectDir, logFile string) error {
	link := filepath.Join(projectDir, "error.log")
	os.Remove(link)
	return os.Symlink(logFile, link)
}

// WriteStatusList writes the per-run status-list.log required for
// --install-only replay (spec.md §4.6), one "<project>: <status>" line per
// entry in the order given.
func WriteStatusList(runDir string, lines []string) error {
	f, err := os.Create(filepath.Join(runDir, "status-list.log"))
	if err != nil {
		return err
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return err
		}
	}
	return nil
}
