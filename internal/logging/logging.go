// Package logging sets up the per-component named loggers spec.md §4.6
// requires (DEBUG < INFO < WARNING < ERROR < CRITICAL, one logger per
// component, a global --debug override), grounded on
// jesseduffield-lazydocker's pkg/log.NewLogger: one *logrus.Logger
// backing many *logrus.Entry values distinguished by a "component"
// field, writing to a single log file rather than the terminal so the
// status view owns the screen. runtree.go builds and prunes the
// "<log-root>/YYYY-MM-DD_NN/" run tree spec.md §3 describes, including
// its "latest" symlink, per-project error.log, and status-list.log.
package logging

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Config controls how the root logger is constructed.
type Config struct {
	LogDir string // directory to write the combined log to; "" means stderr
	Debug  bool   // --debug: force DEBUG level regardless of per-component defaults
}

// Root is the shared logrus.Logger every component logger derives from.
type Root struct {
	logger *logrus.Logger
	runID  string
}

// RunID is this process's run correlation ID, attached to every log entry
// so lines from the three scheduler peers can be reassembled by run even
// though they share one combined log file (the same correlation-ID idea
// buildkite-agent's job UUIDs serve for its build log).
func (r *Root) RunID() string { return r.runID }

// New constructs the root logger per cfg.
func New(cfg Config) (*Root, error) {
	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, "kde-builder.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		log.SetOutput(f)
	}

	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	return &Root{logger: log, runID: uuid.NewString()}, nil
}

// Component returns the named logger for one component (e.g. "resolver",
// "updater:kcalc", "builder:kcalc"), spec.md §4.6's addressable log
// stream.
func (r *Root) Component(name string) *logrus.Entry {
	return r.logger.WithFields(logrus.Fields{"component": name, "run_id": r.runID})
}

// SetLevel overrides the root logger's level, e.g. in response to a
// per-run --debug flag applied after construction.
func (r *Root) SetLevel(level logrus.Level) { r.logger.SetLevel(level) }

// Severity maps spec.md §4.6's five named severities onto logrus levels;
// logrus has no distinct CRITICAL level, so CRITICAL logs at Fatal
// without the process exit (components call Log, not Fatal/Panic).
func Severity(name string) logrus.Level {
	switch name {
	case "DEBUG":
		return logrus.DebugLevel
	case "INFO":
		return logrus.InfoLevel
	case "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	case "CRITICAL":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
