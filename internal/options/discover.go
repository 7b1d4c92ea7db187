package options

import (
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
)

// vendor/app identify this tool to github.com/OpenPeeDeeP/xdg, the way
// jesseduffield-lazydocker's pkg/config/app_config.go does for its own
// config directory discovery.
const (
	xdgVendor = ""
	xdgApp    = "kde-builder"
)

// DefaultConfigPath returns the rc-file path to use when none is given on
// the command line: $KDE_BUILDER_RC, else ./kde-builder.yaml in the
// current directory, else the XDG config home (spec.md §4.1 "rc-file
// discovery").
func DefaultConfigPath() string {
	if p := os.Getenv("KDE_BUILDER_RC"); p != "" {
		return p
	}
	if _, err := os.Stat("kde-builder.yaml"); err == nil {
		return "kde-builder.yaml"
	}
	dirs := xdg.New(xdgVendor, xdgApp)
	return filepath.Join(dirs.ConfigHome(), "kde-builder.yaml")
}

// DefaultPersistentDataPath returns the path to the persistent-state JSON
// file (spec.md §3): $KDE_BUILDER_DATA, else persistent-data.json under
// the XDG data home. Unlike DefaultConfigPath it does not look in the
// current directory.
func DefaultPersistentDataPath() string {
	if p := os.Getenv("KDE_BUILDER_DATA"); p != "" {
		return p
	}
	dirs := xdg.New(xdgVendor, xdgApp)
	return filepath.Join(dirs.DataHome(), "persistent-data.json")
}

// DefaultSourceRoot mirrors the teacher's internal/env.findDistriRoot:
// an environment variable first, then a conventional default under $HOME.
func DefaultSourceRoot() string {
	if p := os.Getenv("KDE_BUILDER_SOURCE_ROOT"); p != "" {
		return p
	}
	return os.ExpandEnv("$HOME/kde/src")
}

// DefaultBuildRoot mirrors DefaultSourceRoot for the build-dir default.
func DefaultBuildRoot() string {
	if p := os.Getenv("KDE_BUILDER_BUILD_ROOT"); p != "" {
		return p
	}
	return os.ExpandEnv("$HOME/kde/build")
}

// DefaultLogRoot mirrors DefaultSourceRoot for the log-dir default (spec.md
// §3 "Log tree").
func DefaultLogRoot() string {
	if p := os.Getenv("KDE_BUILDER_LOG_ROOT"); p != "" {
		return p
	}
	return os.ExpandEnv("$HOME/kde/log")
}
