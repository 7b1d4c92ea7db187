package options

// Composition describes how a project-scoped value combines with its
// group/global fallbacks.
type Composition int

const (
	// Replace means the most specific scope that defines the option wins
	// outright (project, then group, then global).
	Replace Composition = iota
	// Append means the global, group, then project values are
	// space-joined instead of the most specific one winning alone.
	Append
)

// Spec describes one recognized option name.
type Spec struct {
	Name        string
	Composition Composition
	Default     string
}

// Catalog is the authoritative set of recognized option names, keyed by
// name, per spec.md §4.1. Names are rejected by Set unless present here or
// prefixed with "_" (user variables).
var Catalog = buildCatalog()

func buildCatalog() map[string]Spec {
	specs := []Spec{
		// Paths
		{Name: "source-dir"},
		{Name: "build-dir"},
		{Name: "install-dir"},
		{Name: "log-dir"},
		{Name: "qt-install-dir"},
		{Name: "persistent-data-file"},
		{Name: "libname"},

		// Concurrency
		{Name: "async", Default: "true"},
		{Name: "num-cores", Default: "auto"},
		{Name: "num-cores-low-mem", Default: "auto"},
		{Name: "niceness", Default: "10"},
		{Name: "taskset-cpu-list"},
		{Name: "use-idle-io-priority", Default: "false"},

		// Project selection
		{Name: "ignore-projects"},
		{Name: "use-projects"},
		{Name: "branch"},
		{Name: "tag"},
		{Name: "revision"},
		{Name: "branch-group"},
		{Name: "hold-work-branches", Default: "false"},
		{Name: "include-dependencies", Default: "true"},
		{Name: "use-inactive-projects", Default: "false"},
		{Name: "project-database-dir"},
		{Name: "project-database-url"},

		// Build behavior
		{Name: "build-when-unchanged", Default: "true"},
		{Name: "stop-on-failure", Default: "true"},
		{Name: "refresh-build-first", Default: "false"},
		{Name: "run-tests", Default: "false"},
		{Name: "use-clean-install", Default: "false"},
		{Name: "remove-after-install", Default: "none"},
		{Name: "purge-old-logs", Default: "true"},
		{Name: "compile-commands-export", Default: "true"},
		{Name: "compile-commands-linking", Default: "false"},
		{Name: "directory-layout", Default: "flat"},
		{Name: "override-build-system"},
		{Name: "cmake-generator", Default: "Ninja"},
		{Name: "cmake-build-type", Default: "RelWithDebInfo"},
		{Name: "cmake-toolchain"},
		{Name: "cmake-options", Composition: Append},
		{Name: "configure-flags", Composition: Append},
		{Name: "cxxflags", Composition: Append},
		{Name: "make-options", Composition: Append},
		{Name: "ninja-options", Composition: Append},
		{Name: "meson-options", Composition: Append},
		{Name: "qmake-options", Composition: Append},
		{Name: "custom-build-command"},
		{Name: "do-not-compile"},
		{Name: "make-install-prefix"},

		// Phase toggles
		{Name: "no-src", Default: "false"},
		{Name: "no-build", Default: "false"},
		{Name: "no-install", Default: "false"},
		{Name: "build-only", Default: "false"},
		{Name: "install-only", Default: "false"},
		{Name: "uninstall", Default: "false"},
		{Name: "filter-out-phases"},

		// Git
		{Name: "git-push-protocol", Default: "git"},
		{Name: "git-repository-base"},
		{Name: "git-user"},
		{Name: "disable-agent-check", Default: "false"},
		{Name: "ssh-identity-file"},
		{Name: "repository"},

		// Environment
		{Name: "set-env"},
		{Name: "binpath"},
		{Name: "libpath"},
		{Name: "source-when-start-program"},

		// Ambient (not in spec.md's catalog text, but referenced
		// elsewhere in spec.md and required for the rc-file/CLI surface)
		{Name: "colorful-output", Default: "true"},
		{Name: "reconfigure", Default: "false"},
		{Name: "refresh-build", Default: "false"},
	}
	m := make(map[string]Spec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return m
}

// IsUserVariable reports whether name is a user variable (referenceable
// only, never validated against Catalog).
func IsUserVariable(name string) bool {
	return len(name) > 0 && name[0] == '_'
}
