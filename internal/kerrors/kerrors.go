// Package kerrors defines the error taxonomy shared by every component of
// the build orchestrator. Each kind is a distinct type so callers can use
// errors.As to branch on it instead of matching on message text.
package kerrors

import "fmt"

// ConfigError covers unknown options, malformed rc-files, and option
// substitution cycles.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// UnknownOptionError is a ConfigError raised by Options.Set when name is not
// a recognized option and does not start with "_".
type UnknownOptionError struct {
	Name string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("config: unknown option %q", e.Name)
}

// CycleError is raised by Options.Expand when ${name} substitution
// self-references.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("config: option substitution cycle: %v", e.Chain)
}

// UnknownProjectError is raised by the resolver when a selector matches
// neither an rc-file node nor the project database.
type UnknownProjectError struct {
	Selector string
}

func (e *UnknownProjectError) Error() string {
	return fmt.Sprintf("resolver: unknown project or selector %q", e.Selector)
}

// DependencyCycleError is raised by the resolver's topological sort.
type DependencyCycleError struct {
	Cycle []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("resolver: dependency cycle: %v", e.Cycle)
}

// NetworkError wraps a git fetch/clone transport failure.
type NetworkError struct {
	Project string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Project, e.Err)
}
func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError wraps an SSH/authentication failure during a git operation.
type AuthError struct {
	Project string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: auth error: %v", e.Project, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

// NonFastForwardError is raised when an update cannot reach the target ref
// without a destructive change and no merge-ff was possible.
type NonFastForwardError struct {
	Project string
	Ref     string
}

func (e *NonFastForwardError) Error() string {
	return fmt.Sprintf("%s: cannot fast-forward to %s", e.Project, e.Ref)
}

// ConflictError is raised when a merge-ff update produces a conflict.
type ConflictError struct {
	Project string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: merge conflict: %v", e.Project, e.Err)
}
func (e *ConflictError) Unwrap() error { return e.Err }

// UnknownRefError is raised when the requested branch/tag/revision does not
// exist in the remote.
type UnknownRefError struct {
	Project string
	Ref     string
}

func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("%s: unknown ref %q", e.Project, e.Ref)
}

// FilesystemError wraps a failed path operation (mkdir, rename, remove, ...).
type FilesystemError struct {
	Op  string
	Err error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem: %s: %v", e.Op, e.Err)
}
func (e *FilesystemError) Unwrap() error { return e.Err }

// ConfigureError is raised when a build-system plug-in's configure step
// fails.
type ConfigureError struct {
	Project string
	Err     error
}

func (e *ConfigureError) Error() string {
	return fmt.Sprintf("%s: configure failed: %v", e.Project, e.Err)
}
func (e *ConfigureError) Unwrap() error { return e.Err }

// BuildError is raised when a build-system plug-in's compile step fails.
type BuildError struct {
	Project string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: build failed: %v", e.Project, e.Err)
}
func (e *BuildError) Unwrap() error { return e.Err }

// TestError is raised when the test target fails. Non-fatal to the plan
// unless stop-on-failure is set.
type TestError struct {
	Project string
	Err     error
}

func (e *TestError) Error() string {
	return fmt.Sprintf("%s: tests failed: %v", e.Project, e.Err)
}
func (e *TestError) Unwrap() error { return e.Err }

// InstallError is raised when the install step fails.
type InstallError struct {
	Project string
	Err     error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("%s: install failed: %v", e.Project, e.Err)
}
func (e *InstallError) Unwrap() error { return e.Err }

// UnsupportedOperationError is raised when a plug-in cannot perform a
// requested operation (e.g. uninstall on a plug-in with no uninstall
// target).
type UnsupportedOperationError struct {
	Project   string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s is not supported by this build system", e.Project, e.Operation)
}

// IPCError marks a worker-global failure: the monitor or bus lost a
// message or failed to read. Tears down all workers.
type IPCError struct {
	Msg string
}

func (e *IPCError) Error() string { return "ipc: " + e.Msg }

// InternalError marks a violated invariant.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal: " + e.Msg }
