// Package bus defines the typed message stream that connects the phase
// scheduler's three peers (spec.md §4.3): the updater and builder each
// produce a single stream of Messages, consumed by the monitor. The bus
// itself carries no ordering or delivery logic, only the channel and
// message types. In internal/scheduler the updater sends one update
// message per project in plan order; the builder's messages follow build
// completion order, and it sends its own UpdateSkipped for a project whose
// dependency failed, which may repeat one the updater already sent.
package bus

import "time"

// Message is the interface implemented by every event a producer may emit.
type Message interface {
	// Project is the project this message concerns. EndOfStream has no
	// project and returns "".
	Project() string
}

// UpdateOk reports that a project's update phase completed successfully.
type UpdateOk struct {
	ProjectName string
	Revision    string // the resolved commit the checkout now points at
	FromCommit  string // "" if the checkout was freshly cloned
	Duration    time.Duration
}

func (m UpdateOk) Project() string { return m.ProjectName }

// UpdateSkipped reports that a project's update phase was not attempted,
// e.g. because of --no-src, hold-work-branches, or a prior dependency
// failure under stop-on-failure.
type UpdateSkipped struct {
	ProjectName string
	Reason      string
}

func (m UpdateSkipped) Project() string { return m.ProjectName }

// UpdateFailed reports that a project's update phase errored.
type UpdateFailed struct {
	ProjectName string
	Err         error
}

func (m UpdateFailed) Project() string { return m.ProjectName }

// BuildOk reports that a project's build-side phases (build-system-setup
// through install) all completed successfully.
type BuildOk struct {
	ProjectName string
}

func (m BuildOk) Project() string { return m.ProjectName }

// BuildFailed reports that one of a project's build-side phases errored,
// terminating that project's run. Phase names the phase that failed
// ("build-system-setup", "build", "test", "install", "uninstall"), so
// callers can point error.log at the matching phase log file.
type BuildFailed struct {
	ProjectName string
	Phase       string
	Err         error
}

func (m BuildFailed) Project() string { return m.ProjectName }

// LogLine carries one line of subprocess output for the status view and
// per-project log file, tagged with the phase it came from.
type LogLine struct {
	ProjectName string
	Phase       string
	Line        string
}

func (m LogLine) Project() string { return m.ProjectName }

// PersistentOptionDelta reports that a phase discovered a value that must
// be written back to persistent state (spec.md §3), e.g. a build system's
// resolved source commit.
type PersistentOptionDelta struct {
	ProjectName string
	Key         string
	Value       string
}

func (m PersistentOptionDelta) Project() string { return m.ProjectName }

// PostBuildMessage carries a build system plug-in's end-of-build notice
// for the user (e.g. "remember to re-run cmake by hand for ...").
type PostBuildMessage struct {
	ProjectName string
	Text        string
}

func (m PostBuildMessage) Project() string { return m.ProjectName }

// EndOfStream marks the end of a producer's message stream. The monitor
// treats a peer's EndOfStream as that peer's final word; after it arrives
// no further messages from that peer are expected.
type EndOfStream struct {
	Producer string // "updater" or "builder"
}

func (m EndOfStream) Project() string { return "" }

// Bus is a single producer's outbound channel, paired with the consumer
// side the monitor selects over.
type Bus struct {
	ch chan Message
}

// New returns a Bus with the given buffer size.
func New(buffer int) *Bus {
	return &Bus{ch: make(chan Message, buffer)}
}

// Send publishes msg. It panics if called after Close, matching Go
// channel-close semantics -- callers own their own producer lifecycle.
func (b *Bus) Send(msg Message) { b.ch <- msg }

// Close marks the stream finished. Callers should Send an EndOfStream
// before calling Close so consumers can distinguish a clean finish from a
// channel simply being drained.
func (b *Bus) Close() { close(b.ch) }

// Recv exposes the receive-only channel for a select loop.
func (b *Bus) Recv() <-chan Message { return b.ch }
