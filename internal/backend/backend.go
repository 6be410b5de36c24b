// Package backend implements the polymorphic terminal-backend abstraction
// of spec §4.D: enumerating peer agent processes on the host and, where
// supported, pushing a formatted line directly into a peer's terminal
// input.
//
// Two concrete variants exist: a pane-addressable backend (grounded on the
// teacher's internal/tmux/tmux.go subprocess wrapper) and a file-drop
// backend (grounded on internal/cmd/orphans.go's `ps -eo pid,ppid,args`
// enumeration and internal/session/pidtrack.go's PID bookkeeping). Neither
// is the global default — selection is a pure function of environment and
// configuration, per Design Notes §9.
package backend

import "context"

// Peer describes one discovered agent process, prior to identifier
// assignment by the discovery registry.
type Peer struct {
	Identifier  string // backend-specific: tmux pane ID, TTY path, or "pid:N"
	PID         int
	SessionName string
	CWD         string
}

// Backend is the capability set every terminal backend implements.
type Backend interface {
	// Name identifies the backend variant, used for diagnostics and for
	// the Agent.Backend field recorded by the discovery registry.
	Name() string

	// EnumeratePeers lists live peer processes. If projectRoot is
	// non-empty, only peers whose CWD is within projectRoot are returned,
	// preventing cross-project leakage per spec §4.D.
	EnumeratePeers(ctx context.Context, projectRoot string) ([]Peer, error)

	// Push delivers line to the peer addressed by identifier. The bool
	// result reports whether delivery happened in real time; a
	// false result with a nil error means the backend queued the message
	// for out-of-band pickup rather than delivering it synchronously.
	Push(ctx context.Context, identifier, line string) (bool, error)

	// VerifyAlive reports whether the peer addressed by identifier still
	// exists.
	VerifyAlive(ctx context.Context, identifier string) (bool, error)

	// CurrentIdentifier returns the backend identifier of the calling
	// process itself, used by discovery to recognize "self".
	CurrentIdentifier() (string, error)
}

// MonitorPaneCreator is an optional capability: backends that can spawn a
// dedicated pane for the monitoring TUI implement it. The monitoring TUI
// loop itself is out of scope (spec §1); this interface exists so a future
// external collaborator can detect support without a type switch on a
// concrete backend type.
type MonitorPaneCreator interface {
	CreateMonitorPane(ctx context.Context, name string) error
}
