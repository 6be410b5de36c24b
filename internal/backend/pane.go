package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// PaneEnvVar is set by multiplexers (tmux) inside a pane's environment;
// its presence is what auto-detection uses to prefer the pane backend.
const PaneEnvVar = "TMUX_PANE"

// ErrNoServer is returned when the multiplexer has no running server.
var ErrNoServer = errors.New("backend: no tmux server running")

// PaneBackend addresses peers by multiplexer pane ID and can push a
// formatted line directly into a peer's terminal input via send-keys.
// Grounded on the teacher's internal/tmux/tmux.go subprocess wrapper.
type PaneBackend struct {
	// Exec runs the multiplexer binary; overridable in tests.
	Exec func(ctx context.Context, args ...string) (string, error)
}

// NewPaneBackend returns a PaneBackend that shells out to the real tmux
// binary.
func NewPaneBackend() *PaneBackend {
	return &PaneBackend{Exec: runTmux}
}

func runTmux(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "no server running") || strings.Contains(msg, "error connecting to") {
			return "", ErrNoServer
		}
		if msg != "" {
			return "", fmt.Errorf("tmux %s: %s", args[0], msg)
		}
		return "", fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (b *PaneBackend) Name() string { return "pane" }

// EnumeratePeers lists live tmux panes as peers, keyed by pane ID
// (`#{pane_id}`, e.g. "%3"), optionally filtered to those whose pane
// current path is within projectRoot.
func (b *PaneBackend) EnumeratePeers(ctx context.Context, projectRoot string) ([]Peer, error) {
	out, err := b.Exec(ctx, "list-panes", "-a", "-F",
		"#{pane_id}\t#{pane_pid}\t#{session_name}\t#{pane_current_path}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var peers []Peer
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			continue
		}
		pid, _ := strconv.Atoi(fields[1])
		cwd := fields[3]
		if projectRoot != "" && !strings.HasPrefix(cwd, projectRoot) {
			continue
		}
		peers = append(peers, Peer{
			Identifier:  fields[0],
			PID:         pid,
			SessionName: fields[2],
			CWD:         cwd,
		})
	}
	return peers, nil
}

// Push sends line as a literal keystroke sequence followed by Enter to the
// pane addressed by identifier, delivering synchronously.
func (b *PaneBackend) Push(ctx context.Context, identifier, line string) (bool, error) {
	if _, err := b.Exec(ctx, "send-keys", "-t", identifier, "-l", line); err != nil {
		return false, err
	}
	if _, err := b.Exec(ctx, "send-keys", "-t", identifier, "Enter"); err != nil {
		return false, err
	}
	return true, nil
}

// VerifyAlive checks whether the pane still exists via display-message.
func (b *PaneBackend) VerifyAlive(ctx context.Context, identifier string) (bool, error) {
	_, err := b.Exec(ctx, "display-message", "-p", "-t", identifier, "#{pane_id}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return false, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CurrentIdentifier returns this process's own pane ID from its
// environment, if it is itself running inside a tmux pane.
func (b *PaneBackend) CurrentIdentifier() (string, error) {
	if id := os.Getenv(PaneEnvVar); id != "" {
		// TMUX_PANE is of the form "%N"; keep it as-is, it's already the
		// pane identifier tmux itself uses in #{pane_id}.
		return id, nil
	}
	return "", fmt.Errorf("backend: not running inside a tmux pane")
}

// CreateMonitorPane implements MonitorPaneCreator: splits the current
// window and starts a named, dedicated pane. The monitoring TUI itself is
// out of scope; this only provisions the pane it would run in.
func (b *PaneBackend) CreateMonitorPane(ctx context.Context, name string) error {
	paneID, err := b.Exec(ctx, "split-window", "-P", "-F", "#{pane_id}")
	if err != nil {
		return err
	}
	_, err = b.Exec(ctx, "select-pane", "-t", paneID, "-T", name)
	return err
}

var _ MonitorPaneCreator = (*PaneBackend)(nil)
