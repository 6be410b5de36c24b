package messaging

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/claude-swarm/swarm/internal/backend"
	"github.com/claude-swarm/swarm/internal/discovery"
	"github.com/claude-swarm/swarm/internal/store"
)

// stubBackend is a minimal backend.Backend that records pushed lines and
// can be told to enumerate fixed peers.
type stubBackend struct {
	peers  []backend.Peer
	pushes []string
	fail   map[string]bool
}

func (s *stubBackend) Name() string { return "stub" }
func (s *stubBackend) EnumeratePeers(ctx context.Context, projectRoot string) ([]backend.Peer, error) {
	return s.peers, nil
}
func (s *stubBackend) Push(ctx context.Context, identifier, line string) (bool, error) {
	if s.fail[identifier] {
		return false, nil
	}
	s.pushes = append(s.pushes, identifier+": "+line)
	return true, nil
}
func (s *stubBackend) VerifyAlive(ctx context.Context, identifier string) (bool, error) {
	return true, nil
}
func (s *stubBackend) CurrentIdentifier() (string, error) { return "self", nil }

// newTestCore wires a Core against a registry seeded with one active peer
// that resolves to agent ID "agent-1".
func newTestCore(t *testing.T) (*Core, *stubBackend) {
	t.Helper()
	s := store.New(t.TempDir())
	b := &stubBackend{fail: map[string]bool{}, peers: []backend.Peer{{Identifier: "pane-1"}}}
	reg := discovery.New(s, b, 0, 0)
	if _, err := reg.Refresh(context.Background(), ".", "session"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return New(s, reg, b, RateLimit{}), b
}

func TestSendDeliversAndLogs(t *testing.T) {
	s := store.New(t.TempDir())
	b := &stubBackend{fail: map[string]bool{}, peers: []backend.Peer{{Identifier: "pane-1"}}}
	reg := discovery.New(s, b, 0, 0)
	if _, err := reg.Refresh(context.Background(), ".", "session"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	core := New(s, reg, b, RateLimit{})

	msg, status, err := core.Send(context.Background(), "agent-2", []string{"agent-1"}, TypeQuestion, "are you blocked?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !status["agent-1"] {
		t.Fatalf("expected delivery success, got %+v", status)
	}
	if msg.Sender != "agent-2" {
		t.Fatalf("unexpected sender %s", msg.Sender)
	}
	if len(b.pushes) != 1 || !strings.Contains(b.pushes[0], "QUESTION") {
		t.Fatalf("expected one push containing type, got %+v", b.pushes)
	}

	data, err := os.ReadFile(s.Path("agent_messages.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "are you blocked?") {
		t.Fatalf("expected log to contain message content, got %q", data)
	}
}

func TestSendRejectsUnknownRecipientButDoesNotError(t *testing.T) {
	core, _ := newTestCore(t)
	_, status, err := core.Send(context.Background(), "agent-2", []string{"agent-99"}, TypeInfo, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if status["agent-99"] {
		t.Fatalf("expected delivery failure for unknown recipient")
	}
}

func TestSendRateLimited(t *testing.T) {
	core, _ := newTestCore(t)
	core.rateLimit = RateLimit{MaxMessages: 1, Window: time.Minute}

	if _, _, err := core.Send(context.Background(), "agent-2", []string{"agent-1"}, TypeInfo, "one"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, _, err := core.Send(context.Background(), "agent-2", []string{"agent-1"}, TypeInfo, "two"); err == nil {
		t.Fatalf("expected rate limit error on second send")
	}
}

func TestSendRejectsInvalidContent(t *testing.T) {
	core, _ := newTestCore(t)
	if _, _, err := core.Send(context.Background(), "agent-2", []string{"agent-1"}, TypeInfo, strings.Repeat("x", 20*1024)); err == nil {
		t.Fatalf("expected oversized content to be rejected")
	}
}

func TestFormatLineMatchesWireShape(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	line := FormatLine("agent-1", at, TypeInfo, "hello")
	want := "[agent-1][2025-01-02 03:04:05][INFO]: hello"
	if line != want {
		t.Fatalf("got %q want %q", line, want)
	}
}

func TestBroadcastExcludesSelf(t *testing.T) {
	s := store.New(t.TempDir())
	b := &stubBackend{fail: map[string]bool{}, peers: []backend.Peer{
		{Identifier: "pane-1"}, {Identifier: "pane-2"},
	}}
	reg := discovery.New(s, b, 0, 0)
	if _, err := reg.Refresh(context.Background(), ".", "session"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	core := New(s, reg, b, RateLimit{})

	status, err := core.Broadcast(context.Background(), "agent-1", TypeInfo, "status update", true)
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if _, ok := status["agent-1"]; ok {
		t.Fatalf("expected sender excluded from broadcast recipients, got %+v", status)
	}
	if !status["agent-2"] {
		t.Fatalf("expected agent-2 to receive broadcast, got %+v", status)
	}
}

func TestRotateIfNeededRenamesOversizedLog(t *testing.T) {
	s := store.New(t.TempDir())
	b := &stubBackend{fail: map[string]bool{}}
	reg := discovery.New(s, b, 0, 0)
	core := New(s, reg, b, RateLimit{})

	if err := os.WriteFile(s.Path("agent_messages.log"), make([]byte, LogRotateBytes+1), store.FileMode); err != nil {
		t.Fatalf("seed log: %v", err)
	}
	if err := core.rotateIfNeeded(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := os.Stat(s.Path("agent_messages.log.old")); err != nil {
		t.Fatalf("expected rotated file, got err: %v", err)
	}
	if _, err := os.Stat(s.Path("agent_messages.log")); !os.IsNotExist(err) {
		t.Fatalf("expected original log to be gone after rotation")
	}
}
