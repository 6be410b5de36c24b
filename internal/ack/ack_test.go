package ack

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/claude-swarm/swarm/internal/backend"
	"github.com/claude-swarm/swarm/internal/discovery"
	"github.com/claude-swarm/swarm/internal/messaging"
	"github.com/claude-swarm/swarm/internal/store"
)

type stubBackend struct {
	peers  []backend.Peer
	pushes []string
}

func (s *stubBackend) Name() string { return "stub" }
func (s *stubBackend) EnumeratePeers(ctx context.Context, projectRoot string) ([]backend.Peer, error) {
	return s.peers, nil
}
func (s *stubBackend) Push(ctx context.Context, identifier, line string) (bool, error) {
	s.pushes = append(s.pushes, line)
	return true, nil
}
func (s *stubBackend) VerifyAlive(ctx context.Context, identifier string) (bool, error) {
	return true, nil
}
func (s *stubBackend) CurrentIdentifier() (string, error) { return "self", nil }

func newTestEngine(t *testing.T, peers []backend.Peer) (*Engine, *store.Store, *stubBackend) {
	t.Helper()
	s := store.New(t.TempDir())
	b := &stubBackend{peers: peers}
	reg := discovery.New(s, b, 0, 0)
	if _, err := reg.Refresh(context.Background(), ".", "session"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	core := messaging.New(s, reg, b, messaging.RateLimit{MaxMessages: 1000, Window: time.Minute})
	return New(core, s, 0), s, b
}

func TestSendWithAckCreatesPendingRow(t *testing.T) {
	e, _, b := newTestEngine(t, []backend.Peer{{Identifier: "pane-1"}})

	msgID, err := e.SendWithAck(context.Background(), "agent-2", "agent-1", messaging.TypeQuestion, "need help", 30*time.Second)
	if err != nil {
		t.Fatalf("sendWithAck: %v", err)
	}
	if msgID == "" {
		t.Fatalf("expected a msg id")
	}
	if len(b.pushes) != 1 || !strings.Contains(b.pushes[0], "[REQUIRES-ACK]") {
		t.Fatalf("expected requires-ack push, got %+v", b.pushes)
	}

	pending, err := e.CheckPending("agent-2")
	if err != nil {
		t.Fatalf("check pending: %v", err)
	}
	if len(pending) != 1 || pending[0].MsgID != msgID {
		t.Fatalf("expected one pending row for msg %s, got %+v", msgID, pending)
	}
}

func TestReceiveAckRemovesRow(t *testing.T) {
	e, _, _ := newTestEngine(t, []backend.Peer{{Identifier: "pane-1"}})
	msgID, err := e.SendWithAck(context.Background(), "agent-2", "agent-1", messaging.TypeQuestion, "need help", 30*time.Second)
	if err != nil {
		t.Fatalf("sendWithAck: %v", err)
	}

	found, err := e.ReceiveAck(msgID, "agent-1")
	if err != nil {
		t.Fatalf("receiveAck: %v", err)
	}
	if !found {
		t.Fatalf("expected ack to be found")
	}

	pending, err := e.CheckPending("")
	if err != nil {
		t.Fatalf("check pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows after ack, got %+v", pending)
	}
}

func TestProcessRetriesEscalatesAfterMaxRetries(t *testing.T) {
	// agent-5 never appears in the registry, so each resend fails delivery
	// for that recipient without returning an error and the row is never
	// acked; this exercises retry bookkeeping through escalation. The clock
	// moves an hour further each round so every backoff has elapsed.
	e, _, b := newTestEngine(t, []backend.Peer{{Identifier: "pane-2"}, {Identifier: "pane-5"}})

	msgID, err := e.SendWithAck(context.Background(), "agent-2", "agent-5", messaging.TypeQuestion, "need help", -time.Second)
	if err != nil {
		t.Fatalf("sendWithAck: %v", err)
	}
	if msgID == "" {
		t.Fatalf("expected msg id")
	}

	for i := 0; i < MaxRetries; i++ {
		offset := time.Duration(i+1) * time.Hour
		e.now = func() time.Time { return time.Now().UTC().Add(offset) }
		n, err := e.ProcessRetries(context.Background())
		if err != nil {
			t.Fatalf("processRetries round %d: %v", i, err)
		}
		if n != 1 {
			t.Fatalf("expected 1 row processed in round %d, got %d", i, n)
		}
	}

	pending, err := e.CheckPending("")
	if err != nil {
		t.Fatalf("check pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected row to be gone after escalation, got %+v", pending)
	}

	foundEscalation := false
	for _, line := range b.pushes {
		if strings.Contains(line, "[UNACKNOWLEDGED]") {
			foundEscalation = true
		}
	}
	if !foundEscalation {
		t.Fatalf("expected an [UNACKNOWLEDGED] broadcast among pushes, got %+v", b.pushes)
	}
}

func TestProcessRetriesHandlesMultipleDueRowsConcurrently(t *testing.T) {
	e, _, _ := newTestEngine(t, []backend.Peer{{Identifier: "pane-1"}, {Identifier: "pane-2"}, {Identifier: "pane-3"}})

	for _, recipient := range []string{"agent-1", "agent-2", "agent-3"} {
		if _, err := e.SendWithAck(context.Background(), "agent-9", recipient, messaging.TypeQuestion, "ping", -time.Second); err != nil {
			t.Fatalf("sendWithAck to %s: %v", recipient, err)
		}
	}

	n, err := e.ProcessRetries(context.Background())
	if err != nil {
		t.Fatalf("processRetries: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected all 3 due rows processed, got %d", n)
	}

	pending, err := e.CheckPending("agent-9")
	if err != nil {
		t.Fatalf("check pending: %v", err)
	}
	for _, p := range pending {
		if p.RetryCount != 1 {
			t.Fatalf("expected retry_count 1 for %s, got %d", p.MsgID, p.RetryCount)
		}
	}
}

func TestClearPendingFiltersByAgent(t *testing.T) {
	e, _, _ := newTestEngine(t, []backend.Peer{{Identifier: "pane-1"}})
	if _, err := e.SendWithAck(context.Background(), "agent-2", "agent-1", messaging.TypeQuestion, "a", 30*time.Second); err != nil {
		t.Fatalf("sendWithAck: %v", err)
	}
	if _, err := e.SendWithAck(context.Background(), "agent-3", "agent-1", messaging.TypeQuestion, "b", 30*time.Second); err != nil {
		t.Fatalf("sendWithAck: %v", err)
	}

	n, err := e.ClearPending("agent-2")
	if err != nil {
		t.Fatalf("clear pending: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}

	remaining, err := e.CheckPending("")
	if err != nil {
		t.Fatalf("check pending: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SenderID != "agent-3" {
		t.Fatalf("expected agent-3's row to remain, got %+v", remaining)
	}
}
