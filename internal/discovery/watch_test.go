package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/claude-swarm/swarm/internal/backend"
	"github.com/claude-swarm/swarm/internal/store"
)

func TestWatchEmitsAtLeastOneRefresh(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir)
	b := &fakeBackend{name: "fake", peers: []backend.Peer{{Identifier: "%1", PID: 100}}}
	r := New(s, b, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	ch := r.Watch(ctx, dir, "sess", 50*time.Millisecond)

	ev, ok := <-ch
	if !ok {
		t.Fatalf("expected at least one watch event before channel closed")
	}
	if ev.Err != nil {
		t.Fatalf("unexpected refresh error: %v", ev.Err)
	}
	if len(ev.Agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(ev.Agents))
	}

	cancel()
	for range ch {
		// drain until closed
	}
}
