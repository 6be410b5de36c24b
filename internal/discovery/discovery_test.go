package discovery

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/claude-swarm/swarm/internal/backend"
	"github.com/claude-swarm/swarm/internal/store"
)

type fakeBackend struct {
	name  string
	peers []backend.Peer
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) EnumeratePeers(ctx context.Context, projectRoot string) ([]backend.Peer, error) {
	return f.peers, nil
}
func (f *fakeBackend) Push(ctx context.Context, identifier, line string) (bool, error) {
	return false, nil
}
func (f *fakeBackend) VerifyAlive(ctx context.Context, identifier string) (bool, error) {
	return true, nil
}
func (f *fakeBackend) CurrentIdentifier() (string, error) { return "self", nil }

func TestRefreshAssignsStableIDs(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir)
	b := &fakeBackend{name: "fake", peers: []backend.Peer{
		{Identifier: "%1", PID: 100},
		{Identifier: "%2", PID: 200},
	}}
	r := New(s, b, 0, 0)

	agents, err := r.Refresh(context.Background(), dir, "sess")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}

	ids := map[string]string{}
	for _, a := range agents {
		ids[a.Identifier] = a.ID
	}

	b.peers = []backend.Peer{
		{Identifier: "%2", PID: 200},
		{Identifier: "%3", PID: 300},
	}
	agents2, err := r.Refresh(context.Background(), dir, "sess")
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	for _, a := range agents2 {
		if a.Identifier == "%2" && a.ID != ids["%2"] {
			t.Errorf("expected %%2 to keep ID %s, got %s", ids["%2"], a.ID)
		}
		if a.Identifier == "%1" && a.Status != StatusStale {
			t.Errorf("expected %%1 to be marked stale, got %s", a.Status)
		}
	}
}

func TestRefreshDropsAgentsPastStaleThreshold(t *testing.T) {
	dir := t.TempDir()
	s := store.New(dir)
	b := &fakeBackend{name: "fake", peers: []backend.Peer{{Identifier: "%1", PID: 100}}}
	r := New(s, b, MinStaleThreshold, 0)

	if _, err := r.Refresh(context.Background(), dir, "sess"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	agents, err := r.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	agents[0].LastSeen = time.Now().Add(-2 * MinStaleThreshold)
	data := mustMarshalForTest(t, agents)
	if err := store.WriteLocked(s.Path("ACTIVE_AGENTS.json"), data, time.Second); err != nil {
		t.Fatalf("write: %v", err)
	}

	b.peers = nil
	agents2, err := r.Refresh(context.Background(), dir, "sess")
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if len(agents2) != 0 {
		t.Errorf("expected agent past stale threshold to be dropped, got %d entries", len(agents2))
	}
}

func TestNewClampsStaleThreshold(t *testing.T) {
	r := New(store.New(t.TempDir()), &fakeBackend{name: "fake"}, time.Millisecond, 0)
	if r.staleThreshold != MinStaleThreshold {
		t.Errorf("expected clamp to MinStaleThreshold, got %v", r.staleThreshold)
	}

	r2 := New(store.New(t.TempDir()), &fakeBackend{name: "fake"}, 24*time.Hour, 0)
	if r2.staleThreshold != MaxStaleThreshold {
		t.Errorf("expected clamp to MaxStaleThreshold, got %v", r2.staleThreshold)
	}
}

func mustMarshalForTest(t *testing.T, agents []Agent) []byte {
	t.Helper()
	f := registryFile{SessionName: "sess", Agents: agents}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
