package card

import (
	"testing"

	"github.com/claude-swarm/swarm/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(store.New(t.TempDir()), 0)
}

func TestUpsertClampsSuccessRates(t *testing.T) {
	r := newTestRegistry(t)
	got, err := r.Upsert(Card{
		AgentID:      "agent-1",
		SuccessRates: map[string]float64{"python": 1.5, "go": -0.2},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got.SuccessRates["python"] != 1.0 || got.SuccessRates["go"] != 0.0 {
		t.Fatalf("expected clamped rates, got %+v", got.SuccessRates)
	}
}

func TestUpsertRejectsInvalidAgentID(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Upsert(Card{AgentID: "-bad"}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	r := newTestRegistry(t)
	first, _ := r.Upsert(Card{AgentID: "agent-1", Name: "one"})
	second, err := r.Upsert(Card{AgentID: "agent-1", Name: "two"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected CreatedAt preserved across upsert")
	}
	if second.Name != "two" {
		t.Fatalf("expected name updated, got %s", second.Name)
	}
}

func TestSetAvailabilityUnknownCardNotFound(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.SetAvailability("agent-ghost", AvailabilityBusy); err == nil {
		t.Fatalf("expected not-found error")
	}
}
