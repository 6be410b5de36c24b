package learning

import (
	"testing"
	"time"

	"github.com/claude-swarm/swarm/internal/card"
	"github.com/claude-swarm/swarm/internal/store"
)

func newTestStore(t *testing.T) (*Store, *card.Registry) {
	t.Helper()
	s := store.New(t.TempDir())
	cards := card.New(s, 0)
	return New(s, cards, 0), cards
}

func TestRecordTaskCompletedDecrementsInProgress(t *testing.T) {
	l, _ := newTestStore(t)
	if _, err := l.RecordTaskStarted("agent-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, err := l.RecordTaskCompleted("agent-1", nil, true, time.Minute)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.TasksInProgress != 0 {
		t.Fatalf("expected in-progress floored at 0, got %d", got.TasksInProgress)
	}
	if got.TasksCompleted != 1 {
		t.Fatalf("expected 1 completed task, got %d", got.TasksCompleted)
	}
}

func TestRecordTaskCompletedNeverGoesNegative(t *testing.T) {
	l, _ := newTestStore(t)
	got, err := l.RecordTaskCompleted("agent-1", nil, false, time.Second)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.TasksInProgress != 0 {
		t.Fatalf("expected in-progress floored at 0 with no prior start, got %d", got.TasksInProgress)
	}
	if got.TasksFailed != 1 {
		t.Fatalf("expected 1 failed task, got %d", got.TasksFailed)
	}
}

func TestRecordTaskCompletedPropagatesSkillRateToCard(t *testing.T) {
	l, cards := newTestStore(t)
	if _, err := cards.Upsert(card.Card{AgentID: "agent-1", Availability: card.AvailabilityActive}); err != nil {
		t.Fatalf("upsert card: %v", err)
	}
	if _, err := l.RecordTaskCompleted("agent-1", []string{"python"}, true, time.Minute); err != nil {
		t.Fatalf("complete: %v", err)
	}
	c, err := cards.Get("agent-1")
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if c.SuccessRates["python"] != 1.0 {
		t.Fatalf("expected propagated success rate 1.0, got %v", c.SuccessRates["python"])
	}
}

func TestSkillRateBlendsAsEMA(t *testing.T) {
	l, _ := newTestStore(t)
	if _, err := l.RecordTaskCompleted("agent-1", []string{"python"}, true, time.Minute); err != nil {
		t.Fatalf("complete 1: %v", err)
	}
	if _, err := l.RecordTaskCompleted("agent-2", []string{"python"}, false, time.Minute); err != nil {
		t.Fatalf("complete 2: %v", err)
	}
	rate, err := l.skillRate("python")
	if err != nil {
		t.Fatalf("skill rate: %v", err)
	}
	if rate != 0.9 {
		t.Fatalf("expected EMA(1.0, 0.0, weight 0.1) = 0.9, got %v", rate)
	}
}
