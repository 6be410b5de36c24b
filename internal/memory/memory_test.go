package memory

import (
	"testing"

	"github.com/claude-swarm/swarm/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(store.New(t.TempDir()), 0)
}

func TestRememberTaskPrependsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	s.RememberTask("agent-1", TaskMemory{TaskID: "a", Status: "completed"})
	m, err := s.RememberTask("agent-1", TaskMemory{TaskID: "b", Status: "completed"})
	if err != nil {
		t.Fatalf("remember: %v", err)
	}
	if len(m.TaskHistory) != 2 || m.TaskHistory[0].TaskID != "b" {
		t.Fatalf("expected newest-first ring, got %+v", m.TaskHistory)
	}
}

func TestRememberTaskCapsRing(t *testing.T) {
	s := newTestStore(t)
	var m Memory
	for i := 0; i < MaxTaskHistory+10; i++ {
		var err error
		m, err = s.RememberTask("agent-1", TaskMemory{TaskID: "t", Status: "completed"})
		if err != nil {
			t.Fatalf("remember: %v", err)
		}
	}
	if len(m.TaskHistory) != MaxTaskHistory {
		t.Fatalf("expected cap of %d, got %d", MaxTaskHistory, len(m.TaskHistory))
	}
}

func TestLearnPatternDedupesAndReinforces(t *testing.T) {
	s := newTestStore(t)
	s.LearnPattern("agent-1", "retry on flaky network", 0.5)
	m, err := s.LearnPattern("agent-1", "retry on flaky network", 1.0)
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	if len(m.Patterns) != 1 {
		t.Fatalf("expected dedup to a single pattern, got %d", len(m.Patterns))
	}
	want := 0.5*0.8 + 1.0*0.2
	if diff := m.Patterns[0].Effectiveness - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected EMA effectiveness %v, got %v", want, m.Patterns[0].Effectiveness)
	}
	if m.Patterns[0].Occurrences != 2 {
		t.Fatalf("expected occurrences=2, got %d", m.Patterns[0].Occurrences)
	}
}

func TestRecordInteractionBlendsTrust(t *testing.T) {
	s := newTestStore(t)
	m, err := s.RecordInteraction("agent-1", "agent-2", true)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	rel := m.Relationships["agent-2"]
	if rel.Total != 1 || rel.Positive != 1 {
		t.Fatalf("expected 1/1, got %+v", rel)
	}
	if rel.Reliability != 1.0 {
		t.Fatalf("expected reliability 1.0, got %v", rel.Reliability)
	}
}
