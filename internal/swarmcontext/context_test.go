package swarmcontext

import (
	"testing"

	"github.com/claude-swarm/swarm/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(store.New(t.TempDir()), 0)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("", "", "agent-0"); err == nil {
		t.Fatalf("expected validation error for empty name")
	}
}

func TestLinkTaskDeduplicates(t *testing.T) {
	s := newTestStore(t)
	c, err := s.Create("auth-rework", "", "agent-0")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.LinkTask(c.ContextID, "task-1"); err != nil {
		t.Fatalf("link: %v", err)
	}
	got, err := s.LinkTask(c.ContextID, "task-1")
	if err != nil {
		t.Fatalf("link again: %v", err)
	}
	if len(got.TaskIDs) != 1 {
		t.Fatalf("expected deduplicated task IDs, got %v", got.TaskIDs)
	}
}

func TestRecordDecisionAppends(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.Create("auth-rework", "", "agent-0")
	got, err := s.RecordDecision(c.ContextID, "agent-1", "use JWT over sessions")
	if err != nil {
		t.Fatalf("record decision: %v", err)
	}
	if len(got.Decisions) != 1 || got.Decisions[0].Summary != "use JWT over sessions" {
		t.Fatalf("unexpected decisions: %+v", got.Decisions)
	}
}

func TestGetUnknownContextNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("ghost"); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestListSortsByCreatedAt(t *testing.T) {
	s := newTestStore(t)
	first, _ := s.Create("first", "", "agent-0")
	second, _ := s.Create("second", "", "agent-0")
	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ContextID != first.ContextID || list[1].ContextID != second.ContextID {
		t.Fatalf("unexpected order: %+v", list)
	}
}
