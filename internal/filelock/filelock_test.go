package filelock

import (
	"testing"
	"time"

	"github.com/claude-swarm/swarm/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return New(store.New(t.TempDir()), 0)
}

func TestAcquireThenWhoHas(t *testing.T) {
	m := newTestManager(t)
	ok, conflict, err := m.Acquire("src/main.py", "agent-0", "editing")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok || conflict != nil {
		t.Fatalf("expected clean acquire, got ok=%v conflict=%+v", ok, conflict)
	}

	l, found, err := m.WhoHas("src/main.py")
	if err != nil {
		t.Fatalf("whoHas: %v", err)
	}
	if !found || l.AgentID != "agent-0" {
		t.Fatalf("expected agent-0 to hold the lock, got %+v", l)
	}
}

func TestAcquireGlobConflict(t *testing.T) {
	m := newTestManager(t)
	ok, _, err := m.Acquire("src/auth/*.py", "agent-0", "refactor")
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed: ok=%v err=%v", ok, err)
	}

	ok, conflict, err := m.Acquire("src/auth/login.py", "agent-1", "fix")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok || conflict == nil || conflict.Holder != "agent-0" {
		t.Fatalf("expected glob conflict with agent-0, got ok=%v conflict=%+v", ok, conflict)
	}
}

func TestAcquireLiteralConflictsWithExistingGlobEitherDirection(t *testing.T) {
	m := newTestManager(t)
	if ok, _, err := m.Acquire("src/models/*.go", "agent-0", "migrate"); err != nil || !ok {
		t.Fatalf("seed acquire: ok=%v err=%v", ok, err)
	}
	ok, conflict, err := m.Acquire("src/models/user.go", "agent-1", "add field")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok || conflict == nil {
		t.Fatalf("expected conflict, got ok=%v conflict=%+v", ok, conflict)
	}
}

func TestAcquireRefreshesOwnLockInPlace(t *testing.T) {
	m := newTestManager(t)
	if ok, _, err := m.Acquire("src/x.py", "agent-0", "first pass"); err != nil || !ok {
		t.Fatalf("seed acquire: ok=%v err=%v", ok, err)
	}
	ok, conflict, err := m.Acquire("src/x.py", "agent-0", "second pass")
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if !ok || conflict != nil {
		t.Fatalf("expected re-acquire by owner to succeed, got ok=%v conflict=%+v", ok, conflict)
	}
	l, _, err := m.WhoHas("src/x.py")
	if err != nil {
		t.Fatalf("whoHas: %v", err)
	}
	if l.Reason != "second pass" {
		t.Fatalf("expected refreshed reason, got %q", l.Reason)
	}
}

func TestReleaseByNonHolderFails(t *testing.T) {
	m := newTestManager(t)
	m.Acquire("src/x.py", "agent-0", "editing")
	ok, err := m.Release("src/x.py", "agent-1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok {
		t.Fatalf("expected release by non-holder to fail")
	}
}

func TestReleaseOfMissingLockSucceeds(t *testing.T) {
	m := newTestManager(t)
	ok, err := m.Release("src/never-locked.py", "agent-0")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !ok {
		t.Fatalf("expected release of a missing lock to report ok, per spec's documented open question")
	}
}

func TestStaleLockIsRecoveredTransparently(t *testing.T) {
	m := newTestManager(t)
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }

	if ok, _, err := m.Acquire("src/critical_file.py", "agent-7", "long task"); err != nil || !ok {
		t.Fatalf("seed acquire: ok=%v err=%v", ok, err)
	}

	m.now = func() time.Time { return frozen.Add(m.staleTimeout + 10*time.Second) }

	ok, conflict, err := m.Acquire("src/critical_file.py", "agent-3", "takeover")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok || conflict != nil {
		t.Fatalf("expected stale lock to be recovered, got ok=%v conflict=%+v", ok, conflict)
	}

	all, err := m.ListAll(false)
	if err != nil {
		t.Fatalf("listAll: %v", err)
	}
	if len(all) != 1 || all[0].AgentID != "agent-3" {
		t.Fatalf("expected only agent-3's fresh lock, got %+v", all)
	}
}

func TestCleanupAgentRemovesOnlyThatAgentsLocks(t *testing.T) {
	m := newTestManager(t)
	m.Acquire("a.py", "agent-0", "x")
	m.Acquire("b.py", "agent-1", "y")

	n, err := m.CleanupAgent("agent-0")
	if err != nil {
		t.Fatalf("cleanupAgent: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}

	all, err := m.ListAll(false)
	if err != nil {
		t.Fatalf("listAll: %v", err)
	}
	if len(all) != 1 || all[0].AgentID != "agent-1" {
		t.Fatalf("expected only agent-1's lock to remain, got %+v", all)
	}
}
