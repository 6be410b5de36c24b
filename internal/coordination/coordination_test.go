package coordination

import (
	"strings"
	"testing"

	"github.com/claude-swarm/swarm/internal/store"
)

func newTestEditor(t *testing.T) *Editor {
	t.Helper()
	return New(store.New(t.TempDir()), 0)
}

func TestReadSeedsDefaultScaffold(t *testing.T) {
	e := newTestEditor(t)
	doc, err := e.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(doc, "## Decisions") || !strings.Contains(doc, "## Open Items") {
		t.Fatalf("expected default scaffold sections, got %q", doc)
	}
}

func TestUpdateSectionReplacesExistingBody(t *testing.T) {
	e := newTestEditor(t)
	if err := e.UpdateSection("Decisions", "- use JWT"); err != nil {
		t.Fatalf("update: %v", err)
	}
	body, ok, err := e.GetSection("Decisions")
	if err != nil || !ok {
		t.Fatalf("get section: ok=%v err=%v", ok, err)
	}
	if body != "- use JWT" {
		t.Fatalf("unexpected body: %q", body)
	}

	other, ok, err := e.GetSection("Open Items")
	if err != nil || !ok {
		t.Fatalf("expected Open Items section preserved: ok=%v err=%v", ok, err)
	}
	if other != "" {
		t.Fatalf("expected Open Items untouched and empty, got %q", other)
	}
}

func TestUpdateSectionCreatesMissingSection(t *testing.T) {
	e := newTestEditor(t)
	if err := e.UpdateSection("Agents", "agent-0 online"); err != nil {
		t.Fatalf("update: %v", err)
	}
	body, ok, err := e.GetSection("Agents")
	if err != nil || !ok {
		t.Fatalf("get section: ok=%v err=%v", ok, err)
	}
	if body != "agent-0 online" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestAppendToSectionAccumulates(t *testing.T) {
	e := newTestEditor(t)
	if err := e.AppendToSection("Decisions", "- first"); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := e.AppendToSection("Decisions", "- second"); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	body, _, err := e.GetSection("Decisions")
	if err != nil {
		t.Fatalf("get section: %v", err)
	}
	if body != "- first\n- second" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestGetSectionMissingReturnsFalse(t *testing.T) {
	e := newTestEditor(t)
	_, ok, err := e.GetSection("Nonexistent")
	if err != nil {
		t.Fatalf("get section: %v", err)
	}
	if ok {
		t.Fatalf("expected not found")
	}
}
