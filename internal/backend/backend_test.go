//go:build !windows

package backend

import (
	"os"
	"testing"
)

func TestSelectHonorsExplicitOverride(t *testing.T) {
	t.Setenv(BackendEnvVar, "pane")
	b := Select("")
	if b.Name() != "pane" {
		t.Fatalf("expected pane backend, got %s", b.Name())
	}
}

func TestSelectHonorsConfiguredProvider(t *testing.T) {
	os.Unsetenv(BackendEnvVar)
	b := Select("file-drop")
	if b.Name() != "file-drop" {
		t.Fatalf("expected file-drop backend, got %s", b.Name())
	}
}

func TestSelectAutoDetectsPaneFromEnv(t *testing.T) {
	os.Unsetenv(BackendEnvVar)
	t.Setenv(PaneEnvVar, "%3")
	b := Select("")
	if b.Name() != "pane" {
		t.Fatalf("expected pane backend when TMUX_PANE is set, got %s", b.Name())
	}
}

func TestSelectFallsBackToFileDrop(t *testing.T) {
	os.Unsetenv(BackendEnvVar)
	os.Unsetenv(PaneEnvVar)
	b := Select("")
	if b.Name() != "file-drop" {
		t.Fatalf("expected file-drop fallback, got %s", b.Name())
	}
}

func TestDescendantSetExcludesUnrelatedPIDs(t *testing.T) {
	rows := []psRow{
		{pid: 1, ppid: 0},
		{pid: 10, ppid: 1},
		{pid: 20, ppid: 10},
		{pid: 30, ppid: 1},
		{pid: 99, ppid: 5000}, // unrelated
	}
	set := descendantSet(rows, 1)
	for _, pid := range []int{10, 20, 30} {
		if !set[pid] {
			t.Errorf("expected %d to be a descendant of 1", pid)
		}
	}
	if set[99] {
		t.Errorf("99 should not be a descendant of 1")
	}
}

func TestTTYIdentifierFallsBackToPID(t *testing.T) {
	if got := ttyIdentifier("?", 42); got != "pid:42" {
		t.Errorf("expected pid:42, got %s", got)
	}
	if got := ttyIdentifier("ttys001", 42); got != "/dev/ttys001" {
		t.Errorf("expected /dev/ttys001, got %s", got)
	}
}
