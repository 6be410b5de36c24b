package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAgentIDBoundaries(t *testing.T) {
	cases := map[string]bool{
		"agent-1": true,
		"-agent":  false,
		"agent-":  false,
		"":        false,
		"a@b":     false,
		strings.Repeat("a", 65): false,
		strings.Repeat("a", 64): true,
	}
	for id, want := range cases {
		err := AgentID(id)
		got := err == nil
		if got != want {
			t.Errorf("AgentID(%q) valid=%v, want %v (err=%v)", id, got, want, err)
		}
	}
}

func TestSanitizeStripsForbiddenCodePoints(t *testing.T) {
	dirty := "hello ‮world​﻿"
	clean := SanitizeMessageContent(dirty)
	if ContainsForbiddenCodePoints(clean) {
		t.Fatalf("sanitized content still contains forbidden code points: %q", clean)
	}
	if !strings.Contains(clean, "helloworld") {
		t.Fatalf("expected visible text preserved, got %q", clean)
	}
}

func TestSanitizeNormalizesLineEndings(t *testing.T) {
	got := SanitizeMessageContent("a\r\nb\rc  \n")
	want := "a\nb\nc\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestMessageContentBoundary(t *testing.T) {
	ok := strings.Repeat("a", MaxMessageBytes)
	if err := MessageContent(ok); err != nil {
		t.Fatalf("10KiB should be accepted: %v", err)
	}
	tooBig := strings.Repeat("a", MaxMessageBytes+1)
	if err := MessageContent(tooBig); err == nil {
		t.Fatalf("10KiB+1 should be rejected")
	}
}

func TestFilePathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	if _, err := FilePath(root, "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestFilePathAcceptsContainedPath(t *testing.T) {
	root := t.TempDir()
	resolved, err := FilePath(root, "src/auth/authentication.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(resolved, root) {
		t.Fatalf("resolved path %q escaped root %q", resolved, root)
	}
}

func TestFilePathRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, err := FilePath(root, "escape/file.txt"); err == nil {
		t.Fatalf("expected symlink escape to be rejected")
	}
}

func TestRateLimitBoundaries(t *testing.T) {
	if err := RateLimit(0, 60); err == nil {
		t.Fatalf("max_messages=0 should be rejected")
	}
	if err := RateLimit(1000, 3600); err != nil {
		t.Fatalf("upper bound should be accepted: %v", err)
	}
	if err := RateLimit(1001, 60); err == nil {
		t.Fatalf("max_messages=1001 should be rejected")
	}
}

func TestHostWarnsOnUnspecified(t *testing.T) {
	warn, err := Host("0.0.0.0")
	if err != nil {
		t.Fatalf("0.0.0.0 must not be an error: %v", err)
	}
	if warn == "" {
		t.Fatalf("expected a warning for 0.0.0.0")
	}
}

func TestRecipientListRejectsDuplicates(t *testing.T) {
	if err := RecipientList([]string{"agent-1", "agent-1"}); err == nil {
		t.Fatalf("expected duplicate recipient rejection")
	}
}
