// Package coordination implements the COORDINATION.md markdown editor of
// spec §6/§9: a human-editable file with "## <name>" section headers, read
// under the shared advisory lock and atomically replaced under the
// exclusive advisory lock, exactly like any other state file owned by
// internal/store — it just holds Markdown text instead of JSON.
//
// Grounded on internal/store's ReadLocked/WriteLocked primitives, which
// operate on raw bytes and need no JSON-specific handling here, and on the
// teacher's internal/feed/curator.go convention of shipping a default
// scaffold for a human-editable file without treating that scaffold as
// part of the wire contract.
package coordination

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/claude-swarm/swarm/internal/store"
)

// DefaultScaffold is the convenience default template shipped for new
// projects. Per spec §6, "template is not part of the contract" — any
// section layout is a valid COORDINATION.md, this is just a starting
// point.
const DefaultScaffold = `# Coordination

## Decisions

## Open Items
`

var sectionHeader = regexp.MustCompile(`(?m)^## (.+?)\s*$`)

// Editor manages COORDINATION.md for one project root.
type Editor struct {
	store       *store.Store
	lockTimeout time.Duration
}

// New creates a coordination Editor. lockTimeout of 0 uses the store
// package default.
func New(s *store.Store, lockTimeout time.Duration) *Editor {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Editor{store: s, lockTimeout: lockTimeout}
}

func (e *Editor) path() string {
	return e.store.Path("COORDINATION.md")
}

// Read returns the full raw Markdown content, or DefaultScaffold if the
// file is empty (first access on a fresh project root). The scaffold is
// only returned; Read does not write it to the file.
func (e *Editor) Read() (string, error) {
	raw, err := store.ReadLocked(e.path(), e.lockTimeout)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return DefaultScaffold, nil
	}
	return string(raw), nil
}

// section describes one "## name" header's byte range within the document,
// content spanning from just after the header line to just before the next
// header (or EOF).
type section struct {
	name         string
	contentStart int
	contentEnd   int
}

func parseSections(doc string) []section {
	matches := sectionHeader.FindAllStringSubmatchIndex(doc, -1)
	sections := make([]section, 0, len(matches))
	for i, m := range matches {
		name := doc[m[2]:m[3]]
		contentStart := m[1]
		if contentStart < len(doc) && doc[contentStart] == '\n' {
			contentStart++
		}
		contentEnd := len(doc)
		if i+1 < len(matches) {
			contentEnd = matches[i+1][0]
		}
		sections = append(sections, section{name: name, contentStart: contentStart, contentEnd: contentEnd})
	}
	return sections
}

// GetSection returns the trimmed body text of the named section (matched
// case-sensitively against the header's exact text), and whether it was
// found.
func (e *Editor) GetSection(name string) (string, bool, error) {
	doc, err := e.Read()
	if err != nil {
		return "", false, err
	}
	for _, sec := range parseSections(doc) {
		if sec.name == name {
			return strings.TrimRight(doc[sec.contentStart:sec.contentEnd], "\n"), true, nil
		}
	}
	return "", false, nil
}

// UpdateSection replaces the named section's body with content, creating
// the section at the end of the document if it doesn't exist, under one
// held exclusive lock for the whole file per spec §9.
func (e *Editor) UpdateSection(name, content string) error {
	return e.withDoc(func(doc string) (string, error) {
		sections := parseSections(doc)
		for _, sec := range sections {
			if sec.name == name {
				body := strings.TrimRight(content, "\n") + "\n"
				return doc[:sec.contentStart] + body + doc[sec.contentEnd:], nil
			}
		}
		return appendSection(doc, name, content), nil
	})
}

// AppendToSection appends text to the named section's existing body,
// creating the section if it doesn't exist.
func (e *Editor) AppendToSection(name, text string) error {
	return e.withDoc(func(doc string) (string, error) {
		sections := parseSections(doc)
		for _, sec := range sections {
			if sec.name == name {
				existing := strings.TrimRight(doc[sec.contentStart:sec.contentEnd], "\n")
				var merged string
				if existing == "" {
					merged = text
				} else {
					merged = existing + "\n" + text
				}
				body := strings.TrimRight(merged, "\n") + "\n"
				return doc[:sec.contentStart] + body + doc[sec.contentEnd:], nil
			}
		}
		return appendSection(doc, name, text), nil
	})
}

func appendSection(doc, name, content string) string {
	if doc != "" && !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}
	if doc != "" && !strings.HasSuffix(doc, "\n\n") {
		doc += "\n"
	}
	doc += fmt.Sprintf("## %s\n%s\n", name, strings.TrimRight(content, "\n"))
	return doc
}

func (e *Editor) withDoc(mutate func(string) (string, error)) error {
	doc, err := e.Read()
	if err != nil {
		return err
	}
	updated, err := mutate(doc)
	if err != nil {
		return err
	}
	if err := store.WriteLocked(e.path(), []byte(updated), e.lockTimeout); err != nil {
		return err
	}
	return nil
}

// EnsureDefault seeds COORDINATION.md with DefaultScaffold if it doesn't
// exist yet or is empty; a no-op otherwise.
func (e *Editor) EnsureDefault() error {
	raw, err := store.ReadLocked(e.path(), e.lockTimeout)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		return nil
	}
	return store.WriteLocked(e.path(), []byte(DefaultScaffold), e.lockTimeout)
}
