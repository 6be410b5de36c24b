// Package delegate also implements the delegation engine proper: scoring
// every available agent concurrently (golang.org/x/sync/errgroup, per the
// expanded spec's domain-stack wiring), picking the best match, and
// recording the outcome in DELEGATION_HISTORY.json.
package delegate

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/claude-swarm/swarm/internal/card"
	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/swarmerr"
	"github.com/claude-swarm/swarm/internal/task"
)

// MaxHistoryEntries caps DELEGATION_HISTORY.json, per spec §3.
const MaxHistoryEntries = 1000

// Candidate is one scored agent considered for a task.
type Candidate struct {
	AgentID  string             `json:"agent_id"`
	Score    float64            `json:"score"`
	PerSkill map[string]float64 `json:"per_skill,omitempty"`
}

// HistoryEntry is the immutable outcome of one delegation attempt, per
// spec §3.
type HistoryEntry struct {
	ID           string      `json:"id"`
	TaskID       string      `json:"task_id"`
	AgentID      string      `json:"agent_id"`
	Score        float64     `json:"score"`
	Alternatives []Candidate `json:"alternatives"`
	Timestamp    time.Time   `json:"timestamp"`
}

type historyFile struct {
	Version   string         `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
	History   []HistoryEntry `json:"delegation_history"`
}

func newHistoryFile() historyFile {
	return historyFile{Version: "1.0"}
}

// Engine wires the card registry and task store together to perform
// skill-based delegation, per spec §4.K.
type Engine struct {
	cards       *card.Registry
	tasks       *task.Store
	store       *store.Store
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a delegation Engine.
func New(cards *card.Registry, tasks *task.Store, s *store.Store, lockTimeout time.Duration) *Engine {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Engine{cards: cards, tasks: tasks, store: s, lockTimeout: lockTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func (e *Engine) historyPath() string {
	return e.store.Path("DELEGATION_HISTORY.json")
}

// eligible filters the registry by availability=active, exclusions, and a
// required-tool set, per spec §4.K findBest.
func eligible(cards []card.Card, exclude []string, requiredTools []string) []card.Card {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []card.Card
	for _, c := range cards {
		if c.Availability != card.AvailabilityActive {
			continue
		}
		if excluded[c.AgentID] {
			continue
		}
		if !hasAllTools(c.Tools, requiredTools) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasAllTools(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// FindBest scores every eligible agent against t concurrently and returns
// them ranked descending by score. Per spec §4.K, an empty eligible set or
// a top score of exactly 0 is reported as "none found".
func (e *Engine) FindBest(t task.Task, exclude, requiredTools []string) ([]Candidate, bool, error) {
	all, err := e.cards.All()
	if err != nil {
		return nil, false, err
	}
	pool := eligible(all, exclude, requiredTools)
	if len(pool) == 0 {
		return nil, false, nil
	}

	requirements := ExtractSkills(t.Objective, t.Constraints, t.Files)

	candidates := make([]Candidate, len(pool))
	var mu sync.Mutex
	g := new(errgroup.Group)
	for i, c := range pool {
		i, c := i, c
		g.Go(func() error {
			score, perSkill := Score(c, requirements, t.Priority)
			mu.Lock()
			candidates[i] = Candidate{AgentID: c.AgentID, Score: score, PerSkill: perSkill}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // Score never errors; the group only buys concurrent fan-out.

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) == 0 || candidates[0].Score == 0 {
		return nil, false, nil
	}
	return candidates, true, nil
}

// Delegate assigns t to agentID (or, if agentID is empty, to the best match
// from FindBest), recording the outcome — including up to the top-3
// alternatives considered — in DELEGATION_HISTORY.json, per spec §4.K.
func (e *Engine) Delegate(t task.Task, agentID string, requiredTools []string) (task.Task, HistoryEntry, error) {
	var alternatives []Candidate

	if agentID == "" {
		ranked, found, err := e.FindBest(t, nil, requiredTools)
		if err != nil {
			return task.Task{}, HistoryEntry{}, err
		}
		if !found {
			return task.Task{}, HistoryEntry{}, fmt.Errorf("%w: no eligible agent for task %s", swarmerr.ErrNotFound, t.TaskID)
		}
		agentID = ranked[0].AgentID
		alternatives = topN(ranked, 3)
	} else {
		c, err := e.cards.Get(agentID)
		if err != nil {
			return task.Task{}, HistoryEntry{}, err
		}
		if c.Availability != card.AvailabilityActive {
			return task.Task{}, HistoryEntry{}, &swarmerr.ValidationError{Field: "agent_id", Reason: "agent is not active"}
		}
	}

	assigned, err := e.tasks.Assign(t.TaskID, agentID, "")
	if err != nil {
		return task.Task{}, HistoryEntry{}, err
	}

	var score float64
	for _, alt := range alternatives {
		if alt.AgentID == agentID {
			score = alt.Score
		}
	}

	entry := HistoryEntry{
		ID:           uuid.NewString(),
		TaskID:       t.TaskID,
		AgentID:      agentID,
		Score:        score,
		Alternatives: alternatives,
		Timestamp:    e.now(),
	}
	if err := e.record(entry); err != nil {
		// History is informational per spec §5; the task assignment stands.
		return assigned, entry, err
	}
	return assigned, entry, nil
}

func topN(candidates []Candidate, n int) []Candidate {
	if len(candidates) <= n {
		return candidates
	}
	return candidates[:n]
}

func (e *Engine) record(entry HistoryEntry) error {
	now := e.now()
	_, err := store.WithLock(e.historyPath(), e.lockTimeout, newHistoryFile, func(h historyFile) (historyFile, bool, error) {
		h.History = append(h.History, entry)
		if len(h.History) > MaxHistoryEntries {
			h.History = h.History[len(h.History)-MaxHistoryEntries:]
		}
		h.UpdatedAt = now
		return h, true, nil
	})
	return err
}

// History returns the recorded delegation outcomes, most recent last.
func (e *Engine) History() ([]HistoryEntry, error) {
	raw, err := store.ReadLocked(e.historyPath(), e.lockTimeout)
	if err != nil {
		return nil, err
	}
	h := newHistoryFile()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, nil
		}
	}
	return h.History, nil
}
