// Package memory implements the per-agent persistent memory store of spec
// §4.M: a bounded task-history ring, deduplicated learned patterns scored
// by an exponential moving average, and relationship scores toward other
// agents, one JSON file per agent under .agent_memory/.
//
// Grounded on the teacher's internal/quota/state.go per-entity
// JSON-with-flock pattern (one quota file per rig) generalized to one
// memory file per agent.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/claude-swarm/swarm/internal/store"
)

// Bounds from spec §4.M.
const (
	MaxTaskHistory     = 50
	MaxLearnedPatterns = 100
)

// patternEMAWeight is the reinforcement weight for learn_pattern's
// effectiveness EMA, per spec §4.M.
const patternEMAWeight = 0.2

// maxInteractionWeight caps record_interaction's blend weight; the actual
// weight is min(maxInteractionWeight, 5/total).
const maxInteractionWeight = 0.3

// TaskMemory is one ring entry of a remembered task.
type TaskMemory struct {
	TaskID    string            `json:"task_id"`
	Objective string            `json:"objective"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Pattern is one learned behavioral pattern, deduplicated by a hash of its
// description.
type Pattern struct {
	Hash          string    `json:"hash"`
	Description   string    `json:"description"`
	Effectiveness float64   `json:"effectiveness"`
	Occurrences   int       `json:"occurrences"`
	LastSeen      time.Time `json:"last_seen"`
}

// Relationship tracks trust/reliability with another agent, updated by
// record_interaction as a blended EMA.
type Relationship struct {
	AgentID     string  `json:"agent_id"`
	Trust       float64 `json:"trust"`
	Reliability float64 `json:"reliability"`
	Total       int     `json:"total"`
	Positive    int     `json:"positive"`
}

// Memory is the on-disk shape of .agent_memory/<agent_id>.json.
type Memory struct {
	AgentID       string                  `json:"agent_id"`
	TaskHistory   []TaskMemory            `json:"task_history"`
	Patterns      []Pattern               `json:"patterns"`
	Relationships map[string]Relationship `json:"relationships"`
	Knowledge     map[string]string       `json:"knowledge_map,omitempty"`
	Preferences   map[string]string       `json:"preferences,omitempty"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func newMemory() Memory {
	return Memory{Relationships: map[string]Relationship{}, Knowledge: map[string]string{}, Preferences: map[string]string{}}
}

// Store manages per-agent memory files under .agent_memory/.
type Store struct {
	store       *store.Store
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a memory Store.
func New(s *store.Store, lockTimeout time.Duration) *Store {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Store{store: s, lockTimeout: lockTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) path(agentID string) string {
	return s.store.Path(".agent_memory", agentID+".json")
}

// Load returns agentID's memory, or an empty one if none exists yet.
func (s *Store) Load(agentID string) (Memory, error) {
	raw, err := store.ReadLocked(s.path(agentID), s.lockTimeout)
	if err != nil {
		return Memory{}, err
	}
	m := newMemory()
	m.AgentID = agentID
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			// Corrupt per-record file: treated as absent per spec §7.
			m = newMemory()
			m.AgentID = agentID
		}
	}
	if m.Relationships == nil {
		m.Relationships = map[string]Relationship{}
	}
	return m, nil
}

func (s *Store) mutate(agentID string, fn func(Memory) (Memory, bool, error)) (Memory, error) {
	newDoc := func() Memory {
		m := newMemory()
		m.AgentID = agentID
		return m
	}
	return store.WithLock(s.path(agentID), s.lockTimeout, newDoc, func(m Memory) (Memory, bool, error) {
		if m.Relationships == nil {
			m.Relationships = map[string]Relationship{}
		}
		updated, changed, err := fn(m)
		if changed {
			updated.UpdatedAt = s.now()
		}
		return updated, changed, err
	})
}

// RememberTask prepends a task to the history ring, capped at
// MaxTaskHistory (newest first), per spec §4.M.
func (s *Store) RememberTask(agentID string, t TaskMemory) (Memory, error) {
	t.Timestamp = s.now()
	return s.mutate(agentID, func(m Memory) (Memory, bool, error) {
		m.TaskHistory = append([]TaskMemory{t}, m.TaskHistory...)
		if len(m.TaskHistory) > MaxTaskHistory {
			m.TaskHistory = m.TaskHistory[:MaxTaskHistory]
		}
		return m, true, nil
	})
}

// LearnPattern records description as a learned pattern. If a pattern with
// the same description hash already exists, its effectiveness is
// reinforced as an EMA with weight patternEMAWeight and its occurrence
// count incremented; otherwise a new pattern is added. The pattern set is
// capped at MaxLearnedPatterns, pruning the least effective entry when
// full, per spec §4.M.
func (s *Store) LearnPattern(agentID, description string, observedEffectiveness float64) (Memory, error) {
	h := patternHash(description)
	return s.mutate(agentID, func(m Memory) (Memory, bool, error) {
		now := s.now()
		for i, p := range m.Patterns {
			if p.Hash == h {
				p.Effectiveness = p.Effectiveness*(1-patternEMAWeight) + observedEffectiveness*patternEMAWeight
				p.Occurrences++
				p.LastSeen = now
				m.Patterns[i] = p
				return m, true, nil
			}
		}

		m.Patterns = append(m.Patterns, Pattern{
			Hash: h, Description: description, Effectiveness: observedEffectiveness,
			Occurrences: 1, LastSeen: now,
		})
		if len(m.Patterns) > MaxLearnedPatterns {
			pruneLeastEffective(&m.Patterns)
		}
		return m, true, nil
	})
}

func pruneLeastEffective(patterns *[]Pattern) {
	list := *patterns
	worst := 0
	for i, p := range list {
		if p.Effectiveness < list[worst].Effectiveness {
			worst = i
		}
	}
	*patterns = append(list[:worst], list[worst+1:]...)
}

// RecordInteraction updates trust/reliability toward otherAgent as a
// blended ratio with weight min(maxInteractionWeight, 5/total), per spec
// §4.M.
func (s *Store) RecordInteraction(agentID, otherAgent string, positive bool) (Memory, error) {
	return s.mutate(agentID, func(m Memory) (Memory, bool, error) {
		rel := m.Relationships[otherAgent]
		rel.AgentID = otherAgent
		rel.Total++
		if positive {
			rel.Positive++
		}

		weight := maxInteractionWeight
		if w := 5.0 / float64(rel.Total); w < weight {
			weight = w
		}
		sample := 0.0
		if positive {
			sample = 1.0
		}
		rel.Trust = rel.Trust*(1-weight) + sample*weight
		rel.Reliability = float64(rel.Positive) / float64(rel.Total)

		m.Relationships[otherAgent] = rel
		return m, true, nil
	})
}

// patternHash returns a stable hash of a pattern description, used for
// dedup.
func patternHash(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:])
}
