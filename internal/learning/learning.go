// Package learning implements the aggregate learning-data store of spec
// §4.M "Learning": per-agent performance counters and per-skill success
// rates tracked as exponential moving averages, persisted in
// LEARNING_DATA.json and propagated into the agent-card registry so future
// delegation scoring (§4.K) sees the updated rates.
//
// Grounded on internal/store for the lock-guarded collection file and on
// internal/memory's EMA-reinforcement idiom (learn_pattern's effectiveness
// blend), generalized from per-agent patterns to aggregate skill/agent
// performance.
package learning

import (
	"encoding/json"
	"time"

	"github.com/claude-swarm/swarm/internal/card"
	"github.com/claude-swarm/swarm/internal/store"
)

// emaWeight is the blend weight applied to every success-rate and
// completion-time EMA update, per spec §4.M.
const emaWeight = 0.1

// AgentStats tracks one agent's aggregate performance.
type AgentStats struct {
	AgentID              string  `json:"agent_id"`
	TasksInProgress      int     `json:"tasks_in_progress"`
	TasksCompleted       int     `json:"tasks_completed"`
	TasksFailed          int     `json:"tasks_failed"`
	SuccessRate          float64 `json:"success_rate"`
	AvgCompletionSeconds float64 `json:"avg_completion_seconds"`
}

// SkillStats tracks one skill's aggregate success rate across every agent
// that has attempted it.
type SkillStats struct {
	Skill       string  `json:"skill"`
	SuccessRate float64 `json:"success_rate"`
	SampleCount int     `json:"sample_count"`
}

type collection struct {
	Version   string                `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Agents    map[string]AgentStats `json:"agents"`
	Skills    map[string]SkillStats `json:"skills"`
}

func newCollection() collection {
	return collection{Version: "1.0", Agents: map[string]AgentStats{}, Skills: map[string]SkillStats{}}
}

// Store manages LEARNING_DATA.json for one project root, propagating
// per-skill rates into the card registry.
type Store struct {
	store       *store.Store
	cards       *card.Registry
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a learning Store. cards may be nil in tests that don't need
// propagation; New() wiring always supplies it in production.
func New(s *store.Store, cards *card.Registry, lockTimeout time.Duration) *Store {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Store{store: s, cards: cards, lockTimeout: lockTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) path() string {
	return s.store.Path("LEARNING_DATA.json")
}

func (s *Store) load() (collection, error) {
	raw, err := store.ReadLocked(s.path(), s.lockTimeout)
	if err != nil {
		return newCollection(), err
	}
	c := newCollection()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c); err != nil {
			return newCollection(), nil
		}
	}
	if c.Agents == nil {
		c.Agents = map[string]AgentStats{}
	}
	if c.Skills == nil {
		c.Skills = map[string]SkillStats{}
	}
	return c, nil
}

func (s *Store) mutate(fn func(collection) (collection, bool, error)) (collection, error) {
	return store.WithLock(s.path(), s.lockTimeout, newCollection, func(c collection) (collection, bool, error) {
		updated, changed, err := fn(c)
		if changed {
			updated.UpdatedAt = s.now()
		}
		return updated, changed, err
	})
}

// AgentStats returns the recorded stats for agentID, or a zero-valued
// entry if it has none yet.
func (s *Store) AgentStats(agentID string) (AgentStats, error) {
	c, err := s.load()
	if err != nil {
		return AgentStats{}, err
	}
	if st, ok := c.Agents[agentID]; ok {
		return st, nil
	}
	return AgentStats{AgentID: agentID}, nil
}

// RecordTaskStarted increments agentID's in-progress counter, used when a
// task transitions into StatusWorking.
func (s *Store) RecordTaskStarted(agentID string) (AgentStats, error) {
	var result AgentStats
	_, err := s.mutate(func(c collection) (collection, bool, error) {
		st := c.Agents[agentID]
		st.AgentID = agentID
		st.TasksInProgress++
		c.Agents[agentID] = st
		result = st
		return c, true, nil
	})
	return result, err
}

// RecordTaskCompleted implements spec §4.M's record_task_completed: on
// completion, decrements tasks_in_progress (floor 0), updates the
// completed/failed counters and the agent's overall success rate as an EMA
// with weight 0.1, updates the completion-time EMA, updates each involved
// skill's success rate as the same EMA, then propagates the resulting
// skill rates back into AGENT_CARDS.json via the card registry.
func (s *Store) RecordTaskCompleted(agentID string, skills []string, success bool, completionTime time.Duration) (AgentStats, error) {
	sample := 0.0
	if success {
		sample = 1.0
	}

	var result AgentStats
	_, err := s.mutate(func(c collection) (collection, bool, error) {
		st := c.Agents[agentID]
		st.AgentID = agentID
		if st.TasksInProgress > 0 {
			st.TasksInProgress--
		}
		if success {
			st.TasksCompleted++
		} else {
			st.TasksFailed++
		}
		st.SuccessRate = ema(st.SuccessRate, sample, st.TasksCompleted+st.TasksFailed)
		st.AvgCompletionSeconds = ema(st.AvgCompletionSeconds, completionTime.Seconds(), st.TasksCompleted+st.TasksFailed)
		c.Agents[agentID] = st
		result = st

		for _, skill := range skills {
			sk := c.Skills[skill]
			sk.Skill = skill
			sk.SampleCount++
			sk.SuccessRate = ema(sk.SuccessRate, sample, sk.SampleCount)
			c.Skills[skill] = sk
		}
		return c, true, nil
	})
	if err != nil {
		return AgentStats{}, err
	}

	if s.cards != nil {
		for _, skill := range skills {
			sk, lerr := s.skillRate(skill)
			if lerr != nil {
				return result, lerr
			}
			if _, cerr := s.cards.UpdateSuccessRate(agentID, skill, sk); cerr != nil {
				return result, cerr
			}
		}
	}
	return result, nil
}

func (s *Store) skillRate(skill string) (float64, error) {
	c, err := s.load()
	if err != nil {
		return 0, err
	}
	return c.Skills[skill].SuccessRate, nil
}

// ema blends prior against sample. For the very first sample (count == 1)
// it seeds the average directly rather than blending against a zero prior,
// avoiding an artificially low first reading.
func ema(prior, sample float64, count int) float64 {
	if count <= 1 {
		return sample
	}
	return prior*(1-emaWeight) + sample*emaWeight
}
