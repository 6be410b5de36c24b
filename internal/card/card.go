// Package card implements the agent-card registry of spec §4.J: persisted
// capability cards (skills, tools, specializations, success rates,
// availability) that the delegation engine (§4.K) scores against.
//
// Grounded on internal/store for the lock-guarded AGENT_CARDS.json
// collection, mirroring the teacher's per-entity JSON-with-flock pattern
// used throughout internal/quota and internal/session.
package card

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/swarmerr"
	"github.com/claude-swarm/swarm/internal/validate"
)

// Availability values, per spec §3.
const (
	AvailabilityActive  = "active"
	AvailabilityBusy    = "busy"
	AvailabilityOffline = "offline"
)

// Card is one element of AGENT_CARDS.json, per spec §3.
type Card struct {
	AgentID         string             `json:"agent_id"`
	Name            string             `json:"name"`
	Skills          []string           `json:"skills"`
	Tools           []string           `json:"tools"`
	Availability    string             `json:"availability"`
	SuccessRates    map[string]float64 `json:"success_rates"`
	Specializations []string           `json:"specializations"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// collection is the on-disk shape of AGENT_CARDS.json.
type collection struct {
	Version   string          `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Cards     map[string]Card `json:"cards"`
}

func newCollection() collection {
	return collection{Version: "1.0", Cards: map[string]Card{}}
}

// Registry manages AGENT_CARDS.json for one project root.
type Registry struct {
	store       *store.Store
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a card Registry.
func New(s *store.Store, lockTimeout time.Duration) *Registry {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Registry{store: s, lockTimeout: lockTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Registry) path() string {
	return r.store.Path("AGENT_CARDS.json")
}

func (r *Registry) load() (collection, error) {
	raw, err := store.ReadLocked(r.path(), r.lockTimeout)
	if err != nil {
		return newCollection(), err
	}
	c := newCollection()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c); err != nil {
			return newCollection(), nil
		}
	}
	if c.Cards == nil {
		c.Cards = map[string]Card{}
	}
	return c, nil
}

// mutate performs a read-modify-write of AGENT_CARDS.json under one held
// exclusive lock.
func (r *Registry) mutate(fn func(collection) (collection, bool, error)) (collection, error) {
	return store.WithLock(r.path(), r.lockTimeout, newCollection, func(c collection) (collection, bool, error) {
		updated, changed, err := fn(c)
		if changed {
			updated.UpdatedAt = r.now()
		}
		return updated, changed, err
	})
}

// All returns every registered card.
func (r *Registry) All() ([]Card, error) {
	c, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]Card, 0, len(c.Cards))
	for _, card := range c.Cards {
		out = append(out, card)
	}
	return out, nil
}

// Get returns the card for agentID.
func (r *Registry) Get(agentID string) (Card, error) {
	c, err := r.load()
	if err != nil {
		return Card{}, err
	}
	card, ok := c.Cards[agentID]
	if !ok {
		return Card{}, fmt.Errorf("%w: card %s", swarmerr.ErrNotFound, agentID)
	}
	return card, nil
}

// Upsert validates and stores card, clamping success rates to [0,1] per
// spec §3's invariant, creating or replacing the existing entry.
func (r *Registry) Upsert(in Card) (Card, error) {
	if err := validate.AgentID(in.AgentID); err != nil {
		return Card{}, err
	}
	if in.Availability == "" {
		in.Availability = AvailabilityActive
	}
	if in.Availability != AvailabilityActive && in.Availability != AvailabilityBusy && in.Availability != AvailabilityOffline {
		return Card{}, &swarmerr.ValidationError{Field: "availability", Reason: "must be one of active, busy, offline"}
	}
	if in.SuccessRates == nil {
		in.SuccessRates = map[string]float64{}
	}
	for skill, rate := range in.SuccessRates {
		in.SuccessRates[skill] = clamp01(rate)
	}

	now := r.now()
	var result Card
	_, err := r.mutate(func(c collection) (collection, bool, error) {
		if existing, ok := c.Cards[in.AgentID]; ok {
			in.CreatedAt = existing.CreatedAt
		} else {
			in.CreatedAt = now
		}
		in.UpdatedAt = now
		c.Cards[in.AgentID] = in
		result = in
		return c, true, nil
	})
	if err != nil {
		return Card{}, err
	}
	return result, nil
}

// SetAvailability updates only the availability field of an existing card.
func (r *Registry) SetAvailability(agentID, availability string) (Card, error) {
	var result Card
	_, err := r.mutate(func(c collection) (collection, bool, error) {
		existing, ok := c.Cards[agentID]
		if !ok {
			return c, false, fmt.Errorf("%w: card %s", swarmerr.ErrNotFound, agentID)
		}
		existing.Availability = availability
		c.Cards[agentID] = existing
		result = existing
		return c, true, nil
	})
	if err != nil {
		return Card{}, err
	}
	return result, nil
}

// UpdateSuccessRate clamps and sets the success rate for one skill, used by
// the learning-data propagation path (spec §4.J "Learning").
func (r *Registry) UpdateSuccessRate(agentID, skill string, rate float64) (Card, error) {
	var result Card
	_, err := r.mutate(func(c collection) (collection, bool, error) {
		existing, ok := c.Cards[agentID]
		if !ok {
			return c, false, fmt.Errorf("%w: card %s", swarmerr.ErrNotFound, agentID)
		}
		if existing.SuccessRates == nil {
			existing.SuccessRates = map[string]float64{}
		}
		existing.SuccessRates[skill] = clamp01(rate)
		c.Cards[agentID] = existing
		result = existing
		return c, true, nil
	})
	if err != nil {
		return Card{}, err
	}
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
