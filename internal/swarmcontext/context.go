// Package swarmcontext implements the context grouping entity of spec §3:
// a named collection joining related tasks, decisions, and touched files
// so work can be linked across agents over time, persisted in
// CONTEXTS.json.
//
// Grounded on internal/store for the lock-guarded collection file, and on
// the teacher's internal/convoy/observer.go append-only decision log idiom
// (decisions are appended, never edited in place).
package swarmcontext

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/swarmerr"
)

// Decision is one append-only record of a decision made within a context.
type Decision struct {
	AgentID   string    `json:"agent_id"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is one element of CONTEXTS.json, per spec §3.
type Context struct {
	ContextID   string     `json:"context_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	TaskIDs     []string   `json:"task_ids,omitempty"`
	Files       []string   `json:"files,omitempty"`
	Decisions   []Decision `json:"decisions,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type collection struct {
	Version   string             `json:"version"`
	UpdatedAt time.Time          `json:"updated_at"`
	Contexts  map[string]Context `json:"contexts"`
}

func newCollection() collection {
	return collection{Version: "1.0", Contexts: map[string]Context{}}
}

// Store manages CONTEXTS.json for one project root.
type Store struct {
	store       *store.Store
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a context Store. lockTimeout of 0 uses the store package
// default.
func New(s *store.Store, lockTimeout time.Duration) *Store {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Store{store: s, lockTimeout: lockTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) path() string {
	return s.store.Path("CONTEXTS.json")
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
	if c.Contexts == nil {
		c.Contexts = map[string]Context{}
	}
	return c, nil
}

func (s *Store) mutate(fn func(collection) (collection, bool, error)) (collection, error) {
	return store.WithLock(s.path(), s.lockTimeout, newCollection, fn)
}

// Create adds a new context and returns it.
func (s *Store) Create(name, description, createdBy string) (Context, error) {
	if name == "" {
		return Context{}, &swarmerr.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	now := s.now()
	c := Context{
		ContextID:   uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.mutate(func(col collection) (collection, bool, error) {
		col.Contexts[c.ContextID] = c
		return col, true, nil
	})
	if err != nil {
		return Context{}, err
	}
	return c, nil
}

// Get returns the context with the given ID.
func (s *Store) Get(contextID string) (Context, error) {
	col, err := s.load()
	if err != nil {
		return Context{}, err
	}
	c, ok := col.Contexts[contextID]
	if !ok {
		return Context{}, fmt.Errorf("%w: context %s", swarmerr.ErrNotFound, contextID)
	}
	return c, nil
}

// List returns every context, sorted by CreatedAt.
func (s *Store) List() ([]Context, error) {
	col, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Context, 0, len(col.Contexts))
	for _, c := range col.Contexts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// LinkTask adds taskID to the context's task list, if not already present.
func (s *Store) LinkTask(contextID, taskID string) (Context, error) {
	return s.update(contextID, func(c *Context) {
		if !containsString(c.TaskIDs, taskID) {
			c.TaskIDs = append(c.TaskIDs, taskID)
		}
	})
}

// TouchFile records path as touched within the context, if not already
// present.
func (s *Store) TouchFile(contextID, path string) (Context, error) {
	return s.update(contextID, func(c *Context) {
		if !containsString(c.Files, path) {
			c.Files = append(c.Files, path)
		}
	})
}

// RecordDecision appends a decision to the context's append-only log.
func (s *Store) RecordDecision(contextID, agentID, summary string) (Context, error) {
	now := s.now()
	return s.update(contextID, func(c *Context) {
		c.Decisions = append(c.Decisions, Decision{AgentID: agentID, Summary: summary, Timestamp: now})
	})
}

func (s *Store) update(contextID string, mutateCtx func(*Context)) (Context, error) {
	var result Context
	_, err := s.mutate(func(col collection) (collection, bool, error) {
		c, ok := col.Contexts[contextID]
		if !ok {
			return col, false, fmt.Errorf("%w: context %s", swarmerr.ErrNotFound, contextID)
		}
		mutateCtx(&c)
		c.UpdatedAt = s.now()
		col.Contexts[contextID] = c
		result = c
		return col, true, nil
	})
	if err != nil {
		return Context{}, err
	}
	return result, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
