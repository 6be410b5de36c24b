// Package task implements the task lifecycle state machine and store of
// spec §4.I: validated status transitions, an append-only history,
// filtering/listing, and subtask/context queries against TASKS.json.
//
// Grounded on the teacher's internal/convoy/observer.go transition-and-log
// idiom (each state change is checked against an allowed-next-state set and
// recorded), generalized from convoy completion checks to the task status
// table in spec §4.I, and internal/store for the lock-guarded collection
// file.
package task

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/swarmerr"
	"github.com/claude-swarm/swarm/internal/validate"
)

// Status values, per spec §3.
const (
	StatusPending   = "pending"
	StatusAssigned  = "assigned"
	StatusWorking   = "working"
	StatusReview    = "review"
	StatusBlocked   = "blocked"
	StatusFailed    = "failed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Priority values, per spec §4.I listing order (critical, high, normal, low).
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
)

var priorityRank = map[string]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityNormal:   2,
	PriorityLow:      3,
}

// validTransitions is the table of spec §4.I: unlisted pairs are rejected.
var validTransitions = map[string][]string{
	StatusPending:   {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusWorking, StatusBlocked, StatusCancelled, StatusPending},
	StatusWorking:   {StatusReview, StatusBlocked, StatusFailed, StatusCancelled, StatusCompleted},
	StatusReview:    {StatusCompleted, StatusWorking, StatusFailed, StatusCancelled},
	StatusBlocked:   {StatusPending, StatusAssigned, StatusWorking, StatusCancelled, StatusFailed},
	StatusFailed:    {StatusPending},
	StatusCompleted: {},
	StatusCancelled: {},
}

// IsTerminal reports whether status is a terminal state.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// HistoryEntry is one append-only record of a status transition.
type HistoryEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	AgentID   string            `json:"agent_id,omitempty"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Task is one element of TASKS.json, per spec §3.
type Task struct {
	TaskID       string            `json:"task_id"`
	Objective    string            `json:"objective"`
	Status       string            `json:"status"`
	Priority     string            `json:"priority"`
	CreatedBy    string            `json:"created_by"`
	AssignedTo   string            `json:"assigned_to,omitempty"`
	ContextID    string            `json:"context_id,omitempty"`
	Constraints  []string          `json:"constraints,omitempty"`
	Files        []string          `json:"files,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	BlockedBy    []string          `json:"blocked_by,omitempty"`
	Blocks       []string          `json:"blocks,omitempty"`
	Result       map[string]any    `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	History      []HistoryEntry    `json:"history"`
	ParentTaskID string            `json:"parent_task_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// collection is the on-disk shape of TASKS.json, per spec §6.
type collection struct {
	Version   string          `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Tasks     map[string]Task `json:"tasks"`
}

func newCollection() collection {
	return collection{Version: "1.0", Tasks: map[string]Task{}}
}

// Store manages TASKS.json for one project root.
type Store struct {
	store       *store.Store
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a task Store. lockTimeout of 0 uses the store package default.
func New(s *store.Store, lockTimeout time.Duration) *Store {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Store{store: s, lockTimeout: lockTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) path() string {
	return s.store.Path("TASKS.json")
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
	if c.Tasks == nil {
		c.Tasks = map[string]Task{}
	}
	return c, nil
}

// Get returns the task with the given ID.
func (s *Store) Get(taskID string) (Task, error) {
	c, err := s.load()
	if err != nil {
		return Task{}, err
	}
	t, ok := c.Tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: task %s", swarmerr.ErrNotFound, taskID)
	}
	return t, nil
}

// CreateInput bundles the fields a caller supplies when creating a task.
type CreateInput struct {
	Objective    string
	Priority     string
	CreatedBy    string
	ContextID    string
	Constraints  []string
	Files        []string
	Tags         []string
	BlockedBy    []string
	ParentTaskID string
}

// Create adds a new task in StatusPending and returns it.
func (s *Store) Create(in CreateInput) (Task, error) {
	if err := validate.AgentID(in.CreatedBy); err != nil {
		return Task{}, err
	}
	if in.Objective == "" {
		return Task{}, &swarmerr.ValidationError{Field: "objective", Reason: "must not be empty"}
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if _, ok := priorityRank[priority]; !ok {
		return Task{}, &swarmerr.ValidationError{Field: "priority", Reason: "must be one of critical, high, normal, low"}
	}

	now := s.now()
	t := Task{
		TaskID:       uuid.NewString(),
		Objective:    in.Objective,
		Status:       StatusPending,
		Priority:     priority,
		CreatedBy:    in.CreatedBy,
		ContextID:    in.ContextID,
		Constraints:  in.Constraints,
		Files:        in.Files,
		Tags:         in.Tags,
		BlockedBy:    in.BlockedBy,
		ParentTaskID: in.ParentTaskID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.mutate(func(c collection) (collection, bool, error) {
		c.Tasks[t.TaskID] = t
		c.UpdatedAt = now
		return c, true, nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// Assign transitions a pending (or blocked) task to StatusAssigned and sets
// AssignedTo. It is a thin wrapper over Transition that also stamps the
// assignee, since spec §4.I calls this out as a named operation.
func (s *Store) Assign(taskID, agentID, message string) (Task, error) {
	if err := validate.AgentID(agentID); err != nil {
		return Task{}, err
	}
	return s.transition(taskID, StatusAssigned, agentID, message, nil, func(t *Task) {
		t.AssignedTo = agentID
	})
}

// Transition moves a task from its current status to `to`, validating
// against the spec §4.I table and appending a history entry.
func (s *Store) Transition(taskID, to, agentID, message string) (Task, error) {
	return s.transition(taskID, to, agentID, message, nil, nil)
}

// Complete transitions a task to StatusCompleted, recording result.
func (s *Store) Complete(taskID, agentID string, result map[string]any) (Task, error) {
	return s.transition(taskID, StatusCompleted, agentID, "", nil, func(t *Task) {
		t.Result = result
	})
}

// Fail transitions a task to StatusFailed, recording errMsg.
func (s *Store) Fail(taskID, agentID, errMsg string) (Task, error) {
	return s.transition(taskID, StatusFailed, agentID, errMsg, nil, func(t *Task) {
		t.Error = errMsg
	})
}

// Block transitions a task to StatusBlocked, recording blockedBy reasons.
func (s *Store) Block(taskID, agentID, message string, blockedBy []string) (Task, error) {
	return s.transition(taskID, StatusBlocked, agentID, message, nil, func(t *Task) {
		if len(blockedBy) > 0 {
			t.BlockedBy = blockedBy
		}
	})
}

// Unblock returns a blocked task to StatusAssigned if it has an assignee,
// else StatusPending, per spec §4.I.
func (s *Store) Unblock(taskID, agentID, message string) (Task, error) {
	c, err := s.load()
	if err != nil {
		return Task{}, err
	}
	t, ok := c.Tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: task %s", swarmerr.ErrNotFound, taskID)
	}
	to := StatusPending
	if t.AssignedTo != "" {
		to = StatusAssigned
	}
	return s.transition(taskID, to, agentID, message, nil, nil)
}

// Cancel transitions a task to StatusCancelled.
func (s *Store) Cancel(taskID, agentID, message string) (Task, error) {
	return s.transition(taskID, StatusCancelled, agentID, message, nil, nil)
}

func (s *Store) transition(taskID, to, agentID, message string, metadata map[string]string, mutateTask func(*Task)) (Task, error) {
	var result Task
	_, err := s.mutate(func(c collection) (collection, bool, error) {
		t, ok := c.Tasks[taskID]
		if !ok {
			return c, false, fmt.Errorf("%w: task %s", swarmerr.ErrNotFound, taskID)
		}
		allowed := validTransitions[t.Status]
		permitted := false
		for _, a := range allowed {
			if a == to {
				permitted = true
				break
			}
		}
		if !permitted {
			return c, false, fmt.Errorf("%w: %s -> %s", swarmerr.ErrInvalidTransition, t.Status, to)
		}

		now := s.now()
		from := t.Status
		t.Status = to
		t.UpdatedAt = now
		if mutateTask != nil {
			mutateTask(&t)
		}
		t.History = append(t.History, HistoryEntry{
			Timestamp: now,
			From:      from,
			To:        to,
			AgentID:   agentID,
			Message:   message,
			Metadata:  metadata,
		})
		c.Tasks[taskID] = t
		c.UpdatedAt = now
		result = t
		return c, true, nil
	})
	if err != nil {
		return Task{}, err
	}
	return result, nil
}

func (s *Store) mutate(fn func(collection) (collection, bool, error)) (collection, error) {
	return store.WithLock(s.path(), s.lockTimeout, newCollection, fn)
}

// Filter selects tasks by zero or more criteria; zero-value fields are
// wildcards. IncludeTerminal toggles whether completed/cancelled tasks are
// returned.
type Filter struct {
	Status          string
	AssignedTo      string
	CreatedBy       string
	ContextID       string
	Priority        string
	IncludeTerminal bool
}

// List returns tasks matching filter, sorted by priority then created_at,
// per spec §4.I.
func (s *Store) List(f Filter) ([]Task, error) {
	c, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Task
	for _, t := range c.Tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
			continue
		}
		if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
			continue
		}
		if f.ContextID != "" && t.ContextID != f.ContextID {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if !f.IncludeTerminal && IsTerminal(t.Status) {
			continue
		}
		out = append(out, t)
	}
	sortTasks(out)
	return out, nil
}

func sortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		pi, pj := priorityRank[tasks[i].Priority], priorityRank[tasks[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// Subtasks returns tasks whose ParentTaskID is parentID.
func (s *Store) Subtasks(parentID string) ([]Task, error) {
	c, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Task
	for _, t := range c.Tasks {
		if t.ParentTaskID == parentID {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out, nil
}

// ContextTasks returns tasks sharing the given ContextID.
func (s *Store) ContextTasks(contextID string) ([]Task, error) {
	return s.List(Filter{ContextID: contextID, IncludeTerminal: true})
}

// Stats summarizes task counts by status, used by the CLI/dashboard.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
}

// Stats computes aggregate counts across all tasks.
func (s *Store) Stats() (Stats, error) {
	c, err := s.load()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByStatus: map[string]int{}, ByPriority: map[string]int{}}
	for _, t := range c.Tasks {
		st.Total++
		st.ByStatus[t.Status]++
		st.ByPriority[t.Priority]++
	}
	return st, nil
}
