// Package conflict implements the conflict resolver of spec §4.L: turning
// file-lock denials into logged contested-resource records, applying an
// ordered chain of resolution strategies (yield, priority, seniority), and
// supporting a bounded negotiation protocol between the two parties.
//
// Grounded on the teacher's internal/doctor ordered-check idiom (a fixed
// sequence of named checks, each either resolving the situation or passing
// it to the next) generalized from doctor's diagnostic checks to
// resolution strategies, and internal/store for the CONFLICT_LOG.json
// collection file.
package conflict

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/swarmerr"
	"github.com/claude-swarm/swarm/internal/task"
)

// MaxLogEntries caps CONFLICT_LOG.json, per spec §3.
const MaxLogEntries = 500

// MaxNegotiationRounds bounds the negotiation protocol, per spec §4.L.
const MaxNegotiationRounds = 5

// Conflict types, per spec §3. Only file_lock is produced by this package
// today; the type is kept open for future contested-resource kinds.
const TypeFileLock = "file_lock"

// Status values, per spec §3.
const (
	StatusPending   = "pending"
	StatusResolving = "resolving"
	StatusResolved  = "resolved"
	StatusEscalated = "escalated"
)

// Negotiation actions, per spec §4.L.
const (
	ActionYield      = "yield"
	ActionInsist     = "insist"
	ActionCompromise = "compromise"
)

// Resolution strategy labels recorded on a Resolution, per spec §4.L.
const (
	StrategyPriority    = "priority"
	StrategySeniority   = "seniority"
	StrategyYield       = "yield"
	StrategyNegotiation = "negotiation"
)

// NegotiationRound is one posted action by one party.
type NegotiationRound struct {
	Round     int       `json:"round"`
	AgentID   string    `json:"agent_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Resolution records how a conflict was settled.
type Resolution struct {
	Strategy  string    `json:"strategy"`
	Winner    string    `json:"winner"`
	Loser     string    `json:"loser"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Conflict is one element of CONFLICT_LOG.json, per spec §3, with the
// negotiation_rounds counter the expanded spec adds for bookkeeping.
type Conflict struct {
	ConflictID        string             `json:"conflict_id"`
	Type              string             `json:"type"`
	AgentsInvolved    []string           `json:"agents_involved"`
	Resource          string             `json:"resource"`
	Status            string             `json:"status"`
	Negotiations      []NegotiationRound `json:"negotiations"`
	NegotiationRounds int                `json:"negotiation_rounds"`
	Resolution        *Resolution        `json:"resolution,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type logFile struct {
	Version   string     `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
	Conflicts []Conflict `json:"conflicts"`
}

func newLogFile() logFile { return logFile{Version: "1.0"} }

// Resolver applies spec §4.L's strategy chain against TASKS.json-derived
// priority signals and CONFLICT_LOG.json persistence.
type Resolver struct {
	tasks       *task.Store
	store       *store.Store
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates a Resolver.
func New(tasks *task.Store, s *store.Store, lockTimeout time.Duration) *Resolver {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Resolver{tasks: tasks, store: s, lockTimeout: lockTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Resolver) path() string {
	return r.store.Path("CONFLICT_LOG.json")
}

func (r *Resolver) mutate(fn func(logFile) (logFile, bool, error)) (logFile, error) {
	return store.WithLock(r.path(), r.lockTimeout, newLogFile, func(l logFile) (logFile, bool, error) {
		updated, changed, err := fn(l)
		if changed {
			updated.UpdatedAt = r.now()
		}
		return updated, changed, err
	})
}

// Load returns the current conflict log, most recent last.
func (r *Resolver) Load() ([]Conflict, error) {
	raw, err := store.ReadLocked(r.path(), r.lockTimeout)
	if err != nil {
		return nil, err
	}
	l := newLogFile()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, nil
		}
	}
	return l.Conflicts, nil
}

// Open records a new file-lock conflict between requester and holder over
// resource, per spec §4.L's "a file-lock denial becomes a file_lock
// conflict with the requester and current holder as parties".
func (r *Resolver) Open(requester, holder, resource string) (Conflict, error) {
	now := r.now()
	c := Conflict{
		ConflictID:     uuid.NewString(),
		Type:           TypeFileLock,
		AgentsInvolved: []string{requester, holder},
		Resource:       resource,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := r.mutate(func(l logFile) (logFile, bool, error) {
		l.Conflicts = append(l.Conflicts, c)
		if len(l.Conflicts) > MaxLogEntries {
			l.Conflicts = l.Conflicts[len(l.Conflicts)-MaxLogEntries:]
		}
		return l, true, nil
	})
	if err != nil {
		return Conflict{}, err
	}
	return c, nil
}

// Resolve applies the strategy chain of spec §4.L: an explicit yield by the
// requester is honored first, then priority comparison of each party's
// active tasks, then seniority (holder wins). The first strategy that
// produces a decision wins. Only that deciding Resolution is stored on the
// conflict; the strategies passed over before it are not recorded.
func (r *Resolver) Resolve(conflictID, requester, holder string, requesterYields bool) (Conflict, error) {
	var result Conflict
	_, err := r.mutate(func(l logFile) (logFile, bool, error) {
		idx := indexOf(l.Conflicts, conflictID)
		if idx < 0 {
			return l, false, swarmerr.ErrNotFound
		}
		c := l.Conflicts[idx]
		c.Status = StatusResolving

		resolution, err := r.decide(requester, holder, requesterYields)
		if err != nil {
			return l, false, err
		}
		c.Resolution = &resolution
		c.Status = StatusResolved
		l.Conflicts[idx] = c
		result = c
		return l, true, nil
	})
	if err != nil {
		return Conflict{}, err
	}
	return result, nil
}

// decide runs the yield -> priority -> seniority chain and always returns a
// decision (seniority never declines to decide, so the chain always
// terminates).
func (r *Resolver) decide(requester, holder string, requesterYields bool) (Resolution, error) {
	now := r.now()

	if requesterYields {
		return Resolution{Strategy: StrategyYield, Winner: holder, Loser: requester, Reason: "requester yielded", Timestamp: now}, nil
	}

	reqRank, err := r.bestActiveRank(requester)
	if err != nil {
		return Resolution{}, err
	}
	holderRank, err := r.bestActiveRank(holder)
	if err != nil {
		return Resolution{}, err
	}
	if reqRank != holderRank {
		if reqRank < holderRank {
			return Resolution{Strategy: StrategyPriority, Winner: requester, Loser: holder, Reason: "requester has a higher-priority active task", Timestamp: now}, nil
		}
		return Resolution{Strategy: StrategyPriority, Winner: holder, Loser: requester, Reason: "holder has a higher-priority active task", Timestamp: now}, nil
	}

	return Resolution{Strategy: StrategySeniority, Winner: holder, Loser: requester, Reason: "tie on priority; existing holder retains seniority", Timestamp: now}, nil
}

// bestActiveRank returns the lowest priorityRank (i.e. highest priority)
// among agentID's active (non-terminal) tasks, or the "normal" rank if the
// agent has none.
func (r *Resolver) bestActiveRank(agentID string) (int, error) {
	tasks, err := r.tasks.List(task.Filter{AssignedTo: agentID})
	if err != nil {
		return 0, err
	}
	best := -1
	for _, t := range tasks {
		if rk := rank(t.Priority); best < 0 || rk < best {
			best = rk
		}
	}
	if best < 0 {
		best = rank(task.PriorityNormal)
	}
	return best, nil
}

func rank(priority string) int {
	switch priority {
	case task.PriorityCritical:
		return 0
	case task.PriorityHigh:
		return 1
	case task.PriorityLow:
		return 3
	default:
		return 2
	}
}

// Negotiate appends one negotiation round's action and, once a round
// completes (both parties have posted for the current round number),
// evaluates spec §4.L's negotiation rules: a single yield ends it
// immediately; two yields fall back to priority/seniority; two insists
// continue until MaxNegotiationRounds then fall back to seniority; a mixed
// insist/compromise favors the insister.
func (r *Resolver) Negotiate(conflictID, agentID, action string) (Conflict, bool, error) {
	var result Conflict
	var resolved bool
	_, err := r.mutate(func(l logFile) (logFile, bool, error) {
		idx := indexOf(l.Conflicts, conflictID)
		if idx < 0 {
			return l, false, swarmerr.ErrNotFound
		}
		c := l.Conflicts[idx]
		c.Status = StatusResolving

		round := currentRound(c.Negotiations)
		c.Negotiations = append(c.Negotiations, NegotiationRound{
			Round: round, AgentID: agentID, Action: action, Timestamp: r.now(),
		})

		actions := actionsForRound(c.Negotiations, round)
		if len(actions) < 2 {
			// Waiting on the other party.
			l.Conflicts[idx] = c
			result = c
			return l, true, nil
		}

		requester, holder := c.AgentsInvolved[0], c.AgentsInvolved[1]
		decision, outcome := evaluateNegotiationRound(actions, requester, holder)

		switch {
		case outcome == outcomeDecided:
			c.Resolution = &decision
			c.Status = StatusResolved
			c.NegotiationRounds = round
			resolved = true
		case outcome == outcomeFallback:
			fallback, ferr := r.decide(requester, holder, false)
			if ferr != nil {
				return l, false, ferr
			}
			fallback.Reason = "both parties yielded; " + fallback.Reason
			c.Resolution = &fallback
			c.Status = StatusResolved
			c.NegotiationRounds = round
			resolved = true
		case round >= MaxNegotiationRounds:
			c.Resolution = &Resolution{Strategy: StrategySeniority, Winner: holder, Loser: requester, Reason: "negotiation ended without agreement; falling back to seniority", Timestamp: r.now()}
			c.Status = StatusResolved
			c.NegotiationRounds = round
			resolved = true
		default:
			c.NegotiationRounds = round
		}

		l.Conflicts[idx] = c
		result = c
		return l, true, nil
	})
	if err != nil {
		return Conflict{}, false, err
	}
	return result, resolved, nil
}

func currentRound(rounds []NegotiationRound) int {
	max := 0
	for _, r := range rounds {
		if r.Round > max {
			max = r.Round
		}
	}
	if max == 0 {
		return 1
	}
	// If the current max round already has two entries, start a new round.
	if len(actionsForRound(rounds, max)) >= 2 {
		return max + 1
	}
	return max
}

func actionsForRound(rounds []NegotiationRound, round int) map[string]string {
	out := map[string]string{}
	for _, r := range rounds {
		if r.Round == round {
			out[r.AgentID] = r.Action
		}
	}
	return out
}

// Outcomes of one evaluated negotiation round.
const (
	outcomeDecided  = "decided"
	outcomeFallback = "fallback"
	outcomeContinue = "continue"
)

// evaluateNegotiationRound applies spec §4.L's per-round rule set given
// both parties' actions for that round.
func evaluateNegotiationRound(actions map[string]string, requester, holder string) (Resolution, string) {
	reqAction, holdAction := actions[requester], actions[holder]
	now := time.Now().UTC()

	yields := 0
	if reqAction == ActionYield {
		yields++
	}
	if holdAction == ActionYield {
		yields++
	}

	switch {
	case yields == 1:
		// A single yield ends it immediately: the other side wins.
		if reqAction == ActionYield {
			return Resolution{Strategy: StrategyNegotiation, Winner: holder, Loser: requester, Reason: "requester yielded during negotiation", Timestamp: now}, outcomeDecided
		}
		return Resolution{Strategy: StrategyNegotiation, Winner: requester, Loser: holder, Reason: "holder yielded during negotiation", Timestamp: now}, outcomeDecided
	case yields == 2:
		return Resolution{}, outcomeFallback
	case reqAction == ActionInsist && holdAction == ActionInsist:
		return Resolution{}, outcomeContinue
	case reqAction == ActionInsist && holdAction == ActionCompromise:
		return Resolution{Strategy: StrategyNegotiation, Winner: requester, Loser: holder, Reason: "mixed insist/compromise favors the insister", Timestamp: now}, outcomeDecided
	case holdAction == ActionInsist && reqAction == ActionCompromise:
		return Resolution{Strategy: StrategyNegotiation, Winner: holder, Loser: requester, Reason: "mixed insist/compromise favors the insister", Timestamp: now}, outcomeDecided
	default:
		// Both compromise: no clear winner from this round: continue.
		return Resolution{}, outcomeContinue
	}
}

func indexOf(conflicts []Conflict, id string) int {
	for i, c := range conflicts {
		if c.ConflictID == id {
			return i
		}
	}
	return -1
}
