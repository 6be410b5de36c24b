package conflict

import (
	"testing"

	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/task"
)

func newTestResolver(t *testing.T) (*Resolver, *task.Store) {
	t.Helper()
	s := store.New(t.TempDir())
	tasks := task.New(s, 0)
	return New(tasks, s, 0), tasks
}

func TestOpenRecordsConflict(t *testing.T) {
	r, _ := newTestResolver(t)
	c, err := r.Open("agent-2", "agent-1", "src/auth/authentication.py")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if c.Status != StatusPending || c.Type != TypeFileLock {
		t.Fatalf("unexpected conflict: %+v", c)
	}

	all, err := r.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(all))
	}
}

func TestResolveYieldStrategy(t *testing.T) {
	r, _ := newTestResolver(t)
	c, _ := r.Open("agent-2", "agent-1", "src/x.py")

	resolved, err := r.Resolve(c.ConflictID, "agent-2", "agent-1", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Resolution == nil || resolved.Resolution.Strategy != StrategyYield {
		t.Fatalf("expected yield resolution, got %+v", resolved.Resolution)
	}
	if resolved.Resolution.Winner != "agent-1" {
		t.Fatalf("expected holder to win on yield, got %s", resolved.Resolution.Winner)
	}
}

func TestResolvePriorityStrategyHigherTaskWins(t *testing.T) {
	r, tasks := newTestResolver(t)

	hi, _ := tasks.Create(task.CreateInput{Objective: "x", CreatedBy: "agent-0", Priority: task.PriorityCritical})
	tasks.Assign(hi.TaskID, "agent-2", "")

	lo, _ := tasks.Create(task.CreateInput{Objective: "y", CreatedBy: "agent-0", Priority: task.PriorityLow})
	tasks.Assign(lo.TaskID, "agent-1", "")

	c, _ := r.Open("agent-2", "agent-1", "src/x.py")
	resolved, err := r.Resolve(c.ConflictID, "agent-2", "agent-1", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Resolution.Strategy != StrategyPriority || resolved.Resolution.Winner != "agent-2" {
		t.Fatalf("expected requester to win on priority, got %+v", resolved.Resolution)
	}
}

func TestResolveFallsBackToSeniorityOnTie(t *testing.T) {
	r, _ := newTestResolver(t)
	c, _ := r.Open("agent-2", "agent-1", "src/x.py")
	resolved, err := r.Resolve(c.ConflictID, "agent-2", "agent-1", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Resolution.Strategy != StrategySeniority || resolved.Resolution.Winner != "agent-1" {
		t.Fatalf("expected holder to win on seniority tie-break, got %+v", resolved.Resolution)
	}
}

func TestNegotiateSingleYieldEndsRound(t *testing.T) {
	r, _ := newTestResolver(t)
	c, _ := r.Open("agent-2", "agent-1", "src/x.py")

	_, resolved, err := r.Negotiate(c.ConflictID, "agent-2", ActionYield)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if resolved {
		t.Fatalf("expected to still be waiting on the other party")
	}

	final, resolved, err := r.Negotiate(c.ConflictID, "agent-1", ActionInsist)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if !resolved {
		t.Fatalf("expected resolution after single yield")
	}
	if final.Resolution.Winner != "agent-1" {
		t.Fatalf("expected holder to win after requester yielded, got %+v", final.Resolution)
	}
}

func TestNegotiateMixedInsistCompromiseFavorsInsister(t *testing.T) {
	r, _ := newTestResolver(t)
	c, _ := r.Open("agent-2", "agent-1", "src/x.py")

	r.Negotiate(c.ConflictID, "agent-2", ActionInsist)
	final, resolved, err := r.Negotiate(c.ConflictID, "agent-1", ActionCompromise)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if !resolved {
		t.Fatalf("expected resolution")
	}
	if final.Resolution.Winner != "agent-2" {
		t.Fatalf("expected insister (requester) to win, got %+v", final.Resolution)
	}
}

func TestNegotiateBothInsistContinuesUntilMaxRounds(t *testing.T) {
	r, _ := newTestResolver(t)
	c, _ := r.Open("agent-2", "agent-1", "src/x.py")

	var final Conflict
	var resolved bool
	for i := 0; i < MaxNegotiationRounds; i++ {
		r.Negotiate(c.ConflictID, "agent-2", ActionInsist)
		final, resolved, _ = r.Negotiate(c.ConflictID, "agent-1", ActionInsist)
	}
	if !resolved {
		t.Fatalf("expected negotiation to resolve after %d rounds", MaxNegotiationRounds)
	}
	if final.Resolution.Strategy != StrategySeniority {
		t.Fatalf("expected seniority fallback after exhausting rounds, got %+v", final.Resolution)
	}
}
