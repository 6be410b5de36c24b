// Package discovery implements the agent discovery registry of spec §4.E:
// refreshing ACTIVE_AGENTS.json from the terminal backend's peer
// enumeration, reusing stable identifier→id mappings across refreshes and
// aging out peers that have gone quiet.
//
// Grounded on the teacher's internal/session/registry.go stable-mapping
// idiom (identifier → assigned name, reused across refreshes) generalized
// from beads-prefix↔rig mappings to backend-identifier↔agent-id mappings,
// and internal/store for the atomic ACTIVE_AGENTS.json replace.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/claude-swarm/swarm/internal/backend"
	"github.com/claude-swarm/swarm/internal/store"
)

// Status values for Agent.Status.
const (
	StatusActive = "active"
	StatusStale  = "stale"
	StatusDead   = "dead"
)

// DefaultStaleThreshold is used when a caller doesn't configure one.
const DefaultStaleThreshold = 60 * time.Second

// MinStaleThreshold and MaxStaleThreshold bound the configurable window,
// per spec §4.E.
const (
	MinStaleThreshold = 10 * time.Second
	MaxStaleThreshold = time.Hour
)

// Agent is one entry of the discovery registry.
type Agent struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	PID        int       `json:"pid"`
	SessionName string   `json:"session_name,omitempty"`
	CWD        string    `json:"cwd,omitempty"`
	Status     string    `json:"status"`
	LastSeen   time.Time `json:"last_seen"`
	Backend    string    `json:"backend,omitempty"`
}

// registryFile is the on-disk shape of ACTIVE_AGENTS.json.
type registryFile struct {
	SessionName string    `json:"session_name"`
	UpdatedAt   time.Time `json:"updated_at"`
	Agents      []Agent   `json:"agents"`
}

// Registry manages ACTIVE_AGENTS.json for one project root.
type Registry struct {
	store          *store.Store
	backend        backend.Backend
	staleThreshold time.Duration
	lockTimeout    time.Duration
}

// New creates a Registry. staleThreshold is clamped to
// [MinStaleThreshold, MaxStaleThreshold]; zero uses DefaultStaleThreshold.
func New(s *store.Store, b backend.Backend, staleThreshold, lockTimeout time.Duration) *Registry {
	if staleThreshold == 0 {
		staleThreshold = DefaultStaleThreshold
	}
	if staleThreshold < MinStaleThreshold {
		staleThreshold = MinStaleThreshold
	}
	if staleThreshold > MaxStaleThreshold {
		staleThreshold = MaxStaleThreshold
	}
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Registry{store: s, backend: b, staleThreshold: staleThreshold, lockTimeout: lockTimeout}
}

func (r *Registry) path() string {
	return r.store.Path("ACTIVE_AGENTS.json")
}

// Load reads the current registry, treating a missing/corrupt file as
// empty per spec §7.
func (r *Registry) Load() ([]Agent, error) {
	raw, err := store.ReadLocked(r.path(), r.lockTimeout)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var f registryFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil
	}
	return f.Agents, nil
}

// Refresh implements the five-step algorithm of spec §4.E: enumerate
// peers, reuse stable IDs from the prior registry, mark newly-discovered
// peers active, age out peers absent from this enumeration, and atomically
// replace ACTIVE_AGENTS.json.
func (r *Registry) Refresh(ctx context.Context, projectRoot, sessionName string) ([]Agent, error) {
	peers, err := r.backend.EnumeratePeers(ctx, projectRoot)
	if err != nil {
		return nil, err
	}

	prior, err := r.Load()
	if err != nil {
		return nil, err
	}

	priorByIdentifier := make(map[string]Agent, len(prior))
	maxNum := 0
	for _, a := range prior {
		priorByIdentifier[a.Identifier] = a
		if n, ok := agentNumber(a.ID); ok && n > maxNum {
			maxNum = n
		}
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(peers))
	var next []Agent

	for _, p := range peers {
		seen[p.Identifier] = true
		id := ""
		if existing, ok := priorByIdentifier[p.Identifier]; ok {
			id = existing.ID
		} else {
			maxNum++
			id = fmt.Sprintf("agent-%d", maxNum)
		}
		next = append(next, Agent{
			ID:          id,
			Identifier:  p.Identifier,
			PID:         p.PID,
			SessionName: p.SessionName,
			CWD:         p.CWD,
			Status:      StatusActive,
			LastSeen:    now,
			Backend:     r.backend.Name(),
		})
	}

	for _, a := range prior {
		if seen[a.Identifier] {
			continue
		}
		if now.Sub(a.LastSeen) < r.staleThreshold {
			a.Status = StatusStale
			next = append(next, a)
		}
		// else: dead, dropped
	}

	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

	f := registryFile{SessionName: sessionName, UpdatedAt: now, Agents: next}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := store.WriteLocked(r.path(), data, r.lockTimeout); err != nil {
		return nil, err
	}
	return next, nil
}

// agentNumber extracts the numeric suffix from an "agent-N" ID.
func agentNumber(id string) (int, bool) {
	const prefix = "agent-"
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Lookup returns the active-or-stale agent matching id, if any.
func (r *Registry) Lookup(id string) (Agent, bool, error) {
	agents, err := r.Load()
	if err != nil {
		return Agent{}, false, err
	}
	for _, a := range agents {
		if a.ID == id {
			return a, true, nil
		}
	}
	return Agent{}, false, nil
}

// Active returns only agents with Status == StatusActive.
func (r *Registry) Active() ([]Agent, error) {
	agents, err := r.Load()
	if err != nil {
		return nil, err
	}
	var active []Agent
	for _, a := range agents {
		if a.Status == StatusActive {
			active = append(active, a)
		}
	}
	return active, nil
}
