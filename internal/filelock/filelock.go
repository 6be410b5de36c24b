// Package filelock implements the file-lock manager of spec §4.F: mutual
// exclusion over paths or glob patterns, each held lock recorded as its own
// JSON file under .agent_locks/, with transparent stale-lock recovery.
//
// Grounded on the teacher's internal/nudge/queue.go exclusive-creation
// claiming idiom (one file per claim, O_CREAT|O_EXCL to settle races)
// generalized from queue-entry claiming to named path locks, and
// internal/store's atomic temp-then-rename write for in-place refresh.
package filelock

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/swarmerr"
)

// DefaultStaleTimeout is used when a caller doesn't configure one, per
// spec §4.F.
const DefaultStaleTimeout = 15 * time.Minute

const locksDir = ".agent_locks"

// Lock is one element of .agent_locks/<sha256(filepath)>.lock, per spec §3.
type Lock struct {
	AgentID  string `json:"agent_id"`
	FilePath string `json:"filepath"`
	LockedAt int64  `json:"locked_at"`
	Reason   string `json:"reason"`
}

// Conflict describes why acquire failed.
type Conflict struct {
	Holder   string
	FilePath string
	Reason   string
}

// Manager guards paths/glob patterns under one project root.
type Manager struct {
	store        *store.Store
	staleTimeout time.Duration
	now          func() time.Time
}

// New creates a Manager. staleTimeout of 0 uses DefaultStaleTimeout.
func New(s *store.Store, staleTimeout time.Duration) *Manager {
	if staleTimeout == 0 {
		staleTimeout = DefaultStaleTimeout
	}
	return &Manager{store: s, staleTimeout: staleTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func lockFileName(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:]) + ".lock"
}

func (m *Manager) lockPath(path string) string {
	return m.store.Path(locksDir, lockFileName(path))
}

func (m *Manager) isStale(l Lock) bool {
	return m.now().Sub(time.Unix(l.LockedAt, 0)) > m.staleTimeout
}

// readLock reads and decodes a lock file, returning (lock, true, nil) if
// present, (zero, false, nil) if absent, and transparently removing the
// file first if it is stale.
func (m *Manager) readLock(diskPath string) (Lock, bool, error) {
	raw, err := os.ReadFile(diskPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Lock{}, false, nil
		}
		return Lock{}, false, fmt.Errorf("%w: reading %s: %v", swarmerr.ErrIO, diskPath, err)
	}
	var l Lock
	if err := json.Unmarshal(raw, &l); err != nil {
		// Corrupt lock file: treat as absent and clear it.
		os.Remove(diskPath)
		return Lock{}, false, nil
	}
	if m.isStale(l) {
		os.Remove(diskPath)
		return Lock{}, false, nil
	}
	return l, true, nil
}

// listLockFiles returns the on-disk lock file paths under .agent_locks/.
func (m *Manager) listLockFiles() ([]string, error) {
	dir := m.store.Path(locksDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", swarmerr.ErrIO, dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lock" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// findConflict scans existing locks for one held by a different agent whose
// filepath conflicts with path in either glob direction, per spec §4.F.
func (m *Manager) findConflict(path, agentID string) (*Conflict, error) {
	files, err := m.listLockFiles()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		l, ok, err := m.readLock(f)
		if err != nil {
			return nil, err
		}
		if !ok || l.AgentID == agentID {
			continue
		}
		if globConflicts(l.FilePath, path) {
			return &Conflict{Holder: l.AgentID, FilePath: l.FilePath, Reason: l.Reason}, nil
		}
	}
	return nil, nil
}

// globConflicts reports whether existing and requested conflict: either
// matches the other as a shell-style glob pattern, or they're the same
// literal string.
func globConflicts(existing, requested string) bool {
	if existing == requested {
		return true
	}
	if ok, err := filepath.Match(existing, requested); err == nil && ok {
		return true
	}
	if ok, err := filepath.Match(requested, existing); err == nil && ok {
		return true
	}
	return false
}

// Acquire attempts to lock path for agentID. On success it returns
// (true, nil). On conflict with another agent's lock it returns
// (false, *Conflict). Re-acquiring one's own lock refreshes locked_at and
// reason in place, per spec §4.F.
func (m *Manager) Acquire(path, agentID, reason string) (bool, *Conflict, error) {
	if err := os.MkdirAll(m.store.Path(locksDir), store.DirMode); err != nil {
		return false, nil, fmt.Errorf("%w: creating %s: %v", swarmerr.ErrIO, locksDir, err)
	}

	conflict, err := m.findConflict(path, agentID)
	if err != nil {
		return false, nil, err
	}
	if conflict != nil {
		return false, conflict, nil
	}

	diskPath := m.lockPath(path)
	lock := Lock{AgentID: agentID, FilePath: path, LockedAt: m.now().Unix(), Reason: reason}
	data, err := json.Marshal(lock)
	if err != nil {
		return false, nil, err
	}

	f, err := os.OpenFile(diskPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, store.FileMode)
	if err != nil {
		if !os.IsExist(err) {
			return false, nil, fmt.Errorf("%w: creating %s: %v", swarmerr.ErrIO, diskPath, err)
		}
		// Lost an exclusive-create race, or re-acquiring our own lock:
		// re-read to find out who actually holds it.
		existing, ok, rerr := m.readLock(diskPath)
		if rerr != nil {
			return false, nil, rerr
		}
		if ok && existing.AgentID != agentID {
			return false, &Conflict{Holder: existing.AgentID, FilePath: existing.FilePath, Reason: existing.Reason}, nil
		}
		// Either stale (now cleared) or ours: refresh in place.
		if err := m.refresh(diskPath, data); err != nil {
			return false, nil, err
		}
		return true, nil, nil
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return false, nil, fmt.Errorf("%w: writing %s: %v", swarmerr.ErrIO, diskPath, err)
	}
	return true, nil, nil
}

// refresh atomically replaces an existing lock file's contents, used when
// the owner re-acquires its own lock.
func (m *Manager) refresh(diskPath string, data []byte) error {
	dir := filepath.Dir(diskPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(diskPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", swarmerr.ErrIO, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing temp file: %v", swarmerr.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: syncing temp file: %v", swarmerr.ErrIO, err)
	}
	tmp.Close()
	if err := os.Chmod(tmpPath, store.FileMode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: chmod temp file: %v", swarmerr.ErrIO, err)
	}
	if err := os.Rename(tmpPath, diskPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming into place: %v", swarmerr.ErrIO, err)
	}
	return nil
}

// Release deletes agentID's lock on path, if held. Releasing a lock that
// doesn't exist, or is held by a different agent, is a no-op reported as
// ok=false (except the file-not-found case, which spec §8's open questions
// treats as success).
func (m *Manager) Release(path, agentID string) (bool, error) {
	diskPath := m.lockPath(path)
	l, ok, err := m.readLock(diskPath)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	if l.AgentID != agentID {
		return false, nil
	}
	if err := os.Remove(diskPath); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("%w: removing %s: %v", swarmerr.ErrIO, diskPath, err)
	}
	return true, nil
}

// WhoHas returns the current lock on path, if any, transparently clearing
// it first if stale.
func (m *Manager) WhoHas(path string) (Lock, bool, error) {
	return m.readLock(m.lockPath(path))
}

// ListAll returns every currently held lock, optionally including stale
// ones (which are otherwise transparently cleared).
func (m *Manager) ListAll(includeStale bool) ([]Lock, error) {
	files, err := m.listLockFiles()
	if err != nil {
		return nil, err
	}
	var out []Lock
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var l Lock
		if err := json.Unmarshal(raw, &l); err != nil {
			os.Remove(f)
			continue
		}
		if m.isStale(l) {
			if includeStale {
				out = append(out, l)
			} else {
				os.Remove(f)
			}
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// CleanupStale removes every lock file older than staleTimeout (or the
// manager's configured default if zero), returning the count removed.
func (m *Manager) CleanupStale(staleTimeout time.Duration) (int, error) {
	if staleTimeout == 0 {
		staleTimeout = m.staleTimeout
	}
	files, err := m.listLockFiles()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var l Lock
		if err := json.Unmarshal(raw, &l); err != nil {
			os.Remove(f)
			removed++
			continue
		}
		if m.now().Sub(time.Unix(l.LockedAt, 0)) > staleTimeout {
			os.Remove(f)
			removed++
		}
	}
	return removed, nil
}

// CleanupAgent removes every lock file held by agentID, returning the
// count removed.
func (m *Manager) CleanupAgent(agentID string) (int, error) {
	files, err := m.listLockFiles()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var l Lock
		if err := json.Unmarshal(raw, &l); err != nil {
			continue
		}
		if l.AgentID == agentID {
			os.Remove(f)
			removed++
		}
	}
	return removed, nil
}
