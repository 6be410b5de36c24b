// Package store implements the concurrency-safe JSON state store described
// in spec §4.B: every collection file under the project root is read under
// a shared advisory lock and written atomically (temp file + fsync +
// rename) under an exclusive advisory lock, with an optional optimistic
// "version" field for read-modify-write safety across separate processes.
//
// Grounded on the teacher's internal/quota/state.go (flock + load/save) and
// internal/feed/curator.go (atomic temp-file write with fsync and a
// close-before-rename step for Windows).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude-swarm/swarm/internal/lock"
	"github.com/claude-swarm/swarm/internal/swarmerr"
)

// FileMode is the mode every state file and lock file is created with.
const FileMode = 0o600

// DirMode is the mode used for directories created under the project root.
const DirMode = 0o700

// MaxCASAttempts bounds the retry loop for optimistic-concurrency writes.
const MaxCASAttempts = 5

// Store roots every read/write at a single project directory.
type Store struct {
	Root string
}

// New returns a Store rooted at root. It does not create root; callers call
// EnsureDir or rely on a write call to create parent directories lazily.
func New(root string) *Store {
	return &Store{Root: root}
}

// Path joins elem onto the project root.
func (s *Store) Path(elem ...string) string {
	parts := append([]string{s.Root}, elem...)
	return filepath.Join(parts...)
}

// EnsureFile makes sure path exists (creating parent directories and an
// empty file if necessary) with FileMode, as required before any lock
// acquisition per spec §4.B.
func EnsureFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("%w: creating %s: %v", swarmerr.ErrIO, dir, err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, FileMode)
		if err != nil {
			return fmt.Errorf("%w: creating %s: %v", swarmerr.ErrIO, path, err)
		}
		f.Close()
	}
	return nil
}

// ReadLocked reads path under a shared advisory lock and returns its raw
// bytes. A missing file is treated as an empty byte slice (callers map that
// to an empty collection), per spec §7 "missing state files are treated as
// empty collections".
func ReadLocked(path string, timeout time.Duration) ([]byte, error) {
	if err := EnsureFile(path); err != nil {
		return nil, err
	}

	h, err := lock.AcquireShared(lockPath(path), timeout)
	if err != nil {
		return nil, mapLockErr(err)
	}
	defer h.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", swarmerr.ErrIO, path, err)
	}
	return data, nil
}

// WriteLocked atomically replaces path's contents under an exclusive
// advisory lock: write to a sibling temp file, fsync, close, then rename
// over the target. The temp file is removed on any error before rename.
func WriteLocked(path string, data []byte, timeout time.Duration) error {
	if err := EnsureFile(path); err != nil {
		return err
	}

	h, err := lock.AcquireExclusive(lockPath(path), timeout)
	if err != nil {
		return mapLockErr(err)
	}
	defer h.Release()

	return atomicWrite(path, data)
}

// atomicWrite performs the write-temp-then-rename sequence. Caller must
// already hold the exclusive lock for path.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
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
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file: %v", swarmerr.ErrIO, err)
	}
	if err := os.Chmod(tmpPath, FileMode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: chmod temp file: %v", swarmerr.ErrIO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming into place: %v", swarmerr.ErrIO, err)
	}
	return nil
}

// lockPath returns the sibling lock filename used to guard path. Using a
// sibling rather than locking `path` itself means the atomic rename of the
// data file never disturbs the open file descriptor the lock is held on.
func lockPath(path string) string {
	return path + ".lock"
}

func mapLockErr(err error) error {
	switch {
	case err == lock.ErrTimeout:
		return fmt.Errorf("%w: %v", swarmerr.ErrLockTimeout, err)
	case err == lock.ErrIntegrity:
		return fmt.Errorf("%w: %v", swarmerr.ErrLockIntegrity, err)
	default:
		return fmt.Errorf("%w: %v", swarmerr.ErrIO, err)
	}
}

// Versioned is the minimal shape every CAS-governed collection document
// embeds: an integer version bumped on every successful write. Per spec §6,
// only PENDING_ACKS.json uses this — the other collection files carry a
// constant string "version": "1.0" and rely on WithLock's single held lock
// instead of optimistic retry.
type Versioned struct {
	Version int `json:"version"`
}

// WithLock performs a read-modify-write of path under ONE held exclusive
// lock for the entire window, per spec §6's "{version: "1.0", updated_at,
// <collection>}" collection files (TASKS.json, AGENT_CARDS.json,
// DELEGATION_HISTORY.json, CONTEXTS.json, CONFLICT_LOG.json,
// LEARNING_DATA.json): these don't need optimistic-concurrency retry
// because nothing else can observe the file mid-mutation. mutate returns
// the updated document and a bool: false means "no change, don't write".
func WithLock[T any](path string, timeout time.Duration, newDoc func() T, mutate func(T) (T, bool, error)) (T, error) {
	var zero T
	if err := EnsureFile(path); err != nil {
		return zero, err
	}

	h, err := lock.AcquireExclusive(lockPath(path), timeout)
	if err != nil {
		return zero, mapLockErr(err)
	}
	defer h.Release()

	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return zero, fmt.Errorf("%w: reading %s: %v", swarmerr.ErrIO, path, err)
	}

	doc := newDoc()
	if len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr != nil {
			// Corrupt collection file: treated as empty per spec §7.
			doc = newDoc()
		}
	}

	updated, changed, err := mutate(doc)
	if err != nil {
		return zero, err
	}
	if !changed {
		return updated, nil
	}

	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return zero, fmt.Errorf("%w: marshaling %s: %v", swarmerr.ErrIO, path, err)
	}
	if err := atomicWrite(path, data); err != nil {
		return zero, err
	}
	return updated, nil
}

// WithCAS loads path, lets mutate inspect/modify the decoded document, and
// writes it back only if the on-disk version still matches what mutate saw
// — bounded retries absorb races with concurrent writers. doc must be a
// pointer to a struct embedding Versioned (or otherwise exposing a Version
// field through the get/set callbacks).
//
// mutate returns the updated document and a bool: false means "no change,
// don't write" (used by callers like receiveAck that may find nothing to
// do).
func WithCAS[T any](path string, timeout time.Duration, newDoc func() T, getVersion func(T) int, setVersion func(T, int) T, mutate func(T) (T, bool, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < MaxCASAttempts; attempt++ {
		raw, err := ReadLocked(path, timeout)
		if err != nil {
			return zero, err
		}

		doc := newDoc()
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &doc); err != nil {
				// Corrupt collection file: treated as empty per spec §7.
				doc = newDoc()
			}
		}
		expected := getVersion(doc)

		updated, changed, err := mutate(doc)
		if err != nil {
			return zero, err
		}
		if !changed {
			return updated, nil
		}
		updated = setVersion(updated, expected+1)

		ok, err := casWrite(path, timeout, expected, updated)
		if err != nil {
			return zero, err
		}
		if ok {
			return updated, nil
		}
		// Lost the race: another writer advanced the version. Retry.
	}
	return zero, fmt.Errorf("%w: exceeded %d CAS attempts on %s", swarmerr.ErrConflict, MaxCASAttempts, path)
}

// casWrite re-reads the current on-disk version under the exclusive lock
// and only commits if it still equals expected, closing the classic
// check-then-act race between the earlier ReadLocked and this write.
func casWrite[T any](path string, timeout time.Duration, expected int, updated T) (bool, error) {
	if err := EnsureFile(path); err != nil {
		return false, err
	}
	h, err := lock.AcquireExclusive(lockPath(path), timeout)
	if err != nil {
		return false, mapLockErr(err)
	}
	defer h.Release()

	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("%w: reading %s: %v", swarmerr.ErrIO, path, err)
	}
	current := 0
	if len(raw) > 0 {
		var v Versioned
		if err := json.Unmarshal(raw, &v); err == nil {
			current = v.Version
		}
	}
	if current != expected {
		return false, nil
	}

	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return false, fmt.Errorf("%w: marshaling %s: %v", swarmerr.ErrIO, path, err)
	}
	if err := atomicWrite(path, data); err != nil {
		return false, err
	}
	return true, nil
}
