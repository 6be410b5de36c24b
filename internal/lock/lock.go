// Package lock provides the cross-process advisory locking primitive used
// by every state file the core owns. It wraps github.com/gofrs/flock with
// timeout-bounded acquisition and a post-acquire identity check so a caller
// can detect that the file it locked was replaced or deleted mid-acquire.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// DefaultTimeout is used when callers don't provide one, matching the
// store's default lock-acquisition budget.
const DefaultTimeout = 5 * time.Second

// pollInterval is how often we retry TryLock/TryRLock while waiting.
const pollInterval = 10 * time.Millisecond

// ErrTimeout is returned when a lock could not be acquired before the
// caller-provided deadline elapsed.
var ErrTimeout = fmt.Errorf("lock: timed out acquiring lock")

// ErrIntegrity is returned when the locked file's identity changed between
// acquisition and the identity check, meaning another process replaced or
// deleted it during our acquire window.
var ErrIntegrity = fmt.Errorf("lock: file identity changed during acquisition")

// ErrReentrant is returned when the current process already holds a lock
// on the same path. Nesting is rejected rather than silently granted,
// since the OS advisory lock itself is per-process and would happily
// "succeed" a second time, masking a bug in the caller.
var ErrReentrant = fmt.Errorf("lock: reentrant acquisition of an already-held lock")

// held tracks paths currently locked by this process, rejecting nested
// acquisition attempts. A lock never released before process exit is
// leaked deliberately: the OS releases advisory locks on fd close.
var (
	heldMu sync.Mutex
	held   = map[string]bool{}
)

// Handle represents a held lock. Release must be called exactly once.
type Handle struct {
	fl  *flock.Flock
	key string
}

// Release releases the lock. Safe to call on a nil Handle (no-op), which
// simplifies defer chains in callers that bail out before acquiring.
func (h *Handle) Release() {
	if h == nil || h.fl == nil {
		return
	}
	_ = h.fl.Unlock()
	heldMu.Lock()
	delete(held, h.key)
	heldMu.Unlock()
}

// AcquireExclusive takes an exclusive advisory lock on path within timeout.
// The target file is created if it does not exist. After acquiring, the
// file's identity (device+inode, or platform equivalent) is verified against
// a fresh stat to detect replacement races; a mismatch returns ErrIntegrity
// with the lock already released.
func AcquireExclusive(path string, timeout time.Duration) (*Handle, error) {
	return acquire(path, timeout, true)
}

// AcquireShared takes a shared (read) advisory lock on path within timeout.
func AcquireShared(path string, timeout time.Duration) (*Handle, error) {
	return acquire(path, timeout, false)
}

func acquire(path string, timeout time.Duration, exclusive bool) (*Handle, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}

	heldMu.Lock()
	if held[key] {
		heldMu.Unlock()
		return nil, ErrReentrant
	}
	held[key] = true
	heldMu.Unlock()

	release := func() {
		heldMu.Lock()
		delete(held, key)
		heldMu.Unlock()
	}

	preStat, preErr := os.Stat(path)

	fl := flock.New(path)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var ok bool
	var err error
	if exclusive {
		ok, err = fl.TryLockContext(ctx, pollInterval)
	} else {
		ok, err = fl.TryRLockContext(ctx, pollInterval)
	}
	if err != nil {
		release()
		return nil, fmt.Errorf("acquiring lock on %s: %w", path, err)
	}
	if !ok {
		release()
		return nil, ErrTimeout
	}

	postStat, postErr := os.Stat(path)
	if preErr == nil && postErr == nil && !os.SameFile(preStat, postStat) {
		_ = fl.Unlock()
		release()
		return nil, ErrIntegrity
	}

	return &Handle{fl: fl, key: key}, nil
}
