// Package swarmerr defines the small set of error kinds surfaced across the
// core: validation, locking, conflicts, missing state, and backend/io
// failures. Callers use errors.Is against the sentinels below, and errors.As
// against *ConflictError / *ValidationError when they need the attached
// context (holder, current version, current status, ...).
package swarmerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Err...) for context.
var (
	ErrValidation         = errors.New("validation")
	ErrLockTimeout        = errors.New("lock-timeout")
	ErrLockIntegrity      = errors.New("lock-integrity")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not-found")
	ErrBackendUnavailable = errors.New("backend-unavailable")
	ErrIO                 = errors.New("io")
	ErrInvalidTransition  = errors.New("invalid-transition")
	ErrRateLimited        = errors.New("rate-limited")
)

// ConflictError carries context about a denied action: who holds the
// resource, how old the hold is, and why. Used by the file-lock manager and
// the task state machine alike.
type ConflictError struct {
	Resource string
	Holder   string
	Reason   string
	Age      string
}

func (e *ConflictError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("conflict: %s held by %s (%s)", e.Resource, e.Holder, e.Reason)
	}
	return fmt.Sprintf("conflict: %s", e.Resource)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ValidationError names the rejected field and the reason it was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
