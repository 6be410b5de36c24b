// Package ack implements the acknowledgment and retry engine of spec §4.H:
// messages that require acknowledgment are tracked in PENDING_ACKS.json
// under optimistic concurrency, retried on an exponential backoff schedule,
// and escalated to a broadcast after exhausting their retries.
//
// Grounded on the teacher's internal/mail/delivery.go phase-1/phase-2
// pending→acked labeling for the row lifecycle, generalized from
// delivery-label sequencing to a CAS-governed pending-row collection.
package ack

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/claude-swarm/swarm/internal/messaging"
	"github.com/claude-swarm/swarm/internal/store"
)

// retryMarkerPattern matches a leading "[REQUIRES-ACK] " or "[RETRY-k] "
// marker so repeated retries don't accumulate prefixes.
var retryMarkerPattern = regexp.MustCompile(`^\[(?:REQUIRES-ACK|RETRY-\d+)\] `)

// MaxRetries bounds retry_count, per spec §3/§4.H.
const MaxRetries = 3

// BackoffSeconds is the exponential backoff table indexed by the new
// retry_count after a resend, per spec §4.H.
var BackoffSeconds = []int{30, 60, 120}

// PendingAck is one element of PENDING_ACKS.json, per spec §3.
type PendingAck struct {
	MsgID       string    `json:"msg_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
	RetryCount  int       `json:"retry_count"`
	NextRetryAt time.Time `json:"next_retry_at"`
}

type pendingFile struct {
	store.Versioned
	PendingAcks []PendingAck `json:"pending_acks"`
}

func newPendingFile() pendingFile {
	return pendingFile{}
}

// Engine tracks and retries requires-ack messages.
type Engine struct {
	msg         *messaging.Core
	store       *store.Store
	lockTimeout time.Duration
	now         func() time.Time
}

// New creates an ack Engine.
func New(msg *messaging.Core, s *store.Store, lockTimeout time.Duration) *Engine {
	if lockTimeout == 0 {
		lockTimeout = 5 * time.Second
	}
	return &Engine{msg: msg, store: s, lockTimeout: lockTimeout, now: func() time.Time { return time.Now().UTC() }}
}

func (e *Engine) path() string {
	return e.store.Path("PENDING_ACKS.json")
}

func (e *Engine) mutate(fn func(pendingFile) (pendingFile, bool, error)) (pendingFile, error) {
	getVersion := func(f pendingFile) int { return f.Version }
	setVersion := func(f pendingFile, v int) pendingFile { f.Version = v; return f }
	return store.WithCAS(e.path(), e.lockTimeout, newPendingFile, getVersion, setVersion, fn)
}

// SendWithAck sends content to recipient prefixed with "[REQUIRES-ACK]",
// writes a pending row under a temporary msg_id, attempts the send, then
// patches the row to the real msg_id and persisted message — or removes it
// if the send failed — per spec §4.H.
func (e *Engine) SendWithAck(ctx context.Context, sender, recipient, msgType, content string, firstRetryAfter time.Duration) (string, error) {
	tempID := uuid.NewString()
	now := e.now()
	prefixed := "[REQUIRES-ACK] " + content

	if _, err := e.mutate(func(f pendingFile) (pendingFile, bool, error) {
		f.PendingAcks = append(f.PendingAcks, PendingAck{
			MsgID:       tempID,
			SenderID:    sender,
			RecipientID: recipient,
			Message:     prefixed,
			SentAt:      now,
			RetryCount:  0,
			NextRetryAt: now.Add(firstRetryAfter),
		})
		return f, true, nil
	}); err != nil {
		return "", err
	}

	msg, _, sendErr := e.msg.Send(ctx, sender, []string{recipient}, msgType, prefixed)
	if sendErr != nil {
		e.mutate(func(f pendingFile) (pendingFile, bool, error) {
			return removeRow(f, tempID), true, nil
		})
		return "", sendErr
	}

	if _, err := e.mutate(func(f pendingFile) (pendingFile, bool, error) {
		for i, row := range f.PendingAcks {
			if row.MsgID == tempID {
				f.PendingAcks[i].MsgID = msg.MsgID
				f.PendingAcks[i].Message = msg.Content
				return f, true, nil
			}
		}
		return f, false, nil
	}); err != nil {
		return "", err
	}

	return msg.MsgID, nil
}

// ReceiveAck finds the pending row by msgID and removes it. If agentID
// differs from the row's recipient, the ack is still accepted (the caller
// is expected to log the mismatch), per spec §4.H.
func (e *Engine) ReceiveAck(msgID, agentID string) (bool, error) {
	found := false
	_, err := e.mutate(func(f pendingFile) (pendingFile, bool, error) {
		for _, row := range f.PendingAcks {
			if row.MsgID == msgID {
				found = true
				break
			}
		}
		if !found {
			return f, false, nil
		}
		return removeRow(f, msgID), true, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// CheckPending returns pending rows, optionally filtered to one agent's
// outbound rows, sorted by sent_at for deterministic display.
func (e *Engine) CheckPending(agentID string) ([]PendingAck, error) {
	raw, err := store.ReadLocked(e.path(), e.lockTimeout)
	if err != nil {
		return nil, err
	}
	f := newPendingFile()
	if len(raw) > 0 {
		if jsonErr := decode(raw, &f); jsonErr != nil {
			return nil, nil
		}
	}
	var out []PendingAck
	for _, row := range f.PendingAcks {
		if agentID != "" && row.SenderID != agentID {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// ProcessRetries resends every row whose next_retry_at has elapsed,
// advancing retry_count and next_retry_at on resend, or escalating and
// dropping the row once MaxRetries is reached, per spec §4.H. Due rows are
// dispatched concurrently, one goroutine per row, since each row's resend
// and CAS-governed update is independent of the others; a failure in one
// row's dispatch does not block the rest. Returns the number of rows
// processed (resent or escalated).
//
// Uses the same errgroup fan-out (a pack-sourced dependency, not the
// teacher's) as internal/delegate's concurrent candidate scoring.
func (e *Engine) ProcessRetries(ctx context.Context) (int, error) {
	due, err := e.dueRows()
	if err != nil {
		return 0, err
	}

	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, row := range due {
		row := row
		g.Go(func() error {
			if err := e.processOne(gctx, row); err != nil {
				return err
			}
			processed.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(processed.Load()), err
}

func (e *Engine) dueRows() ([]PendingAck, error) {
	now := e.now()
	raw, err := store.ReadLocked(e.path(), e.lockTimeout)
	if err != nil {
		return nil, err
	}
	f := newPendingFile()
	if len(raw) > 0 {
		if jsonErr := decode(raw, &f); jsonErr != nil {
			return nil, nil
		}
	}
	var due []PendingAck
	for _, row := range f.PendingAcks {
		if !row.NextRetryAt.After(now) {
			due = append(due, row)
		}
	}
	return due, nil
}

func (e *Engine) processOne(ctx context.Context, row PendingAck) error {
	if row.RetryCount >= MaxRetries {
		return e.escalate(ctx, row)
	}

	nextCount := row.RetryCount + 1
	retryContent := fmt.Sprintf("[RETRY-%d] %s", nextCount, trimRetryPrefix(row.Message))

	if _, _, err := e.msg.Send(ctx, row.SenderID, []string{row.RecipientID}, messaging.TypeQuestion, retryContent); err != nil {
		return err
	}

	if nextCount >= MaxRetries {
		return e.escalate(ctx, row)
	}

	backoff := time.Duration(BackoffSeconds[nextCount]) * time.Second
	_, err := e.mutate(func(f pendingFile) (pendingFile, bool, error) {
		for i, r := range f.PendingAcks {
			if r.MsgID == row.MsgID {
				f.PendingAcks[i].RetryCount = nextCount
				f.PendingAcks[i].Message = retryContent
				f.PendingAcks[i].NextRetryAt = e.now().Add(backoff)
				return f, true, nil
			}
		}
		return f, false, nil
	})
	return err
}

// escalate broadcasts an [UNACKNOWLEDGED] message (including the sender)
// and drops the row, per spec §4.H.
func (e *Engine) escalate(ctx context.Context, row PendingAck) error {
	content := fmt.Sprintf("[UNACKNOWLEDGED] Message to %s unacknowledged after %d attempts. Original: %s",
		row.RecipientID, MaxRetries, trimRetryPrefix(row.Message))

	if _, err := e.msg.Broadcast(ctx, row.SenderID, messaging.TypeInfo, content, false); err != nil {
		return err
	}

	_, err := e.mutate(func(f pendingFile) (pendingFile, bool, error) {
		return removeRow(f, row.MsgID), true, nil
	})
	return err
}

// ClearPending removes all pending rows, optionally filtered to one
// agent's outbound rows, returning the count removed.
func (e *Engine) ClearPending(agentID string) (int, error) {
	removed := 0
	_, err := e.mutate(func(f pendingFile) (pendingFile, bool, error) {
		kept := f.PendingAcks[:0]
		for _, row := range f.PendingAcks {
			if agentID != "" && row.SenderID != agentID {
				kept = append(kept, row)
				continue
			}
			removed++
		}
		f.PendingAcks = kept
		return f, removed > 0, nil
	})
	return removed, err
}

func removeRow(f pendingFile, msgID string) pendingFile {
	kept := f.PendingAcks[:0]
	for _, row := range f.PendingAcks {
		if row.MsgID != msgID {
			kept = append(kept, row)
		}
	}
	f.PendingAcks = kept
	return f
}

// trimRetryPrefix strips a leading "[REQUIRES-ACK] " or "[RETRY-k] " marker
// so repeated retries don't accumulate prefixes.
func trimRetryPrefix(content string) string {
	return retryMarkerPattern.ReplaceAllString(content, "")
}

func decode(raw []byte, f *pendingFile) error {
	return json.Unmarshal(raw, f)
}
