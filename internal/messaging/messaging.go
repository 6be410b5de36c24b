// Package messaging implements the messaging core of spec §4.G: formatting,
// rate-limiting, and delivering addressed or broadcast messages through the
// terminal backend, persisting an append-only delivery log.
//
// Grounded on the teacher's internal/nudge/queue.go append/drain idioms
// (FIFO JSON-line records, TTL/rotation housekeeping) for the log-rotation
// behavior, and internal/discovery for resolving a recipient agent ID to a
// backend identifier.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude-swarm/swarm/internal/backend"
	"github.com/claude-swarm/swarm/internal/discovery"
	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/swarmerr"
	"github.com/claude-swarm/swarm/internal/validate"
)

// Message types, per spec §3.
const (
	TypeQuestion      = "QUESTION"
	TypeReviewRequest = "REVIEW-REQUEST"
	TypeBlocked       = "BLOCKED"
	TypeCompleted     = "COMPLETED"
	TypeChallenge     = "CHALLENGE"
	TypeInfo          = "INFO"
	TypeAck           = "ACK"
)

// LogRotateBytes is the threshold at which agent_messages.log rotates to
// .log.old, per spec §6.
const LogRotateBytes = 10 * 1024 * 1024

// Message is one addressed or broadcast message, per spec §3.
type Message struct {
	MsgID      string    `json:"msg_id"`
	Sender     string    `json:"sender"`
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	Recipients []string  `json:"recipients"`
	Signature  string    `json:"signature,omitempty"`
}

// logRecord is one line of agent_messages.log, per spec §6.
type logRecord struct {
	Timestamp      time.Time       `json:"timestamp"`
	MsgID          string          `json:"msg_id"`
	Sender         string          `json:"sender"`
	Recipients     []string        `json:"recipients"`
	Type           string          `json:"type"`
	Content        string          `json:"content"`
	DeliveryStatus map[string]bool `json:"delivery_status"`
	SuccessCount   int             `json:"success_count"`
	FailureCount   int             `json:"failure_count"`
}

// RateLimit bounds per-sender sends within a sliding window, per spec §5
// ("enforced within one process only; the limiter is in-memory").
type RateLimit struct {
	MaxMessages int
	Window      time.Duration
}

// DefaultRateLimit matches spec §5's default (10 messages / 60 s).
var DefaultRateLimit = RateLimit{MaxMessages: 10, Window: 60 * time.Second}

// Core sends/broadcasts messages per spec §4.G.
type Core struct {
	store     *store.Store
	registry  *discovery.Registry
	backend   backend.Backend
	rateLimit RateLimit

	mu        sync.Mutex
	sendTimes map[string][]time.Time

	secret string
	now    func() time.Time
}

// New creates a messaging Core.
func New(s *store.Store, registry *discovery.Registry, b backend.Backend, rateLimit RateLimit) *Core {
	if rateLimit.MaxMessages == 0 {
		rateLimit = DefaultRateLimit
	}
	return &Core{
		store:     s,
		registry:  registry,
		backend:   b,
		rateLimit: rateLimit,
		sendTimes: map[string][]time.Time{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *Core) logPath() string {
	return c.store.Path("agent_messages.log")
}

// FormatLine renders the displayed message wire form of spec §6:
// "[<sender>][YYYY-MM-DD HH:MM:SS][<TYPE>]: <content>".
func FormatLine(sender string, at time.Time, msgType, content string) string {
	return fmt.Sprintf("[%s][%s][%s]: %s", sender, at.Format("2006-01-02 15:04:05"), msgType, content)
}

// allowed reports whether sender may send now without exceeding the rate
// limit, and if so, records the send. Per spec §4.G step 2: the number of
// timestamps within the trailing window must be strictly less than
// max_messages.
func (c *Core) allowed(sender string, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := at.Add(-c.rateLimit.Window)
	times := c.sendTimes[sender]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= c.rateLimit.MaxMessages {
		c.sendTimes[sender] = kept
		return false
	}
	kept = append(kept, at)
	c.sendTimes[sender] = kept
	return true
}

// Send delivers content from sender to recipients, per spec §4.G's
// pipeline: validate, rate-limit, resolve via discovery, format, push via
// backend, log. A rate-limited send returns (nil, ErrRateLimited) without
// touching the log. recipients with no active registry entry fail delivery
// for that recipient but do not abort the whole send.
func (c *Core) Send(ctx context.Context, sender string, recipients []string, msgType, content string) (*Message, map[string]bool, error) {
	if err := validate.AgentID(sender); err != nil {
		return nil, nil, err
	}
	if err := validate.RecipientList(recipients); err != nil {
		return nil, nil, err
	}
	sanitized := validate.SanitizeMessageContent(content)
	if err := validate.MessageContent(sanitized); err != nil {
		return nil, nil, err
	}
	if !isKnownType(msgType) {
		return nil, nil, &swarmerr.ValidationError{Field: "type", Reason: "unknown message type"}
	}

	now := c.now()
	if !c.allowed(sender, now) {
		return nil, nil, fmt.Errorf("%w: sender %s exceeded %d messages per %s", swarmerr.ErrRateLimited, sender, c.rateLimit.MaxMessages, c.rateLimit.Window)
	}

	msg := &Message{
		MsgID:      uuid.NewString(),
		Sender:     sender,
		Timestamp:  now,
		Type:       msgType,
		Content:    sanitized,
		Recipients: recipients,
	}
	msg.Signature = c.sign(msg.MsgID, msg.Sender, msg.Content)

	line := FormatLine(sender, now, msgType, sanitized)
	status := make(map[string]bool, len(recipients))
	anySuccess := false

	for _, recipient := range recipients {
		agent, ok, err := c.registry.Lookup(recipient)
		if err != nil || !ok || agent.Status != discovery.StatusActive {
			status[recipient] = false
			continue
		}
		if _, err := c.backend.Push(ctx, agent.Identifier, line); err != nil {
			status[recipient] = false
			continue
		}
		status[recipient] = true
		anySuccess = true
	}

	if anySuccess {
		if err := c.appendLog(logRecord{
			Timestamp:      now,
			MsgID:          msg.MsgID,
			Sender:         sender,
			Recipients:     recipients,
			Type:           msgType,
			Content:        sanitized,
			DeliveryStatus: status,
			SuccessCount:   countTrue(status),
			FailureCount:   len(status) - countTrue(status),
		}); err != nil {
			return msg, status, err
		}
	}

	return msg, status, nil
}

// Broadcast sends content to every active registry agent (optionally
// excluding sender), consuming the rate limit once for the whole fan-out,
// per spec §4.G.
func (c *Core) Broadcast(ctx context.Context, sender, msgType, content string, excludeSelf bool) (map[string]bool, error) {
	agents, err := c.registry.Active()
	if err != nil {
		return nil, err
	}
	var recipients []string
	for _, a := range agents {
		if excludeSelf && a.ID == sender {
			continue
		}
		recipients = append(recipients, a.ID)
	}
	if len(recipients) == 0 {
		return map[string]bool{}, nil
	}
	sort.Strings(recipients)

	_, status, err := c.Send(ctx, sender, recipients, msgType, content)
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Core) appendLog(rec logRecord) error {
	if err := c.rotateIfNeeded(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(c.logPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, store.FileMode)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", swarmerr.ErrIO, c.logPath(), err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: appending to %s: %v", swarmerr.ErrIO, c.logPath(), err)
	}
	return nil
}

// rotateIfNeeded renames agent_messages.log to .log.old when it exceeds
// LogRotateBytes, per spec §4.G/§6.
func (c *Core) rotateIfNeeded() error {
	info, err := os.Stat(c.logPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: stating %s: %v", swarmerr.ErrIO, c.logPath(), err)
	}
	if info.Size() < LogRotateBytes {
		return nil
	}
	oldPath := c.logPath() + ".old"
	if err := os.Rename(c.logPath(), oldPath); err != nil {
		return fmt.Errorf("%w: rotating %s: %v", swarmerr.ErrIO, c.logPath(), err)
	}
	return nil
}

func isKnownType(t string) bool {
	switch t {
	case TypeQuestion, TypeReviewRequest, TypeBlocked, TypeCompleted, TypeChallenge, TypeInfo, TypeAck:
		return true
	}
	return false
}

func countTrue(m map[string]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
