// Package hitl implements the human-in-the-loop interrupt manager (§4.L):
// a tool calls CreateInterrupt to park a decision in a shared key/value
// store and blocks on WaitForResponse until a client submits an answer (or
// the timeout elapses and the tool falls back to its declared default
// action).
package hitl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind is the interrupt's presentation type (§4.L).
type Kind string

const (
	KindApproval Kind = "approval"
	KindDecision Kind = "decision"
	KindInput    Kind = "input"
)

// DefaultAction returns the fallback action a tool should take when an
// interrupt of this kind times out without a response.
func (k Kind) DefaultAction() string {
	switch k {
	case KindApproval:
		return "deny"
	case KindDecision:
		return "skip"
	case KindInput:
		return "skip"
	default:
		return "skip"
	}
}

// Option is one choice in a DECISION interrupt.
type Option struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Interrupt is the payload stored under hitl:interrupt:<thread_id>:<id>.
type Interrupt struct {
	ThreadID      string          `json:"thread_id"`
	InterruptID   string          `json:"interrupt_id"`
	Kind          Kind            `json:"kind"`
	Title         string          `json:"title"`
	Message       string          `json:"message"`
	Options       []Option        `json:"options,omitempty"`
	ToolInfo      json.RawMessage `json:"tool_info,omitempty"`
	DefaultAction string          `json:"default_action"`
	TimeoutSec    int             `json:"timeout_seconds"`
	CreatedAt     int64           `json:"created_at"`
}

// Response is the payload published to hitl:response:<thread_id>:<id>.
type Response struct {
	Action      string `json:"action"`
	Value       string `json:"value"`
	InterruptID string `json:"interrupt_id"`
}

// ErrTimeout is returned by WaitForResponse when no response arrives
// before timeout elapses; the caller translates it into the interrupt's
// DefaultAction.
var ErrTimeout = errors.New("hitl: interrupt timed out")

// DefaultTimeout is the §5 default HITL interrupt timeout.
const DefaultTimeout = 120 * time.Second

// timeoutTTLBuffer is added to an interrupt's declared timeout to get the
// key's TTL, giving a late-arriving response a grace window before the
// key expires out from under it (§4.L).
const timeoutTTLBuffer = 30 * time.Second

func interruptKey(threadID, interruptID string) string {
	return fmt.Sprintf("hitl:interrupt:%s:%s", threadID, interruptID)
}

func responseChannel(threadID, interruptID string) string {
	return fmt.Sprintf("hitl:response:%s:%s", threadID, interruptID)
}

// EventEmitter is the minimal surface the manager needs to emit the single
// `interrupt` SSE event a created interrupt requires (§4.L). *events.Bus
// has no EmitInterrupt method; the daemon wraps its bus in a small adapter,
// so this package does not import the bus type.
type EventEmitter interface {
	EmitInterrupt(i Interrupt)
}

// Manager implements create_interrupt / wait_for_response / submit_response
// over a Redis client used both as the key/value store and the pub/sub
// transport (§4.L, §6).
type Manager struct {
	rdb      *redis.Client
	emitter  EventEmitter
}

// NewManager builds a Manager. emitter may be nil if the caller doesn't
// need the interrupt SSE event emitted (e.g. in tests).
func NewManager(rdb *redis.Client, emitter EventEmitter) *Manager {
	return &Manager{rdb: rdb, emitter: emitter}
}

type contextKey int

const managerContextKey contextKey = iota

// boundManager pairs a Manager with the thread its interrupts belong to,
// carried through a run's context so a tool handler several layers below
// the supervisor can reach back to create_interrupt/wait_for_response
// without the tool catalog itself depending on *Run.
type boundManager struct {
	manager  *Manager
	threadID string
}

// WithManager returns a context a tool handler can recover manager and
// threadID from via FromContext.
func WithManager(ctx context.Context, manager *Manager, threadID string) context.Context {
	return context.WithValue(ctx, managerContextKey, boundManager{manager: manager, threadID: threadID})
}

// FromContext recovers the Manager and thread id bound by WithManager.
func FromContext(ctx context.Context) (*Manager, string, bool) {
	bound, ok := ctx.Value(managerContextKey).(boundManager)
	if !ok {
		return nil, "", false
	}
	return bound.manager, bound.threadID, true
}

// CreateInterrupt writes the interrupt payload with a TTL of
// timeout+30s and emits the `interrupt` event.
func (m *Manager) CreateInterrupt(ctx context.Context, threadID, interruptID string, i Interrupt) error {
	if i.TimeoutSec <= 0 {
		i.TimeoutSec = int(DefaultTimeout.Seconds())
	}
	if i.DefaultAction == "" {
		i.DefaultAction = i.Kind.DefaultAction()
	}
	i.ThreadID = threadID
	i.InterruptID = interruptID
	i.CreatedAt = time.Now().Unix()

	payload, err := json.Marshal(i)
	if err != nil {
		return fmt.Errorf("hitl: encoding interrupt: %w", err)
	}

	ttl := time.Duration(i.TimeoutSec)*time.Second + timeoutTTLBuffer
	if err := m.rdb.Set(ctx, interruptKey(threadID, interruptID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("hitl: storing interrupt: %w", err)
	}

	if m.emitter != nil {
		m.emitter.EmitInterrupt(i)
	}
	return nil
}

// WaitForResponse subscribes to the interrupt's response channel and
// blocks until a response arrives or timeoutSeconds elapses. On timeout it
// returns ErrTimeout; the caller is expected to fall back to the
// interrupt's DefaultAction.
func (m *Manager) WaitForResponse(ctx context.Context, threadID, interruptID string, timeoutSeconds int) (*Response, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = int(DefaultTimeout.Seconds())
	}

	sub := m.rdb.Subscribe(ctx, responseChannel(threadID, interruptID))
	defer sub.Close()

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	ch := sub.Channel()
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("hitl: response subscription closed")
		}
		var resp Response
		if err := json.Unmarshal([]byte(msg.Payload), &resp); err != nil {
			return nil, fmt.Errorf("hitl: decoding response: %w", err)
		}
		return &resp, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	}
}

// SubmitResponse publishes the response and deletes the stored interrupt
// key (§4.L: "deletes the stored key").
func (m *Manager) SubmitResponse(ctx context.Context, threadID string, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("hitl: encoding response: %w", err)
	}
	if err := m.rdb.Publish(ctx, responseChannel(threadID, resp.InterruptID), payload).Err(); err != nil {
		return fmt.Errorf("hitl: publishing response: %w", err)
	}
	if err := m.rdb.Del(ctx, interruptKey(threadID, resp.InterruptID)).Err(); err != nil {
		return fmt.Errorf("hitl: deleting interrupt key: %w", err)
	}
	return nil
}
