package streaming

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentgraph/orchestrator/pkg/events"
	"github.com/redis/go-redis/v9"
)

// eventsChannel, statusChannel, and completeChannel are the research
// worker-bridge pub/sub channels (§4.K/§6).
func eventsChannel(taskID string) string    { return fmt.Sprintf("research:events:%s", taskID) }
func statusChannel(taskID string) string    { return fmt.Sprintf("research:status:%s", taskID) }
func completeChannel(taskID string) string  { return fmt.Sprintf("research:complete:%s", taskID) }

// WorkerBridge subscribes an SSE handler to the research background
// worker's Redis channels and forwards published event envelopes to the
// client in publication order, sharing one long-lived Redis connection
// across every task it serves (§4.K).
type WorkerBridge struct {
	rdb *redis.Client

	mu     sync.Mutex
	closed bool
}

// NewWorkerBridge wraps rdb, which the caller owns and is responsible for
// closing on shutdown (§4.K: "lazily opened, closed on shutdown" refers to
// this shared connection's lifecycle at the process level, not per-task).
func NewWorkerBridge(rdb *redis.Client) *WorkerBridge {
	return &WorkerBridge{rdb: rdb}
}

// Publish is called by the background worker to fan an event out to every
// SSE handler subscribed to taskID.
func (b *WorkerBridge) Publish(ctx context.Context, taskID string, e events.Event) error {
	payload, err := events.ToSSE(e)
	if err != nil {
		return fmt.Errorf("streaming: encoding event for publish: %w", err)
	}

	channel := eventsChannel(taskID)
	switch e.Type {
	case events.TypeComplete:
		channel = completeChannel(taskID)
	case events.TypeStage:
		channel = statusChannel(taskID)
	}

	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("streaming: publishing to %s: %w", channel, err)
	}
	return nil
}

// Serve subscribes to taskID's three channels and forwards each message
// to w as an SSE line until ctx is cancelled or a complete event arrives.
func (b *WorkerBridge) Serve(ctx context.Context, taskID string, w Writer) error {
	sub := b.rdb.Subscribe(ctx, eventsChannel(taskID), statusChannel(taskID), completeChannel(taskID))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.WriteString("data: " + msg.Payload + "\n\n"); err != nil {
				return fmt.Errorf("streaming: writing to client: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("streaming: flushing to client: %w", err)
			}
			if msg.Channel == completeChannel(taskID) {
				return nil
			}
		}
	}
}

// Close releases the shared Redis connection. Safe to call once.
func (b *WorkerBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.rdb.Close()
}
