// Package streaming implements the SSE bridge (§4.K): it drains a run's
// event channel (in-process path) or a set of Redis pub/sub channels
// (worker-bridge path, used by the research background worker) and writes
// each event as one `data: <json>\n\n` line to a client writer.
package streaming

import (
	"bufio"
	"context"
	"fmt"

	"github.com/agentgraph/orchestrator/internal/sandbox"
	"github.com/agentgraph/orchestrator/pkg/events"
)

// Writer is the minimal surface the bridge needs from the client
// connection; *bufio.Writer and http.ResponseWriter (wrapped) both
// satisfy it once flushed appropriately by the caller.
type Writer interface {
	WriteString(s string) (int, error)
	Flush() error
}

// bufWriter adapts a bufio.Writer to Writer.
type bufWriter struct{ *bufio.Writer }

func (w bufWriter) Flush() error { return w.Writer.Flush() }

// NewBufWriter wraps a bufio.Writer as a streaming.Writer.
func NewBufWriter(w *bufio.Writer) Writer { return bufWriter{w} }

// Bridge drains an in-process event bus to an SSE client, invoking
// sandbox cleanup for the run when the client disconnects (§4.K, §5
// Cancellation).
type Bridge struct {
	Sandboxes *sandbox.Manager
}

// NewBridge builds a bridge bound to a sandbox manager used for
// disconnect cleanup.
func NewBridge(sandboxes *sandbox.Manager) *Bridge {
	return &Bridge{Sandboxes: sandboxes}
}

// Serve drains bus.Chan() onto w until ctx is cancelled or the bus closes,
// translating each event via events.Line. On cancellation it runs sandbox
// cleanup for (userID, taskID) in a deferred path before propagating the
// cancellation upward, per §4.K.
func (b *Bridge) Serve(ctx context.Context, bus *events.Bus, w Writer, userID, taskID string) error {
	defer func() {
		if b.Sandboxes != nil {
			// Cleanup uses a fresh background context: ctx is already
			// cancelled by the time this deferred path runs.
			b.Sandboxes.CleanupSandboxesForTask(context.Background(), userID, taskID)
		}
	}()

	ch := bus.Chan()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			line, err := events.Line(e)
			if err != nil {
				return fmt.Errorf("streaming: encoding event: %w", err)
			}
			if _, err := w.WriteString(line); err != nil {
				return fmt.Errorf("streaming: writing to client: %w", err)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("streaming: flushing to client: %w", err)
			}
			if e.Type == events.TypeComplete {
				return nil
			}
		}
	}
}
