package streaming

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/agentgraph/orchestrator/internal/circuitbreaker"
	"github.com/agentgraph/orchestrator/internal/sandbox"
	"github.com/agentgraph/orchestrator/pkg/events"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr
}

func newRedisClient(t *testing.T, addr string) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// stringWriter is a trivial in-memory Writer for tests.
type stringWriter struct {
	buf bytes.Buffer
}

func (w *stringWriter) WriteString(s string) (int, error) { return w.buf.WriteString(s) }
func (w *stringWriter) Flush() error                       { return nil }

func TestBridgeServeForwardsEventsUntilComplete(t *testing.T) {
	bus := events.NewBus(8)
	bridge := NewBridge(nil)
	w := &stringWriter{}

	go func() {
		bus.Emit(events.Token("hello"))
		bus.Emit(events.Complete())
	}()

	err := bridge.Serve(context.Background(), bus, w, "user-1", "task-1")
	require.NoError(t, err)
	assert.Contains(t, w.buf.String(), `"type":"token"`)
	assert.Contains(t, w.buf.String(), `"type":"complete"`)
}

func TestBridgeServeRunsSandboxCleanupOnCancellation(t *testing.T) {
	mgr := sandbox.NewManager(map[sandbox.Kind]sandbox.Factory{
		sandbox.KindExecution: sandbox.NewMockFactory(sandbox.KindExecution),
	}, circuitbreaker.NewRegistry(circuitbreaker.Config{}))
	bridge := NewBridge(mgr)
	bus := events.NewBus(8)
	w := &stringWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	_, err := mgr.GetOrCreate(ctx, sandbox.KindExecution, "user-1", "task-1", sandbox.Options{})
	require.NoError(t, err)
	cancel()

	err = bridge.Serve(ctx, bus, w, "user-1", "task-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, mgr.Get(sandbox.KindExecution, "user-1", "task-1"))
}

func TestWorkerBridgeChannelNaming(t *testing.T) {
	assert.Equal(t, "research:events:abc", eventsChannel("abc"))
	assert.Equal(t, "research:status:abc", statusChannel("abc"))
	assert.Equal(t, "research:complete:abc", completeChannel("abc"))
}

func TestWorkerBridgePublishAndServeForwardsInPublicationOrder(t *testing.T) {
	mr := newMiniredis(t)
	rdbPub := newRedisClient(t, mr.Addr())
	rdbSub := newRedisClient(t, mr.Addr())

	pubBridge := NewWorkerBridge(rdbPub)
	subBridge := NewWorkerBridge(rdbSub)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	w := &stringWriter{}
	done := make(chan error, 1)
	go func() { done <- subBridge.Serve(ctx, "task-xyz", w) }()

	time.Sleep(50 * time.Millisecond) // let the subscription establish
	require.NoError(t, pubBridge.Publish(ctx, "task-xyz", events.Token("one")))
	require.NoError(t, pubBridge.Publish(ctx, "task-xyz", events.Complete()))

	err := <-done
	require.NoError(t, err)
	out := w.buf.String()
	assert.True(t, strings.Index(out, `"token"`) < strings.Index(out, `"complete"`))
}
