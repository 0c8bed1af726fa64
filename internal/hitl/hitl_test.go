package hitl

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingEmitter struct {
	got []Interrupt
}

func (e *capturingEmitter) EmitInterrupt(i Interrupt) { e.got = append(e.got, i) }

func newTestManager(t *testing.T, emitter EventEmitter) *Manager {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewManager(rdb, emitter)
}

func TestCreateInterruptStoresKeyWithTTLAndEmitsEvent(t *testing.T) {
	emitter := &capturingEmitter{}
	m := newTestManager(t, emitter)

	err := m.CreateInterrupt(context.Background(), "thread-1", "int-1", Interrupt{
		Kind: KindApproval, Title: "deploy?", Message: "allow deploy to prod",
	})
	require.NoError(t, err)

	require.Len(t, emitter.got, 1)
	assert.Equal(t, "deny", emitter.got[0].DefaultAction)
	assert.Equal(t, int(DefaultTimeout.Seconds()), emitter.got[0].TimeoutSec)

	val, err := m.rdb.Get(context.Background(), interruptKey("thread-1", "int-1")).Result()
	require.NoError(t, err)
	assert.Contains(t, val, "deploy?")

	ttl, err := m.rdb.TTL(context.Background(), interruptKey("thread-1", "int-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, DefaultTimeout)
}

func TestWaitForResponseReceivesPublishedResponse(t *testing.T) {
	m := newTestManager(t, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = m.SubmitResponse(context.Background(), "thread-1", Response{Action: "approve", InterruptID: "int-1"})
	}()

	resp, err := m.WaitForResponse(context.Background(), "thread-1", "int-1", 5)
	require.NoError(t, err)
	assert.Equal(t, "approve", resp.Action)
}

func TestWaitForResponseTimesOut(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.WaitForResponse(context.Background(), "thread-1", "int-missing", 1)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSubmitResponseDeletesInterruptKey(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.CreateInterrupt(ctx, "thread-1", "int-1", Interrupt{Kind: KindDecision, TimeoutSec: 5}))

	done := make(chan *Response, 1)
	go func() {
		resp, _ := m.WaitForResponse(ctx, "thread-1", "int-1", 5)
		done <- resp
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.SubmitResponse(ctx, "thread-1", Response{Action: "pick", Value: "b", InterruptID: "int-1"}))
	<-done

	exists, err := m.rdb.Exists(ctx, interruptKey("thread-1", "int-1")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestKindDefaultActions(t *testing.T) {
	assert.Equal(t, "deny", KindApproval.DefaultAction())
	assert.Equal(t, "skip", KindDecision.DefaultAction())
	assert.Equal(t, "skip", KindInput.DefaultAction())
}

func TestWithManagerRoundTripsThroughContext(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := WithManager(context.Background(), m, "thread-7")

	got, threadID, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, "thread-7", threadID)
}

func TestFromContextMissingManagerReturnsFalse(t *testing.T) {
	_, _, ok := FromContext(context.Background())
	assert.False(t, ok)
}
