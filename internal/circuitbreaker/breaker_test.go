package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosedOpensAtFailureThreshold(t *testing.T) {
	b := New("sandbox", Config{FailureThreshold: 3, RecoveryTimeout: time.Second})
	failing := func(context.Context) error { return errors.New("boom") }

	for i := 0; i < 2; i++ {
		err := b.Call(context.Background(), failing)
		require.Error(t, err)
		assert.Equal(t, Closed, b.State())
	}

	err := b.Call(context.Background(), failing)
	require.Error(t, err)
	assert.Equal(t, Open, b.State(), "third failure must open the circuit")
}

func TestOpenRejectsImmediatelyThenHalfOpensAfterTimeout(t *testing.T) {
	b := New("sandbox", Config{FailureThreshold: 1, RecoveryTimeout: 30 * time.Millisecond, SuccessThreshold: 1})
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errors.New("x") }))
	require.Equal(t, Open, b.State())

	err := b.Call(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOpen, "call inside the recovery window must fail immediately without invoking fn")

	time.Sleep(40 * time.Millisecond)
	err = b.Call(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State(), "a success in half-open reaching success_threshold closes the circuit")
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New("svc", Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, SuccessThreshold: 2})
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errors.New("x") }))
	time.Sleep(15 * time.Millisecond)

	err := b.Call(context.Background(), func(context.Context) error { return errors.New("still broken") })
	require.Error(t, err)
	assert.Equal(t, Open, b.State())
}

func TestOpenErrorsNotCountedAsFailures(t *testing.T) {
	b := New("svc", Config{FailureThreshold: 2, RecoveryTimeout: time.Hour})
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errors.New("x") }))
	require.Equal(t, Closed, b.State())

	// Hammer the open-rejection path; none of these should push failureCount
	// toward the threshold because transitionTo resets counters and ErrOpen
	// short-circuits before recordResult runs again.
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errors.New("y") }))
	assert.Equal(t, Open, b.State())
	for i := 0; i < 5; i++ {
		err := b.Call(context.Background(), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrOpen)
	}
	assert.Equal(t, Open, b.State())
}

func TestHalfOpenConcurrencyCap(t *testing.T) {
	b := New("svc", Config{FailureThreshold: 1, RecoveryTimeout: time.Millisecond, HalfOpenMaxConcurrent: 1})
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errors.New("x") }))
	time.Sleep(5 * time.Millisecond)

	release, err := b.acquire()
	require.NoError(t, err)
	defer release()

	_, err = b.acquire()
	assert.ErrorIs(t, err, ErrHalfOpenSaturated)
}

func TestRegistryLazyCreatesWithDefaults(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 7})
	b1 := r.Get("llm")
	b2 := r.Get("llm")
	assert.Same(t, b1, b2, "repeated Get for the same service must return the same breaker")
}
