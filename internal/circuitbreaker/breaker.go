// Package circuitbreaker implements a per-service closed/open/half-open
// gate around calls to external providers (LLM vendors, web search, the
// sandbox provider). One breaker exists per service name; breakers are
// held in a Registry and are safe for concurrent use.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// ErrOpen is returned by Call when the circuit is open and the recovery
// timeout has not yet elapsed. It deliberately does not count as a failure
// itself — recording it would keep re-opening a breaker that is already
// open.
var ErrOpen = errors.New("circuit breaker open")

// ErrHalfOpenSaturated is returned when half-open concurrency is already at
// its cap and another call arrives before the in-flight probes resolve.
var ErrHalfOpenSaturated = errors.New("circuit breaker half-open probe already in flight")

// Config configures a single breaker. Zero values fall back to the
// general LLM/search-tier defaults (failure_threshold=5,
// success_threshold=2, recovery_timeout=30s, half_open_max_concurrent=1);
// the sandbox provider's tighter thresholds come from SandboxDefaults.
type Config struct {
	FailureThreshold       int
	SuccessThreshold       int
	RecoveryTimeout        time.Duration
	HalfOpenMaxConcurrent  int
	OnStateChange          func(service string, from, to State)
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxConcurrent <= 0 {
		c.HalfOpenMaxConcurrent = 1
	}
	return c
}

// SandboxDefaults returns the tighter defaults spec §4.B calls out for the
// sandbox provider (failure_threshold=3, recovery_timeout=60s,
// success_threshold=1).
func SandboxDefaults() Config {
	return Config{FailureThreshold: 3, SuccessThreshold: 1, RecoveryTimeout: 60 * time.Second, HalfOpenMaxConcurrent: 1}
}

// Breaker is a single named circuit breaker.
type Breaker struct {
	name   string
	config Config

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	halfOpenInFlight int
}

// New creates a breaker in the Closed state.
func New(name string, config Config) *Breaker {
	return &Breaker{name: name, config: config.withDefaults(), state: Closed}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsAvailable reports whether a call would be allowed right now without
// mutating state (used by callers that want to short-circuit before doing
// work to build a request).
func (b *Breaker) IsAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Closed || b.state == HalfOpen {
		return true
	}
	return time.Since(b.lastFailureTime) >= b.config.RecoveryTimeout
}

// TimeUntilRetry returns how long until an Open breaker allows its next
// probe call. Zero or negative means a call may proceed now.
func (b *Breaker) TimeUntilRetry() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return 0
	}
	return b.config.RecoveryTimeout - time.Since(b.lastFailureTime)
}

// Call runs fn under the breaker's protection, recording success/failure
// automatically. It does not retry; bounded retry, if wanted, is the
// caller's responsibility (spec §7: "tool handlers may implement bounded
// retry").
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	err = fn(ctx)
	b.recordResult(err == nil)
	return err
}

// CallWithResult is the generic variant of Call for functions returning a
// value alongside an error.
func CallWithResult[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	release, err := b.acquire()
	if err != nil {
		return zero, err
	}
	defer release()

	result, err := fn(ctx)
	b.recordResult(err == nil)
	return result, err
}

// acquire validates the breaker will accept a call, transitioning
// Open→HalfOpen when the recovery window has elapsed, and enforces the
// half-open concurrency cap. The returned release func must be called
// exactly once.
func (b *Breaker) acquire() (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return func() {}, nil

	case Open:
		if time.Since(b.lastFailureTime) < b.config.RecoveryTimeout {
			return nil, fmt.Errorf("%w: %s, retry after %s", ErrOpen, b.name, b.config.RecoveryTimeout-time.Since(b.lastFailureTime))
		}
		b.transitionTo(HalfOpen)
		fallthrough

	case HalfOpen:
		if b.halfOpenInFlight >= b.config.HalfOpenMaxConcurrent {
			return nil, fmt.Errorf("%w: %s", ErrHalfOpenSaturated, b.name)
		}
		b.halfOpenInFlight++
		return func() {
			b.mu.Lock()
			b.halfOpenInFlight--
			b.mu.Unlock()
		}, nil
	}
	return func() {}, nil
}

func (b *Breaker) recordResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

func (b *Breaker) onFailure() {
	b.lastFailureTime = time.Now()
	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold {
			b.transitionTo(Open)
		}
	case HalfOpen:
		b.transitionTo(Open)
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.transitionTo(Closed)
		}
	}
}

// transitionTo must be called with b.mu held.
func (b *Breaker) transitionTo(to State) {
	from := b.state
	b.state = to
	b.failureCount = 0
	b.successCount = 0
	if to != Open {
		b.halfOpenInFlight = 0
	}
	if b.config.OnStateChange != nil && from != to {
		go b.config.OnStateChange(b.name, from, to)
	}
}

// Snapshot is a point-in-time copy of breaker state, matching the
// CircuitBreakerState record in the data model (§3).
type Snapshot struct {
	Service          string
	State            State
	FailureCount     int
	SuccessCount     int
	LastFailureTime  time.Time
	HalfOpenInFlight int
}

// Snapshot returns the breaker's current state as a value type.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Service: b.name, State: b.state, FailureCount: b.failureCount,
		SuccessCount: b.successCount, LastFailureTime: b.lastFailureTime,
		HalfOpenInFlight: b.halfOpenInFlight,
	}
}

// Reset forces the breaker back to Closed with counters zeroed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(Closed)
}

// Registry holds one Breaker per service name, created lazily with a
// shared default config.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults Config
}

// NewRegistry creates a registry that lazily constructs breakers with the
// given default config.
func NewRegistry(defaults Config) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), defaults: defaults.withDefaults()}
}

// Get returns the named breaker, creating it with the registry defaults on
// first access.
func (r *Registry) Get(service string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[service]; ok {
		return b
	}
	b = New(service, r.defaults)
	r.breakers[service] = b
	return b
}

// GetWithConfig returns or creates the named breaker with a custom config,
// used for services (sandbox) that need non-default thresholds.
func (r *Registry) GetWithConfig(service string, config Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[service]; ok {
		return b
	}
	b := New(service, config)
	r.breakers[service] = b
	return b
}

// Snapshots returns the state of every breaker in the registry.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	return out
}
