package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentgraph/orchestrator/internal/circuitbreaker"
	"github.com/agentgraph/orchestrator/pkg/events"
)

// reapInterval is how often the background reaper sweeps for expired
// sessions (§4.D: "wakes every 60s").
const reapInterval = 60 * time.Second

// healthCheckTimeout bounds the lightweight health-check command.
const healthCheckTimeout = 5 * time.Second

// healthCheckCmd is the command the manager runs to verify a session is
// still responsive.
const healthCheckCmd = "echo health_check"

// Metrics is the counter snapshot returned by GetMetrics.
type Metrics struct {
	ActiveSessions       int
	TotalCreated         int64
	TotalCleaned         int64
	TotalReused          int64
	HealthCheckFailures  int64
}

// Options configures session creation.
type Options struct {
	Timeout    time.Duration
	FactoryOpt map[string]any
}

// EventSink receives events the manager emits onto the run's bus (only
// browser_stream today, per §4.A "sandbox session manager (browser_stream
// once per session on first ready)").
type EventSink interface {
	Emit(events.Event)
}

// Manager is the singleton sandbox session cache keyed by (kind, user_id,
// task_id). A single mutex serializes mutations of the session map;
// individual sessions are assumed to be used by one caller (the agent
// holding them) at a time, per §5's shared-resource list.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	factories map[Kind]Factory
	breakers  *circuitbreaker.Registry

	created        int64
	cleaned        int64
	reused         int64
	healthFailures int64

	reapCancel context.CancelFunc
	reapOnce   sync.Once
}

// NewManager creates a session manager backed by the given factories (one
// per Kind) and circuit breaker registry. The breaker registry is shared
// with the rest of the process so the "sandbox" service name composes with
// breakers used elsewhere.
func NewManager(factories map[Kind]Factory, breakers *circuitbreaker.Registry) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		factories: factories,
		breakers:  breakers,
	}
}

// GetOrCreate reuses an existing, non-expired, healthy session for the key
// or evicts-and-creates otherwise (§4.D).
func (m *Manager) GetOrCreate(ctx context.Context, kind Kind, userID, taskID string, opts Options) (*Session, error) {
	key := SessionKey(kind, userID, taskID)

	m.mu.Lock()
	existing, ok := m.sessions[key]
	m.mu.Unlock()

	if ok {
		if !existing.Expired(time.Now()) && !existing.isStale() {
			if m.healthCheck(ctx, existing) {
				existing.Touch()
				m.mu.Lock()
				m.reused++
				m.mu.Unlock()
				return existing, nil
			}
		}
		m.Cleanup(ctx, key)
	}

	return m.create(ctx, key, kind, userID, taskID, opts)
}

// Get returns an existing session without creating one.
func (m *Manager) Get(kind Kind, userID, taskID string) *Session {
	key := SessionKey(kind, userID, taskID)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key]
}

func (m *Manager) create(ctx context.Context, key string, kind Kind, userID, taskID string, opts Options) (*Session, error) {
	factory, ok := m.factories[kind]
	if !ok {
		return nil, fmt.Errorf("sandbox manager: no factory registered for kind %q", kind)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Minute
	}

	breaker := m.breakers.GetWithConfig("sandbox", circuitbreaker.SandboxDefaults())
	rt, err := circuitbreaker.CallWithResult(ctx, breaker, func(ctx context.Context) (Runtime, error) {
		return factory.New(ctx, key, opts.FactoryOpt)
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox manager: creating session %s: %w", key, err)
	}

	sess := newSession(key, kind, rt, opts.Timeout)
	m.mu.Lock()
	m.sessions[key] = sess
	m.created++
	m.mu.Unlock()

	m.startReaperOnce()
	_ = userID
	_ = taskID
	return sess, nil
}

// healthCheck runs the lightweight command and evicts the session on
// failure, returning whether it is still usable.
func (m *Manager) healthCheck(ctx context.Context, sess *Session) bool {
	hcCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	res, err := sess.Runtime.RunCommand(hcCtx, healthCheckCmd, healthCheckTimeout)
	if err != nil || res.ExitCode != 0 {
		m.mu.Lock()
		m.healthFailures++
		m.mu.Unlock()
		sess.MarkStale()
		return false
	}
	return true
}

// Cleanup destroys the session for a specific key, if any.
func (m *Manager) Cleanup(ctx context.Context, key string) {
	m.mu.Lock()
	sess, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
		m.cleaned++
	}
	m.mu.Unlock()

	if ok {
		_ = sess.Runtime.Close(ctx)
	}
}

// CleanupExpired sweeps every session and destroys ones past their TTL.
// This is what the background reaper calls every reapInterval.
func (m *Manager) CleanupExpired(ctx context.Context) {
	now := time.Now()
	m.mu.Lock()
	var expired []string
	for key, sess := range m.sessions {
		if sess.Expired(now) {
			expired = append(expired, key)
		}
	}
	m.mu.Unlock()

	for _, key := range expired {
		m.Cleanup(ctx, key)
	}
}

// CleanupAll destroys every session and cancels the background reaper.
// Intended for process shutdown.
func (m *Manager) CleanupAll(ctx context.Context) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.sessions))
	for key := range m.sessions {
		keys = append(keys, key)
	}
	cancel := m.reapCancel
	m.reapCancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, key := range keys {
		m.Cleanup(ctx, key)
	}
	m.reapOnce = sync.Once{}
}

// CleanupSandboxesForTask frees both the execution and desktop sessions
// tied to one (user, task) run, used on SSE disconnect to prevent orphaned
// containers from lingering until TTL (§4.D).
func (m *Manager) CleanupSandboxesForTask(ctx context.Context, userID, taskID string) {
	m.Cleanup(ctx, SessionKey(KindExecution, userID, taskID))
	m.Cleanup(ctx, SessionKey(KindDesktop, userID, taskID))
}

// GetMetrics returns a snapshot of manager-wide counters.
func (m *Manager) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		ActiveSessions:      len(m.sessions),
		TotalCreated:        m.created,
		TotalCleaned:        m.cleaned,
		TotalReused:         m.reused,
		HealthCheckFailures: m.healthFailures,
	}
}

// startReaperOnce lazily starts the background reaper goroutine on first
// session creation, per §4.D.
func (m *Manager) startReaperOnce() {
	m.reapOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		m.mu.Lock()
		m.reapCancel = cancel
		m.mu.Unlock()

		go func() {
			ticker := time.NewTicker(reapInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					m.CleanupExpired(ctx)
				}
			}
		}()
	})
}

// EnsureStreamReady starts the provider's live stream for a desktop
// session on first call, waits waitFor to let the client connect, and
// emits exactly one browser_stream event onto sink. Subsequent calls are
// no-ops. Providers without native streaming (GetStreamURL returns empty
// strings) mark the session ready without emitting an event, so the client
// falls back to periodic screenshots (§4.D).
func (m *Manager) EnsureStreamReady(ctx context.Context, sess *Session, waitFor time.Duration, sink EventSink) error {
	sess.mu.Lock()
	if sess.StreamStarted {
		sess.mu.Unlock()
		return nil
	}
	sess.StreamStarted = true
	sess.mu.Unlock()

	dr, ok := sess.desktop()
	if !ok {
		return fmt.Errorf("sandbox manager: session %s is not a desktop session", sess.Key)
	}

	url, authKey, err := dr.GetStreamURL(ctx)
	if err != nil {
		return fmt.Errorf("sandbox manager: starting stream for %s: %w", sess.Key, err)
	}

	if waitFor <= 0 {
		waitFor = 1500 * time.Millisecond
	}
	select {
	case <-time.After(waitFor):
	case <-ctx.Done():
		return ctx.Err()
	}

	sess.mu.Lock()
	sess.StreamReady = true
	sess.StreamURL = url
	sess.AuthKey = authKey
	sess.mu.Unlock()

	if url == "" {
		return nil
	}
	if sink != nil {
		sink.Emit(events.Event{
			Type: events.TypeBrowserStream, StreamURL: url, SandboxID: sess.Key, AuthKey: authKey,
		})
	}
	return nil
}
