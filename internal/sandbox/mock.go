package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockFactory produces in-memory runtimes that record calls instead of
// touching any real backend. It backs unit tests and local development
// where neither Firecracker nor Playwright is available.
type MockFactory struct {
	kind Kind
	// Fail, if set, makes every New call fail — used to drive the circuit
	// breaker and session-creation failure paths in tests.
	Fail bool
}

// NewMockFactory creates a MockFactory for the given kind.
func NewMockFactory(kind Kind) *MockFactory { return &MockFactory{kind: kind} }

func (f *MockFactory) Kind() Kind { return f.kind }

func (f *MockFactory) New(_ context.Context, sessionKey string, _ map[string]any) (Runtime, error) {
	if f.Fail {
		return nil, fmt.Errorf("mock factory: forced failure creating %s", sessionKey)
	}
	mr := &mockRuntime{sessionKey: sessionKey, files: make(map[string][]byte)}
	if f.kind == KindDesktop {
		return &mockDesktop{mockRuntime: mr}, nil
	}
	return mr, nil
}

type mockRuntime struct {
	mu         sync.Mutex
	sessionKey string
	files      map[string][]byte
	closed     bool
}

func (m *mockRuntime) RunCommand(_ context.Context, cmd string, _ time.Duration) (CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return CommandResult{}, fmt.Errorf("sandbox %s: runtime closed", m.sessionKey)
	}
	if cmd == "echo health_check" {
		return CommandResult{Stdout: "health_check\n", ExitCode: 0}, nil
	}
	return CommandResult{Stdout: "", ExitCode: 0}, nil
}

func (m *mockRuntime) ReadFile(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("sandbox %s: file not found: %s", m.sessionKey, path)
	}
	return data, nil
}

func (m *mockRuntime) WriteFile(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
	return nil
}

func (m *mockRuntime) GetHostURL(_ context.Context, port int) (string, error) {
	return fmt.Sprintf("https://%s-%d.sandbox.local", m.sessionKey, port), nil
}

func (m *mockRuntime) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// mockDesktop adds the desktop capability set on top of mockRuntime,
// recording pointer/keyboard actions for assertions in tests.
type mockDesktop struct {
	*mockRuntime

	mu          sync.Mutex
	clipboard   string
	streamed    bool
	lastTyped   string
	lastClicked Point
}

func (m *mockDesktop) Screenshot(context.Context) ([]byte, error) { return []byte("PNGDATA"), nil }

func (m *mockDesktop) Click(_ context.Context, p Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastClicked = p
	return nil
}

func (m *mockDesktop) DoubleClick(ctx context.Context, p Point) error { return m.Click(ctx, p) }

func (m *mockDesktop) Type(_ context.Context, text string) error { return m.TypeDirect(context.Background(), text) }

func (m *mockDesktop) TypeDirect(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTyped = text
	return nil
}

func (m *mockDesktop) SetClipboard(_ context.Context, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clipboard = text
	return true, nil
}

func (m *mockDesktop) PasteCombo(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTyped = m.clipboard
	return nil
}

func (m *mockDesktop) TypeViaClipboard(ctx context.Context, text string) error {
	return TypeViaClipboard(ctx, m, nil, text)
}

func (m *mockDesktop) PressKey(context.Context, string) error        { return nil }
func (m *mockDesktop) Scroll(context.Context, int, int) error        { return nil }
func (m *mockDesktop) Move(_ context.Context, p Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastClicked = p
	return nil
}
func (m *mockDesktop) Drag(context.Context, Point, Point) error { return nil }
func (m *mockDesktop) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (m *mockDesktop) LaunchBrowser(context.Context, string) error { return nil }

func (m *mockDesktop) GetStreamURL(_ context.Context) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamed {
		return "", "", nil
	}
	m.streamed = true
	return "https://stream.sandbox.local/" + m.sessionKey, "auth-" + m.sessionKey, nil
}

func (m *mockDesktop) ExtractPageContent(context.Context) (string, error) { return "", nil }
