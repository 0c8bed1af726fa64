// Package sandbox provides a provider-agnostic runtime abstraction for
// execution and desktop sandboxes (§4.C), and the session manager that
// pools them per (kind, user, task) with idle expiry, health checks, and a
// background reaper (§4.D).
package sandbox

import (
	"context"
	"time"
)

// Kind distinguishes the two sandbox flavors.
type Kind string

const (
	KindExecution Kind = "execution"
	KindDesktop   Kind = "desktop"
)

// CommandResult is the outcome of RunCommand.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runtime is the capability set every sandbox backend must offer,
// regardless of kind. All operations are suspension points: they may block
// on the underlying transport and may fail with transport/provider errors
// that the caller is expected to route through a circuit breaker.
type Runtime interface {
	// RunCommand executes cmd with the given timeout and returns its
	// captured output. A non-zero ExitCode is not itself an error; transport
	// failures and context deadline exceeded are.
	RunCommand(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	// GetHostURL returns the publicly reachable URL for a port exposed
	// inside the sandbox, for backends that support port forwarding.
	GetHostURL(ctx context.Context, port int) (string, error)
	// Close releases any underlying process/VM/container resources.
	Close(ctx context.Context) error
}

// Point is a screen coordinate used by desktop runtime operations.
type Point struct{ X, Y int }

// DesktopRuntime extends Runtime with the interactive surface needed to
// drive a remote desktop: screenshots, pointer/keyboard input, and browser
// launch/streaming, per §4.C.
type DesktopRuntime interface {
	Runtime

	Screenshot(ctx context.Context) ([]byte, error)
	Click(ctx context.Context, p Point) error
	DoubleClick(ctx context.Context, p Point) error
	Type(ctx context.Context, text string) error
	// TypeViaClipboard applies the clipboard-paste policy documented on
	// TypeViaClipboard in clipboard.go.
	TypeViaClipboard(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Scroll(ctx context.Context, dx, dy int) error
	Move(ctx context.Context, p Point) error
	Drag(ctx context.Context, from, to Point) error
	Wait(ctx context.Context, d time.Duration) error
	LaunchBrowser(ctx context.Context, url string) error
	// GetStreamURL starts (idempotently) the provider's live stream and
	// returns its URL and an auth key. Providers without native streaming
	// return ("", "", nil); the caller (the session manager) interprets
	// that as "fall back to periodic screenshots".
	GetStreamURL(ctx context.Context) (url, authKey string, err error)
	ExtractPageContent(ctx context.Context) (string, error)
}

// Factory constructs a fresh Runtime or DesktopRuntime for a session key.
// Concrete providers (Firecracker-backed execution, Playwright-backed
// desktop, or the in-memory mock used by tests) implement Factory.
type Factory interface {
	Kind() Kind
	New(ctx context.Context, sessionKey string, opts map[string]any) (Runtime, error)
}
