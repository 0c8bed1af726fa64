package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightConfig configures the desktop-sandbox backend.
type PlaywrightConfig struct {
	Headless bool
	Logger   *slog.Logger
}

// PlaywrightFactory creates desktop runtimes backed by a Playwright-driven
// Chromium instance, one browser context per session.
type PlaywrightFactory struct {
	config PlaywrightConfig
	pw     *playwright.Playwright
}

// NewPlaywrightFactory starts the shared Playwright driver process used by
// every session this factory creates.
func NewPlaywrightFactory(config PlaywrightConfig) (*PlaywrightFactory, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright: starting driver: %w", err)
	}
	return &PlaywrightFactory{config: config, pw: pw}, nil
}

func (f *PlaywrightFactory) Kind() Kind { return KindDesktop }

func (f *PlaywrightFactory) New(_ context.Context, sessionKey string, _ map[string]any) (Runtime, error) {
	browser, err := f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.config.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("playwright: launching browser for %s: %w", sessionKey, err)
	}
	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("playwright: opening page for %s: %w", sessionKey, err)
	}
	return &playwrightRuntime{sessionKey: sessionKey, browser: browser, page: page, logger: f.config.Logger}, nil
}

type playwrightRuntime struct {
	sessionKey string
	browser    playwright.Browser
	page       playwright.Page
	logger     *slog.Logger

	mu        sync.Mutex
	streaming bool
}

func (r *playwrightRuntime) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error) {
	// Desktop sandboxes run host-side helper commands (clipboard tools,
	// stream launchers) rather than arbitrary guest code; execution proper
	// belongs to the execution runtime.
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c := exec.CommandContext(runCtx, "/bin/sh", "-c", cmd)
	out, err := c.CombinedOutput()
	exitCode := 0
	if ee, ok := err.(*exec.ExitError); ok {
		exitCode = ee.ExitCode()
		err = nil
	}
	return CommandResult{Stdout: string(out), ExitCode: exitCode}, err
}

func (r *playwrightRuntime) ReadFile(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("playwright runtime %s: file access is not supported on desktop sandboxes", r.sessionKey)
}

func (r *playwrightRuntime) WriteFile(context.Context, string, []byte) error {
	return fmt.Errorf("playwright runtime %s: file access is not supported on desktop sandboxes", r.sessionKey)
}

func (r *playwrightRuntime) GetHostURL(context.Context, int) (string, error) {
	return "", fmt.Errorf("playwright runtime %s: port exposure is not supported on desktop sandboxes", r.sessionKey)
}

func (r *playwrightRuntime) Close(context.Context) error {
	return r.browser.Close()
}

func (r *playwrightRuntime) Screenshot(context.Context) ([]byte, error) {
	return r.page.Screenshot(playwright.PageScreenshotOptions{Type: playwright.ScreenshotTypePng})
}

func (r *playwrightRuntime) Click(_ context.Context, p Point) error {
	return r.page.Mouse.Click(float64(p.X), float64(p.Y))
}

func (r *playwrightRuntime) DoubleClick(_ context.Context, p Point) error {
	return r.page.Mouse.Dblclick(float64(p.X), float64(p.Y))
}

func (r *playwrightRuntime) Type(_ context.Context, text string) error {
	return r.page.Keyboard().Type(text)
}

func (r *playwrightRuntime) TypeDirect(ctx context.Context, text string) error { return r.Type(ctx, text) }

func (r *playwrightRuntime) SetClipboard(ctx context.Context, text string) (bool, error) {
	for _, tool := range []string{"xclip", "xsel"} {
		if _, err := exec.LookPath(tool); err != nil {
			continue
		}
		res, err := r.RunCommand(ctx, fmt.Sprintf("printf %%s %q | %s -selection clipboard -i", text, tool), 5*time.Second)
		if err == nil && res.ExitCode == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *playwrightRuntime) PasteCombo(context.Context) error {
	return r.page.Keyboard().Press("Control+V")
}

func (r *playwrightRuntime) TypeViaClipboard(ctx context.Context, text string) error {
	return TypeViaClipboard(ctx, r, r.logger, text)
}

func (r *playwrightRuntime) PressKey(_ context.Context, key string) error {
	return r.page.Keyboard().Press(key)
}

func (r *playwrightRuntime) Scroll(_ context.Context, dx, dy int) error {
	return r.page.Mouse.Wheel(float64(dx), float64(dy))
}

func (r *playwrightRuntime) Move(_ context.Context, p Point) error {
	return r.page.Mouse.Move(float64(p.X), float64(p.Y))
}

func (r *playwrightRuntime) Drag(ctx context.Context, from, to Point) error {
	if err := r.page.Mouse.Move(float64(from.X), float64(from.Y)); err != nil {
		return err
	}
	if err := r.page.Mouse.Down(); err != nil {
		return err
	}
	if err := r.page.Mouse.Move(float64(to.X), float64(to.Y)); err != nil {
		return err
	}
	return r.page.Mouse.Up()
}

func (r *playwrightRuntime) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *playwrightRuntime) LaunchBrowser(_ context.Context, url string) error {
	_, err := r.page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded})
	return err
}

// GetStreamURL reports that this backend has no native live-stream
// provider; the session manager interprets ("", "", nil) as "mark ready
// without emitting browser_stream" per §4.D.
func (r *playwrightRuntime) GetStreamURL(context.Context) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaming = true
	return "", "", nil
}

func (r *playwrightRuntime) ExtractPageContent(context.Context) (string, error) {
	return r.page.Content()
}
