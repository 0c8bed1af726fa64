package skills

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads dynamic skills from a source directory whenever a file
// under it is written or created, debouncing bursts of filesystem events
// the way a save-in-editor or git checkout produces them. Each reload goes
// through DynamicLoader.Reload, which rejects a source whose hash differs
// from the one recorded when that skill was first loaded: an edited file
// of an already-loaded skill is logged as a failed reload and the
// registered version stays in place.
type Watcher struct {
	dir      string
	debounce time.Duration
	loader   *DynamicLoader
	reg      *Registry
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewWatcher builds a watcher over dir; debounce<=0 defaults to 250ms.
func NewWatcher(dir string, debounce time.Duration, loader *DynamicLoader, reg *Registry, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dir: dir, debounce: debounce, loader: loader, reg: reg, logger: logger.With("component", "skills_watch")}
}

// Start begins watching. It loads every file directly in dir once up
// front (subdirectories are skipped), then reloads on subsequent changes.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return err
	}

	if err := w.loadAll(ctx); err != nil {
		w.logger.Warn("initial dynamic skill load had errors", "error", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(watchCtx)
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			if err := w.reloadOne(ctx, path); err != nil {
				w.logger.Warn("dynamic skill reload failed", "path", path, "error", err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				scheduleReload(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("skill watch error", "error", err)
		}
	}
}

func (w *Watcher) loadAll(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if err := w.reloadOne(ctx, path); err != nil {
			w.logger.Warn("skipping dynamic skill", "path", path, "error", err)
		}
	}
	return nil
}

func (w *Watcher) reloadOne(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	id := skillIDFromPath(path)
	dynSrc := DynamicSource{
		Metadata: Metadata{ID: id, Name: id, Category: "dynamic", Enabled: true},
		Source:   string(src),
	}
	_, err = w.loader.Reload(w.reg, dynSrc)
	return err
}

func skillIDFromPath(path string) string {
	base := filepath.Base(path)
	for _, suffix := range []string{".skill.js", ".js"} {
		if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
			return base[:len(base)-len(suffix)]
		}
	}
	return base
}
