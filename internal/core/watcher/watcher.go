// Package watcher turns file system events below the analyzed roots into
// debounced, rate limited re-analysis requests.
package watcher

import (
	"context"
	"github.com/tvbeek/pdepend/internal/shared/observability"
	"github.com/tvbeek/pdepend/internal/shared/util"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Scope decides which directories are watched and which changed files are
// relevant. The source scanner implements it.
type Scope interface {
	Roots() []string
	ExcludedDir(root, path string) bool
	Owns(path string) bool
}

type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	scope      Scope
	debounce   time.Duration
	limiter    *util.Limiter
	logger     *slog.Logger
	onChange   func(ctx context.Context, paths []string)
	callbackMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
	flushing  sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Watcher)

// WithLimiter bounds how often onChange runs. Batches arriving while the
// limiter is exhausted wait for a token.
func WithLimiter(l *util.Limiter) Option {
	return func(w *Watcher) { w.limiter = l }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

func NewWatcher(scope Scope, debounce time.Duration, onChange func(ctx context.Context, paths []string), opts ...Option) (*Watcher, error) {
	if onChange == nil || scope == nil {
		return nil, os.ErrInvalid
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsWatcher: fsw,
		scope:     scope,
		debounce:  debounce,
		onChange:  onChange,
		pending:   make(map[string]time.Time),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches every root recursively and processes events until ctx is
// done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.scope.Roots() {
		if err := w.watchRecursive(root, root); err != nil {
			return err
		}
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.scope.ExcludedDir(root, path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) rootOf(path string) (string, bool) {
	for _, root := range w.scope.Roots() {
		if util.WithinRoot(path, root) {
			return root, true
		}
	}
	return "", false
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			root, ok := w.rootOf(event.Name)
			if !ok || w.scope.ExcludedDir(root, event.Name) {
				return
			}
			if err := w.watchRecursive(root, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				return
			}
			w.enqueueExistingFiles(event.Name)
			return
		}
	}
	if !w.scope.Owns(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.scheduleChange(event.Name)
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.closed {
		return
	}

	w.pending[path] = time.Now()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	if w.closed {
		w.pendingMu.Unlock()
		return
	}
	w.flushing.Add(1)
	defer w.flushing.Done()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) == 0 || w.ctx.Err() != nil {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	if w.limiter != nil && !w.limiter.Allow(1) {
		observability.WatcherRunsThrottledTotal.Inc()
		w.logger.Debug("run throttled", "changed", len(paths))
		if err := w.limiter.Wait(w.ctx, 1); err != nil {
			return
		}
	}
	w.onChange(w.ctx, paths)
}

func (w *Watcher) enqueueExistingFiles(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if w.scope.Owns(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}

// Close stops the event loop, drops pending changes and waits for a running
// callback to return.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.pendingMu.Lock()
		w.closed = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
		err = w.fsWatcher.Close()
		w.wg.Wait()
		w.flushing.Wait()
	})
	return err
}
