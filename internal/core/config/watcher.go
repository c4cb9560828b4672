package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 100 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk and hands
// each successfully loaded Config to the callback. Saves that leave the
// content unchanged do not trigger a reload.
type Watcher struct {
	path     string
	callback func(*Config)
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	timer   *time.Timer
	applied []byte
}

func NewWatcher(path string, callback func(*Config), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: filepath.Clean(path), callback: callback, logger: logger}
}

// Start watches the directory holding the file so editors that save by
// replacing the file are noticed too.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return err
	}
	w.applied, _ = os.ReadFile(w.path)

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fw.Close()
		w.logger.Debug("config watcher started", "path", w.path)
		for {
			select {
			case <-ctx.Done():
				w.mu.Lock()
				if w.timer != nil {
					w.timer.Stop()
				}
				w.mu.Unlock()
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) == w.path && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					w.schedule()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Stop ends watching. It is safe to call more than once and before Start.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDelay, w.reload)
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Error("failed to read configuration", "path", w.path, "error", err)
		return
	}
	w.mu.Lock()
	unchanged := bytes.Equal(data, w.applied)
	w.mu.Unlock()
	if unchanged {
		return
	}

	w.logger.Info("config file changed, reloading", "path", w.path)
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("failed to reload configuration", "path", w.path, "error", err)
		return
	}
	ApplyEnvOverrides(cfg)
	w.mu.Lock()
	w.applied = data
	w.mu.Unlock()
	if w.callback != nil {
		w.callback(cfg)
	}
}
