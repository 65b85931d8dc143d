package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	onChange func(*Config)
	done     chan struct{}
}

// NewWatcher watches the directory holding path so editors that replace
// the file atomically are still noticed.
func NewWatcher(path string, logger *slog.Logger, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		watcher:  fw,
		debounce: 500 * time.Millisecond,
		logger:   logger.With("component", "config.watcher"),
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Run blocks until ctx is cancelled, calling onChange with each freshly
// loaded config. Rapid successive writes collapse into a single reload.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	defer w.watcher.Close()

	target := filepath.Clean(w.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-pending:
			pending = nil
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("reload failed", "path", w.path, "error", err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				w.logger.Warn("reloaded config invalid", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("config reloaded", "path", w.path)
			w.onChange(cfg)
		}
	}
}

// Done is closed once Run returns.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}
