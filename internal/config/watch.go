package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the subset of Config fields marked hot-reloadable whenever
// the backing file changes, and logs (rather than applies) changes to
// structural fields.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	current Config
	onApply func(Config)
}

// Watch starts watching path and calls onApply with the merged config every
// time the file is rewritten. The initial Config must already be loaded by
// the caller via Load.
func Watch(path string, initial Config, logger *slog.Logger, onApply func(Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	watcher := &Watcher{path: path, watcher: w, logger: logger, current: initial, onApply: onApply}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config", "error", err)
		return
	}
	merged := w.current.applyHotReloadable(next)
	if structuralChanged(w.current, next) {
		w.logger.Warn("structural config change ignored, restart required")
	}
	w.current = merged
	w.onApply(merged)
}

func structuralChanged(prev, next Config) bool {
	return prev.Server != next.Server || prev.Gateway != next.Gateway || prev.Auth != next.Auth
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
