package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 500 * time.Millisecond

// Reloader reloads the active group set from its store
type Reloader interface {
	Reload(ctx context.Context) error
}

// ConfigWatcher reloads the active groups when the config file changes on disk
type ConfigWatcher struct {
	path     string
	reloader Reloader
	logger   *zap.Logger
}

// NewConfigWatcher creates a watcher for path
func NewConfigWatcher(path string, reloader Reloader, logger *zap.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		reloader: reloader,
		logger:   logger.Named("watcher"),
	}
}

// Name returns the task name
func (w *ConfigWatcher) Name() string {
	return "watcher"
}

// Run watches until ctx is done.
// The parent directory is watched so atomic renames are seen.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			timerC = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timerC:
			timerC = nil
			if err := w.reloader.Reload(ctx); err != nil {
				w.logger.Error("config reload failed", zap.Error(err))
				continue
			}
			w.logger.Info("config file changed, groups reloaded", zap.String("path", w.path))
		}
	}
}
