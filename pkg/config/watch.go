package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchDebounce batches the bursts of events editors produce for one save.
const watchDebounce = 100 * time.Millisecond

// Watch reloads the file at path whenever it is written or replaced and passes
// each valid configuration to onChange. Invalid configurations are logged and skipped.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*File)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so that atomic replaces (rename over the file) are seen
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Config watcher error", zap.Error(err))

		case <-debounce:
			debounce = nil

			f, err := Load(path)
			if err != nil {
				logger.Warn("Ignoring invalid config change", zap.String("path", path), zap.Error(err))
				continue
			}

			logger.Info("Config reloaded", zap.String("path", path))
			onChange(f)
		}
	}
}
