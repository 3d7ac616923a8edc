package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the store whenever its file changes and hands the new
// settings to onChange. The directory is watched rather than the file so
// that atomic replace-on-save is seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, store *ConfigStore, onChange func(domain.Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	path := filepath.Clean(store.Path())
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			reload = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher: %v", err)

		case <-reload:
			reload = nil
			if err := store.Load(); err != nil {
				logger.Warn("config reload failed, keeping previous settings: %v", err)
				continue
			}
			settings, err := LoadSettings(store)
			if err != nil {
				logger.Warn("config reload failed, keeping previous settings: %v", err)
				continue
			}
			logger.Info("Reloaded configuration from %s", path)
			onChange(settings)
		}
	}
}
