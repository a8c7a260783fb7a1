package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads path whenever it is written or replaced and passes the new
// config to onChange. A config that fails to load is logged and skipped, so
// the caller keeps running with the previous one. Watch blocks until ctx is
// done.
//
// The parent directory is watched rather than the file: a save that renames a
// temp file over path replaces the inode and would end a file-level watch.
func Watch(ctx context.Context, path string, log *zap.Logger, onChange func(*Config)) error {
	if log == nil {
		log = zap.NewNop()
	}
	target := filepath.Clean(path)
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	log.Info("config_watch_started", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// a rename over path arrives as Create
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				log.Error("config_reload_failed", zap.String("path", path), zap.Error(err))
				continue
			}
			log.Info("config_reloaded", zap.String("path", path))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config_watch_error", zap.Error(err))
		}
	}
}
