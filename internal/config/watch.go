package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

// Watch reloads path whenever it is written and passes the new Config to
// onChange. A reload that fails is logged and the previous config stays in
// effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	// The directory is watched so that atomic saves (write then rename) are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	log := logger.Named("config")
	log.Info(ctx, "watching for changes", logger.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadFile(ctx, path)
			if err != nil {
				log.Error(ctx, "reload failed, keeping previous config", logger.String("path", path), logger.Error(err))
				metrics.RecordConfigReload("error")
				continue
			}
			log.Info(ctx, "reloaded", logger.String("path", path))
			metrics.RecordConfigReload("ok")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error(ctx, "watcher error", logger.Error(err))
		}
	}
}
