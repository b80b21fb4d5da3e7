package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates every cached snapshot when a parquet file under dir
// changes, so the next request reloads fresh data instead of waiting out
// the TTL. It blocks until ctx is canceled.
func (c *Cache) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	// Partitioned tables live one level down.
	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			if err := watcher.Add(m); err != nil {
				c.logger.Warn("failed to watch subdirectory", "dir", m, "error", err)
			}
		}
	}

	c.logger.Info("watching data directory", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".parquet") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			c.logger.Info("data change detected", "file", event.Name, "op", event.Op.String())
			c.InvalidateAll()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watcher error", "error", err)
		}
	}
}
