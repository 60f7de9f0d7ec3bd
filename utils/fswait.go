package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitForPath blocks until path exists, the timeout elapses, or ctx is
// canceled. Watches the parent directory for create events, with a coarse
// poll as fallback for filesystems without notification support.
func WaitForPath(ctx context.Context, path string, timeout time.Duration) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WaitFor(ctx, timeout, 100*time.Millisecond, func() (bool, error) { //nolint:mnd
			_, serr := os.Stat(path)
			return serr == nil, nil
		})
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	// The file may have appeared between the stat and the watch.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	ticker := time.NewTicker(500 * time.Millisecond) //nolint:mnd
	defer ticker.Stop()

	for {
		select {
		case ev := <-watcher.Events:
			// Renames count: atomic writers create a temp file and move it
			// onto the target.
			if ev.Name == path && (ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename)) {
				return nil
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("watch %s: %w", path, err)
		case <-ticker.C:
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("timeout waiting for %s", path)
			}
			return ctx.Err()
		}
	}
}
