// Package fswatch reloads data when a file on disk changes.
package fswatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const DefaultDebounce = 250 * time.Millisecond

// Watch calls reload after file is written or created, until ctx is done.
// Bursts of events within debounce collapse into one call. The parent
// directory is watched so the file may be created after Watch starts.
func Watch(ctx context.Context, file string, debounce time.Duration, reload func() error) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target := filepath.Clean(file)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "could not create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "could not watch %s", filepath.Dir(target))
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

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
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "path", target, "err", err)
		case <-timer.C:
			if err := reload(); err != nil {
				slog.Error("reload failed", "path", target, "err", err)
			}
		}
	}
}
