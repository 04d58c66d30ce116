package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceInterval is how long the watcher waits for writes to settle.
const DebounceInterval = 200 * time.Millisecond

// ChangeCallback is called after a watcher-driven sync that changed records.
type ChangeCallback func(changes []Change)

// Watch observes the catalog file until ctx is cancelled, re-syncing the
// store after each burst of edits. The parent directory is watched rather
// than the file so editors that replace the file via rename are handled.
func Watch(ctx context.Context, db RateStore, file *File, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(file.Path())
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("catalog watcher: started", slog.String("path", file.Path()))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(DebounceInterval)
			timerCh = timer.C
		} else {
			timer.Reset(DebounceInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("catalog watcher: stopped")
			return nil

		case <-timerCh:
			changes, err := Sync(ctx, db, file, logger)
			if err != nil {
				// Keep the last good state; the next edit retries.
				logger.Warn("catalog watcher: sync failed", slog.String("error", err.Error()))
				continue
			}
			if len(changes) > 0 {
				logger.Info("catalog watcher: synced", slog.Int("changes", len(changes)))
				if cb != nil {
					cb(changes)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != file.Path() {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("catalog watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
