// Package watcher reloads the note store when its files are changed by
// something other than the store itself.
package watcher

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notekeep/internal/notestore"
	"github.com/starford/notekeep/internal/storage"
)

// DefaultDebounce is the quiet period before an external change is reloaded.
const DefaultDebounce = 200 * time.Millisecond

// Store is the part of the note store the watcher drives.
type Store interface {
	Reload() (notestore.LoadReport, error)
	LastWritten(key string) string
}

// Watch observes the FS storage directory until ctx is cancelled. A change to
// one of the store's slot files whose content differs from what the store
// last wrote schedules a Reload after debounce.
func Watch(ctx context.Context, st Store, fsys *storage.FS, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(fsys.Root()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", fsys.Root()))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(debounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reloadCh:
			if !changed(st, fsys, logger) {
				continue
			}
			rep, err := st.Reload()
			if err != nil {
				logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("watcher: reloaded",
				slog.Bool("active_fallback", rep.ActiveFallback),
				slog.Bool("completed_fallback", rep.CompletedFallback))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, ok := fsys.KeyOf(ev.Name)
			if !ok || !isSlot(key) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: slot touched", slog.String("key", key), slog.String("op", ev.Op.String()))
			scheduleReload()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// changed reports whether any slot on disk differs from the store's last write.
func changed(st Store, fsys *storage.FS, logger *slog.Logger) bool {
	for _, key := range slots {
		sum, err := fsys.Checksum(key)
		if err != nil {
			logger.Warn("watcher: checksum failed", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		if sum != st.LastWritten(key) {
			return true
		}
	}
	return false
}

var slots = []string{notestore.KeyActive, notestore.KeyCompleted}

func isSlot(key string) bool {
	return slices.Contains(slots, key)
}
