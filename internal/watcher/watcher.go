// Package watcher turns filesystem changes on corpus paths into
// debounced rebuild signals. Bursts of writes during an ingest run
// collapse into a single lexical snapshot rebuild.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the coalescing window for rebuild signals.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc is invoked once per coalesced change burst.
type RebuildFunc func(ctx context.Context) error

// Watcher observes corpus paths and calls the rebuild function after
// changes settle for the debounce window.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	rebuild  RebuildFunc

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New creates a watcher over the given paths.
func New(paths []string, debounce time.Duration, rebuild RebuildFunc) (*Watcher, error) {
	if rebuild == nil {
		return nil, fmt.Errorf("rebuild function is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}

	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		rebuild:  rebuild,
	}, nil
}

// Start runs the event loop until the context is cancelled or Stop is
// called. It blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("corpus change detected",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()))
			w.scheduleRebuild(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// scheduleRebuild arms the debounce timer, replacing any pending one so
// the rebuild fires once after the burst settles.
func (w *Watcher) scheduleRebuild(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := w.rebuild(ctx); err != nil {
			slog.Error("corpus rebuild failed",
				slog.String("error", err.Error()))
			return
		}
		slog.Info("corpus rebuild complete",
			slog.Duration("took", time.Since(start)))
	})
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.fsw.Close()
}
