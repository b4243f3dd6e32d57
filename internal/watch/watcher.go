// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package watch observes the source tree and signals the processor through
// a coalescing channel: debounced on filesystem events, unconditionally on
// the reconcile interval.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/metrics"
)

// Trigger says why a pass should run.
type Trigger string

const (
	// TriggerEvent means debounced filesystem activity.
	TriggerEvent Trigger = "event"

	// TriggerReconcile means the periodic full pass, run even without
	// events to recover from dropped notifications.
	TriggerReconcile Trigger = "reconcile"
)

// Config configures the watcher.
type Config struct {
	// Paths to observe, recursively.
	Paths []string

	// Include globs: when non-empty, an event path must match one.
	Include []string

	// Ignore globs are dropped before dispatch.
	Ignore []string

	// Debounce is the quiet window after the last event before a signal.
	Debounce time.Duration

	// ReconcileInterval forces a signal even without events. Zero
	// disables reconciliation.
	ReconcileInterval time.Duration
}

// Watcher owns the fsnotify stream, the debounce timer, and the reconcile
// ticker. Signals are delivered on a capacity-one channel: a pending
// signal absorbs later ones, so a burst of events dispatches one pass.
type Watcher struct {
	cfg     Config
	signals chan Trigger
}

// New creates a watcher. Serve must be called to start observation.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("watch: no paths configured")
	}
	return &Watcher{
		cfg:     cfg,
		signals: make(chan Trigger, 1),
	}, nil
}

// Signals returns the coalesced trigger channel.
func (w *Watcher) Signals() <-chan Trigger {
	return w.signals
}

// Serve runs the watch loop until the context is cancelled. It implements
// suture.Service; cancellation stops pending timers immediately.
func (w *Watcher) Serve(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	for _, root := range w.cfg.Paths {
		if err := addRecursive(fsw, root); err != nil {
			return err
		}
	}

	// The debounce timer starts stopped; the first qualifying event arms it.
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	var reconcile *time.Ticker
	var reconcileC <-chan time.Time
	if w.cfg.ReconcileInterval > 0 {
		reconcile = time.NewTicker(w.cfg.ReconcileInterval)
		reconcileC = reconcile.C
		defer reconcile.Stop()
	}

	logging.Info().Strs("paths", w.cfg.Paths).Dur("debounce", w.cfg.Debounce).Msg("Watcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watch: event stream closed")
			}
			// New directories join the watch before their contents
			// settle, regardless of the include filter (which gates
			// files, not directories).
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(fsw, event.Name); err != nil {
						logging.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
					}
				}
			}
			if !w.relevant(event) {
				metrics.WatcherEvents.WithLabelValues("filtered").Inc()
				continue
			}
			// Any further event during the quiet window resets the timer.
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(w.cfg.Debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: error stream closed")
			}
			logging.Warn().Err(err).Msg("Watcher error")

		case <-debounce.C:
			w.signal(TriggerEvent)

		case <-reconcileC:
			w.signal(TriggerReconcile)
		}
	}
}

// signal delivers a trigger without blocking; a pending signal coalesces.
func (w *Watcher) signal(t Trigger) {
	select {
	case w.signals <- t:
		metrics.WatcherEvents.WithLabelValues("dispatched").Inc()
	default:
		metrics.WatcherEvents.WithLabelValues("coalesced").Inc()
	}
}

// relevant applies op and glob filters: only create, write, and rename ops
// dispatch; ignored globs drop first, then include globs gate when set.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)
	for _, glob := range w.cfg.Ignore {
		if matchEither(glob, event.Name, name) {
			return false
		}
	}
	if len(w.cfg.Include) == 0 {
		return true
	}
	for _, glob := range w.cfg.Include {
		if matchEither(glob, event.Name, name) {
			return true
		}
	}
	return false
}

// matchEither matches a glob against the full path and the base name.
func matchEither(glob, fullPath, base string) bool {
	if ok, err := doublestar.Match(glob, fullPath); err == nil && ok {
		return true
	}
	if ok, err := doublestar.Match(glob, base); err == nil && ok {
		return true
	}
	return false
}

// addRecursive registers a directory tree with the fsnotify watcher.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
