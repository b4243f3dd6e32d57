// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package services

import (
	"context"

	"github.com/tomtom215/linesman/internal/watch"
)

// WatcherService supervises the filesystem watcher.
type WatcherService struct {
	watcher *watch.Watcher
}

// NewWatcherService wraps a watcher.
func NewWatcherService(w *watch.Watcher) *WatcherService {
	return &WatcherService{watcher: w}
}

// Serve implements suture.Service; the watcher already speaks the same
// contract.
func (s *WatcherService) Serve(ctx context.Context) error {
	return s.watcher.Serve(ctx)
}

// String names the service in supervisor logs.
func (s *WatcherService) String() string {
	return "watcher"
}
