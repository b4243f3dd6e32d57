// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package metadata fetches per-sport metadata from the configured backend,
// normalizes it into the canonical show/season/episode model, and serves it
// from an on-disk cache with TTL and fingerprint-change detection.
package metadata

import "errors"

var (
	// ErrMetadataUnavailable is returned when neither the backend nor a
	// stale cache entry can serve a request. Fatal for the affected sport.
	ErrMetadataUnavailable = errors.New("metadata unavailable")

	// ErrNotFound means the backend has no show for the reference.
	// Terminal for that sport; never retried within a fetch.
	ErrNotFound = errors.New("metadata not found")

	// ErrAuthFailure means the backend rejected our credentials.
	// Terminal for that sport.
	ErrAuthFailure = errors.New("metadata auth failure")

	// ErrRateLimited means the backend asked us to back off. Retriable.
	ErrRateLimited = errors.New("metadata rate limited")

	// ErrTransientNetwork covers timeouts, connection resets, and 5xx
	// responses. Retriable.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrNormalization means the raw payload violated a model invariant.
	ErrNormalization = errors.New("metadata normalization failed")
)

// retriable reports whether a fetch error is worth another attempt within
// the same fetch.
func retriable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransientNetwork)
}
