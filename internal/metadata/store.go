// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/linesman/internal/fingerprint"
	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/metrics"
	"github.com/tomtom215/linesman/internal/models"
)

// entry is the on-disk cache record. PayloadBytes is the decoded provider
// document re-encoded as JSON, not the backend's original bytes.
type entry struct {
	Fingerprint   string          `json:"fingerprint"`
	FetchedAt     time.Time       `json:"fetched_at"`
	PayloadDigest string          `json:"payload_digest"`
	PayloadBytes  json.RawMessage `json:"payload_bytes"`
}

// Result is a served metadata document with its provenance.
type Result struct {
	Raw         *models.RawMetadata
	Fingerprint string

	// PayloadDigest identifies the payload content; runtimes rebuilt only
	// when it changes.
	PayloadDigest string

	FetchedAt time.Time

	// Stale is set when the entry is past TTL and the backend could not
	// refresh it.
	Stale bool
}

// Store is a content-addressed on-disk metadata cache. Each request reduces
// to a stable fingerprint of the resolved show reference; entries live at
// <dir>/<fingerprint> and are replaced by atomic rename so readers never
// observe a partially written entry.
type Store struct {
	dir      string
	ttl      time.Duration
	provider Provider
	sf       singleflight.Group
}

// NewStore creates a store rooted at dir (created if missing).
func NewStore(dir string, ttl time.Duration, provider Provider) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating metadata cache dir: %w", err)
	}
	return &Store{dir: dir, ttl: ttl, provider: provider}, nil
}

// RequestFingerprint reduces a show reference to the stable cache key.
func RequestFingerprint(showRef string) string {
	return fingerprint.Text("metadata:" + showRef)
}

// Get serves metadata for a show reference. Serve order:
//  1. Fresh cache entry (now - fetched_at < TTL): no network.
//  2. Miss or expired: fetch, atomically replace, return new payload.
//  3. Stale accept: expired entry returned flagged when the fetch fails.
//
// Concurrent calls for the same fingerprint are collapsed to one fetch.
func (s *Store) Get(ctx context.Context, showRef string) (*Result, error) {
	fp := RequestFingerprint(showRef)

	v, err, _ := s.sf.Do(fp, func() (interface{}, error) {
		return s.get(ctx, showRef, fp)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Store) get(ctx context.Context, showRef, fp string) (*Result, error) {
	cached, readErr := s.read(fp)
	if readErr == nil && time.Since(cached.FetchedAt) < s.ttl {
		raw, err := decodePayload(cached.PayloadBytes)
		if err == nil {
			metrics.MetadataCacheServes.WithLabelValues("fresh").Inc()
			return &Result{Raw: raw, Fingerprint: fp, PayloadDigest: cached.PayloadDigest, FetchedAt: cached.FetchedAt}, nil
		}
		// Undecodable fresh entry degrades to a miss.
		logging.Ctx(ctx).Warn().Err(err).Str("fingerprint", fp).Msg("Discarding corrupt cache entry")
	}

	raw, fetchErr := s.provider.Fetch(ctx, showRef)
	if fetchErr == nil {
		payload, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding payload: %v", ErrNormalization, err)
		}
		now := time.Now().UTC()
		if err := s.write(&entry{
			Fingerprint:   fp,
			FetchedAt:     now,
			PayloadDigest: fingerprint.Bytes(payload),
			PayloadBytes:  payload,
		}); err != nil {
			// A cache write failure must not fail the pass; the payload is
			// already in hand.
			logging.Ctx(ctx).Warn().Err(err).Str("fingerprint", fp).Msg("Metadata cache write failed")
		}
		metrics.MetadataCacheServes.WithLabelValues("refreshed").Inc()
		return &Result{Raw: raw, Fingerprint: fp, PayloadDigest: fingerprint.Bytes(payload), FetchedAt: now}, nil
	}

	// Fall through to stale accept.
	if readErr == nil {
		raw, err := decodePayload(cached.PayloadBytes)
		if err == nil {
			logging.Ctx(ctx).Warn().Err(fetchErr).Str("show_ref", showRef).Msg("Serving stale metadata")
			metrics.MetadataCacheServes.WithLabelValues("stale").Inc()
			return &Result{Raw: raw, Fingerprint: fp, PayloadDigest: cached.PayloadDigest, FetchedAt: cached.FetchedAt, Stale: true}, nil
		}
	}

	metrics.MetadataCacheServes.WithLabelValues("miss").Inc()
	return nil, fmt.Errorf("%w: %s: %v", ErrMetadataUnavailable, showRef, fetchErr)
}

// read loads and verifies one cache entry. A digest mismatch is corruption
// and surfaces as an error so the caller treats it as a miss.
func (s *Store) read(fp string) (*entry, error) {
	data, err := os.ReadFile(s.path(fp))
	if err != nil {
		return nil, err
	}

	e := &entry{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", fp, err)
	}
	if e.Fingerprint != fp {
		return nil, fmt.Errorf("cache entry %s carries fingerprint %s", fp, e.Fingerprint)
	}
	if fingerprint.Bytes(e.PayloadBytes) != e.PayloadDigest {
		return nil, fmt.Errorf("cache entry %s digest mismatch", fp)
	}
	return e, nil
}

// write persists an entry via sibling temp file + rename.
func (s *Store) write(e *entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+e.Fingerprint+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path(e.Fingerprint))
}

func (s *Store) path(fp string) string {
	return filepath.Join(s.dir, fp)
}

func decodePayload(payload json.RawMessage) (*models.RawMetadata, error) {
	raw := &models.RawMetadata{}
	if err := json.Unmarshal(payload, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Invalidate removes the cached entry for a show reference, forcing the
// next Get to hit the backend.
func (s *Store) Invalidate(showRef string) error {
	err := os.Remove(s.path(RequestFingerprint(showRef)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
