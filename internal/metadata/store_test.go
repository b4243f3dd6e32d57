// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package metadata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/linesman/internal/models"
)

// fakeProvider counts fetches and can be switched to fail.
type fakeProvider struct {
	calls int
	fail  error
	doc   *models.RawMetadata
}

func (f *fakeProvider) Fetch(_ context.Context, _ string) (*models.RawMetadata, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.doc, nil
}

func testDoc(title string) *models.RawMetadata {
	return &models.RawMetadata{
		Show: models.RawShow{ID: "nhl-2025", Title: title},
		Seasons: []models.RawSeason{
			{Key: "s1", Number: 1, Title: "Regular Season"},
		},
	}
}

func TestStore_MissFetchesAndCaches(t *testing.T) {
	p := &fakeProvider{doc: testDoc("NHL")}
	store, err := NewStore(t.TempDir(), time.Hour, p)
	if err != nil {
		t.Fatal(err)
	}

	res, err := store.Get(context.Background(), "nhl-2025")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.Stale {
		t.Error("fresh fetch must not be stale")
	}
	if res.Raw.Show.ID != "nhl-2025" {
		t.Errorf("unexpected payload: %+v", res.Raw.Show)
	}
	if p.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", p.calls)
	}

	// Second get within TTL must not hit the provider.
	if _, err := store.Get(context.Background(), "nhl-2025"); err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Errorf("expected cached serve, got %d fetches", p.calls)
	}
}

func TestStore_ExpiredRefetches(t *testing.T) {
	p := &fakeProvider{doc: testDoc("NHL")}
	store, err := NewStore(t.TempDir(), time.Nanosecond, p)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(context.Background(), "nhl-2025"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, err := store.Get(context.Background(), "nhl-2025"); err != nil {
		t.Fatal(err)
	}
	if p.calls != 2 {
		t.Errorf("expected refetch after TTL, got %d fetches", p.calls)
	}
}

func TestStore_StaleAcceptOnFetchFailure(t *testing.T) {
	p := &fakeProvider{doc: testDoc("NHL")}
	store, err := NewStore(t.TempDir(), time.Nanosecond, p)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(context.Background(), "nhl-2025"); err != nil {
		t.Fatal(err)
	}

	p.fail = ErrTransientNetwork
	time.Sleep(time.Millisecond)

	res, err := store.Get(context.Background(), "nhl-2025")
	if err != nil {
		t.Fatalf("expected stale accept, got %v", err)
	}
	if !res.Stale {
		t.Error("expected Stale flag on served entry")
	}
}

func TestStore_UnavailableWithoutCache(t *testing.T) {
	p := &fakeProvider{fail: ErrTransientNetwork}
	store, err := NewStore(t.TempDir(), time.Hour, p)
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.Get(context.Background(), "nhl-2025")
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Errorf("expected ErrMetadataUnavailable, got %v", err)
	}
}

func TestStore_DigestMismatchTreatedAsMiss(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{doc: testDoc("NHL")}
	store, err := NewStore(dir, time.Hour, p)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(context.Background(), "nhl-2025"); err != nil {
		t.Fatal(err)
	}

	// Corrupt the stored payload without updating the digest.
	path := filepath.Join(dir, RequestFingerprint("nhl-2025"))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	e := &entry{}
	if err := json.Unmarshal(data, e); err != nil {
		t.Fatal(err)
	}
	e.PayloadBytes = json.RawMessage(`{"show":{"id":"tampered"},"seasons":[]}`)
	tampered, _ := json.Marshal(e)
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatal(err)
	}

	// The corrupt entry must be refetched, not served.
	res, err := store.Get(context.Background(), "nhl-2025")
	if err != nil {
		t.Fatal(err)
	}
	if res.Raw.Show.ID != "nhl-2025" {
		t.Errorf("tampered payload served: %+v", res.Raw.Show)
	}
	if p.calls != 2 {
		t.Errorf("expected refetch of corrupt entry, got %d fetches", p.calls)
	}
}

func TestStore_NoPartialEntriesOnDisk(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{doc: testDoc("NHL")}
	store, err := NewStore(dir, time.Hour, p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), "nhl-2025"); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, de := range entries {
		if filepath.Ext(de.Name()) != "" && de.Name()[0] == '.' {
			t.Errorf("leftover temp file %s", de.Name())
		}
	}
}

func TestStore_Invalidate(t *testing.T) {
	p := &fakeProvider{doc: testDoc("NHL")}
	store, err := NewStore(t.TempDir(), time.Hour, p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), "nhl-2025"); err != nil {
		t.Fatal(err)
	}
	if err := store.Invalidate("nhl-2025"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), "nhl-2025"); err != nil {
		t.Fatal(err)
	}
	if p.calls != 2 {
		t.Errorf("expected refetch after invalidate, got %d", p.calls)
	}
	// Invalidating a missing entry is not an error.
	if err := store.Invalidate("never-cached"); err != nil {
		t.Errorf("Invalidate(missing) = %v", err)
	}
}
