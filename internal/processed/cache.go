// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package processed is the durable record of already-processed sources.
// Records are keyed by source content fingerprint and survive across
// passes so re-runs are idempotent.
package processed

import (
	"errors"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/metrics"
	"github.com/tomtom215/linesman/internal/models"
)

// Cache is a BadgerDB-backed store of ProcessedRecords.
type Cache struct {
	db *badger.DB
}

// Open opens (or creates) the cache at path. A corrupt store is treated as
// an empty cache: it is recreated and processing continues.
func Open(path string) (*Cache, error) {
	db, err := open(path)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Processed cache unreadable, starting empty")
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("removing corrupt processed cache: %w", rmErr)
		}
		db, err = open(path)
		if err != nil {
			return nil, fmt.Errorf("recreating processed cache: %w", err)
		}
	}

	c := &Cache{db: db}
	metrics.ProcessedCacheSize.Set(float64(c.Count()))
	return c, nil
}

func open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is too chatty; errors surface via returns
	return badger.Open(opts)
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the record for a source fingerprint, or false when absent.
// A record that fails to decode is treated as absent.
func (c *Cache) Get(sourceFingerprint string) (*models.ProcessedRecord, bool) {
	var rec *models.ProcessedRecord
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sourceFingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r := &models.ProcessedRecord{}
			if err := json.Unmarshal(val, r); err != nil {
				return err
			}
			rec = r
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Warn().Err(err).Str("fingerprint", sourceFingerprint).Msg("Unreadable processed record, ignoring")
		}
		return nil, false
	}
	return rec, true
}

// Count returns the number of stored records.
func (c *Cache) Count() int {
	n := 0
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Batch accumulates writes for one pass; nothing is visible until Commit.
type Batch struct {
	wb      *badger.WriteBatch
	pending int
}

// NewBatch starts a pass-scoped write batch.
func (c *Cache) NewBatch() *Batch {
	return &Batch{wb: c.db.NewWriteBatch()}
}

// Put stages a record keyed by its source fingerprint.
func (b *Batch) Put(rec *models.ProcessedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding processed record: %w", err)
	}
	if err := b.wb.Set([]byte(rec.SourceFingerprint), data); err != nil {
		return err
	}
	b.pending++
	return nil
}

// Delete stages removal of a record.
func (b *Batch) Delete(sourceFingerprint string) error {
	if err := b.wb.Delete([]byte(sourceFingerprint)); err != nil {
		return err
	}
	b.pending++
	return nil
}

// Pending returns the number of staged mutations.
func (b *Batch) Pending() int {
	return b.pending
}

// Commit flushes the batch atomically at pass end.
func (b *Batch) Commit() error {
	return b.wb.Flush()
}

// Cancel discards the batch.
func (b *Batch) Cancel() {
	b.wb.Cancel()
}
