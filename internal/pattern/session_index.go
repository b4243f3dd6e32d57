// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package pattern

import "sort"

// SessionLookupIndex maps session tokens to their canonical value with a
// two-level candidate index (first character, then length bucket) so fuzzy
// lookups only score a small candidate set.
//
// The index is a pure optimization: any token that would pass the
// fuzzy-closeness predicate (same first character, length within one, and
// similarity at or above threshold) is guaranteed to appear in
// GetCandidates. Matching correctness does not depend on the bucketing.
type SessionLookupIndex struct {
	direct  map[string]string
	buckets map[byte]map[int][]string
}

// NewSessionLookupIndex returns an empty index.
func NewSessionLookupIndex() *SessionLookupIndex {
	return &SessionLookupIndex{
		direct:  make(map[string]string),
		buckets: make(map[byte]map[int][]string),
	}
}

// Add registers a key with its canonical value, updating both the direct
// map and the bucketed index. Empty keys are ignored.
func (idx *SessionLookupIndex) Add(key, canonical string) {
	if key == "" {
		return
	}
	if _, exists := idx.direct[key]; exists {
		return
	}
	idx.direct[key] = canonical

	first := key[0]
	byLen, ok := idx.buckets[first]
	if !ok {
		byLen = make(map[int][]string)
		idx.buckets[first] = byLen
	}
	byLen[len(key)] = append(byLen[len(key)], key)
}

// GetDirect returns the canonical value for an exact key, or "" when the
// key is not registered.
func (idx *SessionLookupIndex) GetDirect(token string) string {
	return idx.direct[token]
}

// GetCandidates returns the registered keys sharing the token's first
// character with length within one of the token's. The result is sorted so
// downstream tie-breaking is deterministic.
func (idx *SessionLookupIndex) GetCandidates(token string) []string {
	if token == "" {
		return nil
	}
	byLen, ok := idx.buckets[token[0]]
	if !ok {
		return nil
	}

	var out []string
	for _, l := range []int{len(token) - 1, len(token), len(token) + 1} {
		out = append(out, byLen[l]...)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered keys.
func (idx *SessionLookupIndex) Len() int {
	return len(idx.direct)
}
