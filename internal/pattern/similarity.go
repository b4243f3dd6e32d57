// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package pattern

// FuzzyThreshold is the minimum similarity for a fuzzy session or location
// match.
const FuzzyThreshold = 0.85

// Similarity returns a ratio in [0, 1] of how alike two tokens are,
// computed as 2*M/T where M is the total length of matching blocks found
// by longest-common-substring recursion and T is the combined length.
// Equivalent inputs return 1; disjoint inputs return 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	m := matchingBlocks([]byte(a), []byte(b))
	return 2 * float64(m) / float64(len(a)+len(b))
}

// FuzzyClose reports whether two tokens pass the closeness predicate used
// by the matching engine: same first character, length within one, and
// similarity at or above FuzzyThreshold.
func FuzzyClose(a, b string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if a[0] != b[0] {
		return false
	}
	d := len(a) - len(b)
	if d < -1 || d > 1 {
		return false
	}
	return Similarity(a, b) >= FuzzyThreshold
}

// matchingBlocks sums the lengths of non-overlapping common substrings,
// found by locating the longest common substring and recursing on both
// sides.
func matchingBlocks(a, b []byte) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBlocks(a[:ai], b[:bi])
	total += matchingBlocks(a[ai+size:], b[bi+size:])
	return total
}

// longestCommonSubstring returns the start offsets and length of the
// longest common substring of a and b.
func longestCommonSubstring(a, b []byte) (int, int, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	bestA, bestB, bestLen := 0, 0, 0
	// prev[j] is the length of the common suffix of a[:i] and b[:j].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestLen {
					bestLen = cur[j]
					bestA = i - bestLen
					bestB = j - bestLen
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestA, bestB, bestLen
}
