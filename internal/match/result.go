// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package match selects (sport, season, episode) for a release filename
// using compiled pattern rules first and a structured heuristic parse as
// fallback, under strict deterministic tie-breaking.
package match

import (
	"fmt"

	"github.com/tomtom215/linesman/internal/config"
	"github.com/tomtom215/linesman/internal/metadata"
	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/pattern"
)

// FailureKind is the closed set of reason codes a match can fail with.
type FailureKind string

const (
	NoPatternMatched FailureKind = "NoPatternMatched"
	SeasonNotFound   FailureKind = "SeasonNotFound"
	EpisodeNotFound  FailureKind = "EpisodeNotFound"
	Ambiguous        FailureKind = "Ambiguous"
	SportDisabled    FailureKind = "SportDisabled"
	IgnoredByFilter  FailureKind = "IgnoredByFilter"
)

// Failure is a reason-coded match failure. It is a value, not a panic: the
// pass continues and the kind lands in the summary.
type Failure struct {
	Kind   FailureKind
	Detail string
}

// Error implements error.
func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func fail(kind FailureKind, format string, args ...interface{}) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Result is a successful match.
type Result struct {
	Season  *models.Season
	Episode *models.Episode

	// PatternID identifies the winning rule; empty for structured matches.
	PatternID       string
	PatternPriority int

	// Groups holds the regex captures (nil for structured matches); they
	// are exposed to destination templates.
	Groups map[string]string

	// ExactSession is set when the episode resolved through a direct
	// capture or an exact (non-fuzzy) session token. Exact matches carry
	// higher specificity for overwrite decisions.
	ExactSession bool

	// Overrides carries the winning rule's destination overrides.
	Overrides models.DestinationOverrides

	// Structured carries the heuristic parse when the structured pass
	// produced the match; nil otherwise. Persisted in trace artifacts.
	Structured *models.StructuredName

	// Score is the structured-pass score; 1 for pattern matches.
	Score float64
}

// SportRuntime is the immutable per-pass snapshot a worker matches
// against. Built once per pass by the processor; never mutated by workers.
type SportRuntime struct {
	Config              config.SportConfig
	Show                *models.Show
	Patterns            []pattern.CompiledPattern
	Aliases             metadata.AliasLookup
	MetadataFingerprint string

	// Stale marks the runtime as built from an expired cache entry.
	Stale bool
}
