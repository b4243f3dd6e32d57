// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/validation"
)

// Configuration error kinds. All are fatal at startup.
var (
	// ErrInvalidConfig wraps any structural or field-level validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownPatternSet is returned when a sport references a pattern set
	// that is not declared under pattern_sets.
	ErrUnknownPatternSet = errors.New("unknown pattern set")

	// ErrDuplicateSportID is returned when two sports (after variant
	// expansion) share an ID.
	ErrDuplicateSportID = errors.New("duplicate sport id")
)

// Validate performs struct-level validation followed by cross-field checks
// that validator tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if !models.LinkMode(c.LinkMode).Valid() {
		return fmt.Errorf("%w: link_mode %q", ErrInvalidConfig, c.LinkMode)
	}

	// Every referenced pattern set must exist.
	for _, sport := range c.Sports {
		for _, setName := range sport.PatternSets {
			if _, ok := c.PatternSets[setName]; !ok {
				return fmt.Errorf("%w: sport %q references %q", ErrUnknownPatternSet, sport.ID, setName)
			}
		}
		if len(sport.PatternSets) == 0 && len(sport.FilePatterns) == 0 {
			return fmt.Errorf("%w: sport %q has no pattern sets or file patterns", ErrInvalidConfig, sport.ID)
		}
	}

	// Sport IDs must be unique after variant expansion.
	seen := make(map[string]struct{})
	for _, sport := range c.ExpandVariants() {
		if _, dup := seen[sport.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSportID, sport.ID)
		}
		seen[sport.ID] = struct{}{}
	}

	// Watching with no usable paths is a configuration mistake, not a
	// silent no-op.
	if c.Watch.Enabled && len(c.Watch.Paths) == 0 && c.SourceDir == "" {
		return fmt.Errorf("%w: watch.enabled with no watch.paths and no source_dir", ErrInvalidConfig)
	}

	return nil
}
