// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package models defines the canonical data model shared across Linesman:
// the normalized show/season/episode hierarchy, declarative pattern rules,
// structured-parse results, processed-file records, and pass summaries.
package models

import "time"

// Show is the normalized top-level entity for one sport.
// ID is globally unique per sport. Aliases are case-folded and deduplicated.
type Show struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	DisplayTitle string   `json:"display_title"`
	Aliases      []string `json:"aliases,omitempty"`
	Seasons      []Season `json:"seasons"`
}

// Season is one season of a show. (Show, Number) uniquely identifies a
// season. RoundNumber carries the sport-specific round when the source
// supplies one distinct from Number; otherwise it equals Number.
type Season struct {
	Key         string    `json:"key"`
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	RoundNumber int       `json:"round_number"`
	Year        int       `json:"year,omitempty"`
	Aliases     []string  `json:"aliases,omitempty"`
	Episodes    []Episode `json:"episodes"`
}

// Episode is one episode within a season. (Season, Number) uniquely
// identifies an episode. DisplayNumber may differ from Number for
// league-specific formatting. OriginallyAvailable is in the sport's
// nominal timezone; nil when the source has no air date.
type Episode struct {
	Number              int        `json:"number"`
	DisplayNumber       string     `json:"display_number,omitempty"`
	Title               string     `json:"title"`
	Summary             string     `json:"summary,omitempty"`
	OriginallyAvailable *time.Time `json:"originally_available,omitempty"`
	Week                *int       `json:"week,omitempty"`
	Aliases             []string   `json:"aliases,omitempty"`
	SessionTokens       []string   `json:"session_tokens,omitempty"`
}

// SeasonByNumber returns the season with the given canonical number.
func (s *Show) SeasonByNumber(n int) *Season {
	for i := range s.Seasons {
		if s.Seasons[i].Number == n {
			return &s.Seasons[i]
		}
	}
	return nil
}

// SeasonByRound returns the season whose RoundNumber matches n.
func (s *Show) SeasonByRound(n int) *Season {
	for i := range s.Seasons {
		if s.Seasons[i].RoundNumber == n {
			return &s.Seasons[i]
		}
	}
	return nil
}

// SeasonByKey returns the season with the given opaque key.
func (s *Show) SeasonByKey(key string) *Season {
	for i := range s.Seasons {
		if s.Seasons[i].Key == key {
			return &s.Seasons[i]
		}
	}
	return nil
}

// EpisodeByNumber returns the episode with the given number.
func (s *Season) EpisodeByNumber(n int) *Episode {
	for i := range s.Episodes {
		if s.Episodes[i].Number == n {
			return &s.Episodes[i]
		}
	}
	return nil
}

// EpisodeOnDate returns the first episode whose air date equals the given
// calendar day, or nil when no episode carries that date.
func (s *Season) EpisodeOnDate(day time.Time) *Episode {
	y, m, d := day.Date()
	for i := range s.Episodes {
		ep := &s.Episodes[i]
		if ep.OriginallyAvailable == nil {
			continue
		}
		ey, em, ed := ep.OriginallyAvailable.Date()
		if ey == y && em == m && ed == d {
			return ep
		}
	}
	return nil
}
