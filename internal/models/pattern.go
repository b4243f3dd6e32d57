// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package models

// SeasonSelectorMode is the closed set of strategies for resolving a season
// from a pattern match.
type SeasonSelectorMode string

const (
	// SeasonByRoundMode selects the season whose round number equals the
	// captured integer.
	SeasonByRoundMode SeasonSelectorMode = "round"

	// SeasonByKeyMode selects the season whose opaque key equals the
	// captured (or configured) value.
	SeasonByKeyMode SeasonSelectorMode = "key"

	// SeasonByTitleMode selects the season whose title or alias matches the
	// captured value, case-folded.
	SeasonByTitleMode SeasonSelectorMode = "title"

	// SeasonSequentialMode selects the season by ordinal position of the
	// captured integer over all seasons.
	SeasonSequentialMode SeasonSelectorMode = "sequential"

	// SeasonByWeekMode selects the season containing an episode with the
	// captured weekly index.
	SeasonByWeekMode SeasonSelectorMode = "week"

	// SeasonByDateMode renders ValueTemplate from the captured groups and
	// selects the season containing an episode airing on that date.
	SeasonByDateMode SeasonSelectorMode = "date"
)

// Valid reports whether m is one of the declared selector modes.
func (m SeasonSelectorMode) Valid() bool {
	switch m {
	case SeasonByRoundMode, SeasonByKeyMode, SeasonByTitleMode,
		SeasonSequentialMode, SeasonByWeekMode, SeasonByDateMode:
		return true
	}
	return false
}

// SeasonSelector declares how a pattern resolves the season.
type SeasonSelector struct {
	Mode SeasonSelectorMode `json:"mode" koanf:"mode"`

	// Group names the regex capture group carrying the selector value.
	Group string `json:"group,omitempty" koanf:"group"`

	// Value is a fixed selector value used when no capture group applies
	// (e.g. a literal season key).
	Value string `json:"value,omitempty" koanf:"value"`

	// ValueTemplate combines multiple capture groups into the selector
	// value, e.g. "{y}-{m:02}-{d:02}" for date mode.
	ValueTemplate string `json:"value_template,omitempty" koanf:"value_template"`
}

// EpisodeSelector declares how a pattern resolves the episode within the
// selected season.
type EpisodeSelector struct {
	// Group names the regex capture group carrying the episode value.
	Group string `json:"group,omitempty" koanf:"group"`

	// Direct interprets the captured value as the episode number instead
	// of a session token.
	Direct bool `json:"direct,omitempty" koanf:"direct"`

	// TitleFallback allows matching the captured value against episode
	// titles when no session token matches.
	TitleFallback bool `json:"title_fallback,omitempty" koanf:"title_fallback"`
}

// DestinationOverrides replaces the configured templates for files matched
// by one rule. Empty fields keep the sport-level template.
type DestinationOverrides struct {
	RootFolder   string `json:"root_folder,omitempty" koanf:"root_folder"`
	SeasonFolder string `json:"season_folder,omitempty" koanf:"season_folder"`
	Filename     string `json:"filename,omitempty" koanf:"filename"`
}

// PatternRule is one declarative matching rule. Rules are evaluated in
// ascending Priority order; lower values win.
type PatternRule struct {
	Regex           string               `json:"regex" koanf:"regex"`
	Description     string               `json:"description,omitempty" koanf:"description"`
	Priority        int                  `json:"priority" koanf:"priority"`
	SeasonSelector  SeasonSelector       `json:"season_selector" koanf:"season_selector"`
	EpisodeSelector EpisodeSelector      `json:"episode_selector" koanf:"episode_selector"`
	SessionAliases  map[string]string    `json:"session_aliases,omitempty" koanf:"session_aliases"`
	Overrides       DestinationOverrides `json:"destination_overrides,omitempty" koanf:"destination_overrides"`
}

// ID returns a stable identifier for the rule, used in processed records
// and trace artifacts.
func (r *PatternRule) ID() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Regex
}
