// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package match

import (
	"testing"
	"time"

	"github.com/tomtom215/linesman/internal/config"
	"github.com/tomtom215/linesman/internal/metadata"
	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/pattern"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// --- Motorsport fixture (scenario: round-based Formula 1) ---

func f1Show() *models.Show {
	sessions := []string{"FP1", "FP2", "FP3", "Qualifying", "Sprint", "Race"}
	eps := make([]models.Episode, 0, len(sessions))
	for i, s := range sessions {
		eps = append(eps, models.Episode{
			Number:        i + 1,
			Title:         s,
			SessionTokens: []string{metadata.Fold(s)},
		})
	}
	return &models.Show{
		ID:    "formula1-2025",
		Title: "Formula 1",
		Seasons: []models.Season{
			{Key: "s5", Number: 5, Title: "Monaco Grand Prix", RoundNumber: 5, Year: 2025, Episodes: eps},
		},
	}
}

func f1Runtime(t *testing.T) *SportRuntime {
	t.Helper()
	show := f1Show()
	rules := []models.PatternRule{{
		Regex:           `Round(?P<round>\d{2})\.\w+\.(?P<session>\w+)\.mkv`,
		Description:     "round-session",
		Priority:        10,
		SeasonSelector:  models.SeasonSelector{Mode: models.SeasonByRoundMode, Group: "round"},
		EpisodeSelector: models.EpisodeSelector{Group: "session"},
	}}
	compiled, err := pattern.Compile(rules, show)
	if err != nil {
		t.Fatal(err)
	}
	return &SportRuntime{
		Config: config.SportConfig{
			ID: "formula1_2025", Enabled: true,
			SourceGlobs:      []string{"**"},
			SourceExtensions: []string{"mkv"},
		},
		Show:     show,
		Patterns: compiled,
	}
}

func TestEngine_RoundBasedMotorsport(t *testing.T) {
	res, f := NewEngine().Match("Formula.1.2025.Round05.Monaco.Race.mkv", f1Runtime(t))
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}

	if res.Season.Number != 5 || res.Season.Title != "Monaco Grand Prix" {
		t.Errorf("season = %+v", res.Season)
	}
	if res.Episode.Number != 6 || res.Episode.Title != "Race" {
		t.Errorf("episode = %+v", res.Episode)
	}
	if res.PatternID != "round-session" || !res.ExactSession {
		t.Errorf("pattern attribution wrong: %+v", res)
	}
	if res.Groups["round"] != "05" {
		t.Errorf("capture groups not exposed: %v", res.Groups)
	}
}

func TestEngine_FuzzySessionViaPattern(t *testing.T) {
	res, f := NewEngine().Match("Formula.1.2025.Round05.Monaco.Qualifyin.mkv", f1Runtime(t))
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if res.Episode.Title != "Qualifying" {
		t.Errorf("fuzzy session resolved to %q", res.Episode.Title)
	}
	if res.ExactSession {
		t.Error("fuzzy session must not claim exact specificity")
	}
}

func TestEngine_SportDisabled(t *testing.T) {
	rt := f1Runtime(t)
	rt.Config.Enabled = false

	_, f := NewEngine().Match("Formula.1.2025.Round05.Monaco.Race.mkv", rt)
	if f == nil || f.Kind != SportDisabled {
		t.Errorf("expected SportDisabled, got %v", f)
	}
}

func TestEngine_IgnoredByFilter(t *testing.T) {
	rt := f1Runtime(t)

	_, f := NewEngine().Match("Formula.1.2025.Round05.Monaco.Race.avi", rt)
	if f == nil || f.Kind != IgnoredByFilter {
		t.Errorf("expected IgnoredByFilter for extension, got %v", f)
	}

	rt.Config.SourceGlobs = []string{"races/**"}
	_, f = NewEngine().Match("other/file.mkv", rt)
	if f == nil || f.Kind != IgnoredByFilter {
		t.Errorf("expected IgnoredByFilter for glob, got %v", f)
	}
}

func TestEngine_SeasonNotFound(t *testing.T) {
	_, f := NewEngine().Match("Formula.1.2025.Round99.Monaco.Race.mkv", f1Runtime(t))
	if f == nil || f.Kind != SeasonNotFound {
		t.Errorf("expected SeasonNotFound, got %v", f)
	}
}

func TestEngine_MotorsportFuzzyLocation(t *testing.T) {
	// No pattern matches (wrong shape), but round + literal session token
	// in the stem locate the episode.
	res, f := NewEngine().Match("Formula 1 Round 05 Monaco GP Race.mkv", f1Runtime(t))
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if res.Season.Number != 5 || res.Episode.Title != "Race" {
		t.Errorf("fuzzy location failed: season %d episode %q", res.Season.Number, res.Episode.Title)
	}
}

// --- Two-team fixture (NBA) ---

func nbaShow() *models.Show {
	return &models.Show{
		ID:    "nba-2025",
		Title: "NBA",
		Seasons: []models.Season{{
			Key: "rs", Number: 1, Title: "Regular Season", RoundNumber: 1, Year: 2025,
			Episodes: []models.Episode{
				{Number: 5, Title: "Indiana Pacers vs Boston Celtics", OriginallyAvailable: date(2025, 12, 1)},
				{Number: 10, Title: "Indiana Pacers vs Boston Celtics", OriginallyAvailable: date(2025, 12, 21)},
				{Number: 11, Title: "Boston Celtics vs Miami Heat", OriginallyAvailable: date(2025, 12, 22)},
			},
		}},
	}
}

func nbaRuntime() *SportRuntime {
	aliasMap := map[string]string{
		"Pacers":  "Indiana Pacers",
		"Celtics": "Boston Celtics",
		"Heat":    "Miami Heat",
	}
	lookup := metadata.AliasLookup{}
	for a, c := range aliasMap {
		lookup[metadata.Fold(a)] = metadata.Fold(c)
		lookup[metadata.Fold(c)] = metadata.Fold(c)
	}
	return &SportRuntime{
		Config: config.SportConfig{
			ID: "nba_2025", Enabled: true,
			SourceGlobs:  []string{"**"},
			TeamAliasMap: aliasMap,
		},
		Show:    nbaShow(),
		Aliases: lookup,
	}
}

func TestEngine_TwoTeamDateDisambiguation(t *testing.T) {
	res, f := NewEngine().Match("NBA RS 2025 Indiana Pacers vs Boston Celtics 22 12.mkv", nbaRuntime())
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}

	// 2025-12-21 is within two days of 2025-12-22; 2025-12-01 is not. The
	// Boston-Miami game on the exact date must lose on team-set equality.
	if res.Episode.Number != 10 {
		t.Errorf("expected episode 10, got %d (%s)", res.Episode.Number, res.Episode.Title)
	}
	if res.Structured == nil {
		t.Error("structured parse should be recorded on the result")
	}
}

func TestEngine_WrongAwayTeamRejected(t *testing.T) {
	rt := nbaRuntime()
	// Remove both Indiana-Boston games; only Boston-Miami remains near the
	// parsed date and must not be selected despite the date match.
	rt.Show.Seasons[0].Episodes = rt.Show.Seasons[0].Episodes[2:]

	_, f := NewEngine().Match("NBA RS 2025 Indiana Pacers vs Boston Celtics 22 12.mkv", rt)
	if f == nil || f.Kind != EpisodeNotFound {
		t.Errorf("expected EpisodeNotFound, got %v", f)
	}
}

func TestEngine_StructuredTieBreak(t *testing.T) {
	rt := nbaRuntime()
	// Two games with identical teams on the same day (arena double-header):
	// identical totals must break to the earliest episode number.
	rt.Show.Seasons[0].Episodes = []models.Episode{
		{Number: 21, Title: "Indiana Pacers vs Boston Celtics", OriginallyAvailable: date(2025, 12, 22)},
		{Number: 20, Title: "Indiana Pacers vs Boston Celtics", OriginallyAvailable: date(2025, 12, 22)},
	}

	res, f := NewEngine().Match("NBA RS 2025 Indiana Pacers vs Boston Celtics 22 12.mkv", rt)
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if res.Episode.Number != 20 {
		t.Errorf("tie must break to earliest episode number, got %d", res.Episode.Number)
	}
}

// --- Date-selector fixture (NHL) ---

func nhlRuntime(t *testing.T) *SportRuntime {
	t.Helper()
	show := &models.Show{
		ID:    "nhl-2025",
		Title: "NHL",
		Seasons: []models.Season{{
			Key: "rs", Number: 1, Title: "Regular Season", RoundNumber: 1,
			Episodes: []models.Episode{
				{Number: 301, Title: "New Jersey Devils @ Philadelphia Flyers", OriginallyAvailable: date(2025, 11, 22)},
				{Number: 302, Title: "Boston Bruins @ New York Rangers", OriginallyAvailable: date(2025, 11, 22)},
			},
		}},
	}
	aliasMap := map[string]string{
		"NJD": "New Jersey Devils",
		"PHI": "Philadelphia Flyers",
		"BOS": "Boston Bruins",
		"NYR": "New York Rangers",
	}
	lookup := metadata.AliasLookup{}
	for a, c := range aliasMap {
		lookup[metadata.Fold(a)] = metadata.Fold(c)
		lookup[metadata.Fold(c)] = metadata.Fold(c)
	}

	rules := []models.PatternRule{{
		Regex:       `(?P<y>\d{4})-(?P<m>\d{2})-(?P<d>\d{2})_(?P<matchup>.+)\.mkv`,
		Description: "calendar-date",
		Priority:    10,
		SeasonSelector: models.SeasonSelector{
			Mode:          models.SeasonByDateMode,
			ValueTemplate: "{y}-{m:02}-{d:02}",
		},
		EpisodeSelector: models.EpisodeSelector{Group: "matchup"},
	}}
	compiled, err := pattern.Compile(rules, show)
	if err != nil {
		t.Fatal(err)
	}

	return &SportRuntime{
		Config: config.SportConfig{
			ID: "nhl_2025", Enabled: true,
			SourceGlobs:  []string{"**"},
			TeamAliasMap: aliasMap,
		},
		Show:     show,
		Patterns: compiled,
		Aliases:  lookup,
	}
}

func TestEngine_StructuredCalendarDateHockey(t *testing.T) {
	res, f := NewEngine().Match("NHL-2025-11-22_NJD@PHI.mkv", nhlRuntime(t))
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}

	if res.Season.Number != 1 {
		t.Errorf("season = %d", res.Season.Number)
	}
	// Two games aired that night; the alias-normalized team set picks the
	// Devils-Flyers game.
	if res.Episode.Number != 301 {
		t.Errorf("episode = %d (%s)", res.Episode.Number, res.Episode.Title)
	}
}

func TestEngine_NoSignal(t *testing.T) {
	rt := nbaRuntime()
	_, f := NewEngine().Match("holiday highlights reel.mkv", rt)
	if f == nil || f.Kind != NoPatternMatched {
		t.Errorf("expected NoPatternMatched, got %v", f)
	}
}

func TestEngine_PatternPriorityOrderWins(t *testing.T) {
	show := f1Show()
	weak := models.PatternRule{
		Regex:           `Round(?P<round>\d{2})\.\w+\.(?P<session>\w+)\.mkv`,
		Description:     "weak",
		Priority:        100,
		SeasonSelector:  models.SeasonSelector{Mode: models.SeasonByRoundMode, Group: "round"},
		EpisodeSelector: models.EpisodeSelector{Group: "session", TitleFallback: true},
	}
	strong := weak
	strong.Description = "strong"
	strong.Priority = 10

	compiled, err := pattern.Compile([]models.PatternRule{weak, strong}, show)
	if err != nil {
		t.Fatal(err)
	}
	rt := &SportRuntime{
		Config:   config.SportConfig{ID: "f1", Enabled: true, SourceGlobs: []string{"**"}},
		Show:     show,
		Patterns: compiled,
	}

	res, f := NewEngine().Match("Formula.1.2025.Round05.Monaco.Race.mkv", rt)
	if f != nil {
		t.Fatal(f)
	}
	if res.PatternID != "strong" || res.PatternPriority != 10 {
		t.Errorf("lower priority value must win: %+v", res)
	}
}
