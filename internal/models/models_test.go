// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package models

import (
	"testing"
	"time"
)

func sampleShow() *Show {
	d := time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC)
	return &Show{
		ID: "formula1-2025",
		Seasons: []Season{
			{Key: "s4", Number: 4, RoundNumber: 7},
			{Key: "s5", Number: 5, RoundNumber: 5, Episodes: []Episode{
				{Number: 6, Title: "Race", OriginallyAvailable: &d},
			}},
		},
	}
}

func TestShowLookups(t *testing.T) {
	show := sampleShow()

	if s := show.SeasonByNumber(5); s == nil || s.Key != "s5" {
		t.Errorf("SeasonByNumber(5) = %+v", s)
	}
	if s := show.SeasonByRound(7); s == nil || s.Key != "s4" {
		t.Errorf("SeasonByRound(7) = %+v", s)
	}
	if s := show.SeasonByKey("s5"); s == nil || s.Number != 5 {
		t.Errorf("SeasonByKey(s5) = %+v", s)
	}
	if s := show.SeasonByNumber(99); s != nil {
		t.Errorf("expected nil for unknown season, got %+v", s)
	}
}

func TestSeasonEpisodeLookups(t *testing.T) {
	season := sampleShow().SeasonByNumber(5)

	if ep := season.EpisodeByNumber(6); ep == nil || ep.Title != "Race" {
		t.Errorf("EpisodeByNumber(6) = %+v", ep)
	}
	if ep := season.EpisodeByNumber(1); ep != nil {
		t.Errorf("expected nil, got %+v", ep)
	}

	day := time.Date(2025, 5, 25, 18, 30, 0, 0, time.UTC) // same calendar day
	if ep := season.EpisodeOnDate(day); ep == nil || ep.Number != 6 {
		t.Errorf("EpisodeOnDate = %+v", ep)
	}
	if ep := season.EpisodeOnDate(day.AddDate(0, 0, 1)); ep != nil {
		t.Errorf("expected nil for next day, got %+v", ep)
	}
}

func TestLinkModeValid(t *testing.T) {
	for _, m := range []LinkMode{LinkModeHardlink, LinkModeCopy, LinkModeSymlink} {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if LinkMode("move").Valid() {
		t.Error("move is not a link mode")
	}
}

func TestSeasonSelectorModeValid(t *testing.T) {
	for _, m := range []SeasonSelectorMode{
		SeasonByRoundMode, SeasonByKeyMode, SeasonByTitleMode,
		SeasonSequentialMode, SeasonByWeekMode, SeasonByDateMode,
	} {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if SeasonSelectorMode("era").Valid() {
		t.Error("era is not a selector mode")
	}
}

func TestPatternRuleID(t *testing.T) {
	r := &PatternRule{Regex: `R(?P<round>\d+)`, Description: "round"}
	if r.ID() != "round" {
		t.Errorf("ID() = %q", r.ID())
	}
	r.Description = ""
	if r.ID() != r.Regex {
		t.Errorf("ID() should fall back to the regex, got %q", r.ID())
	}
}

func TestStructuredNameHasSignal(t *testing.T) {
	var nilName *StructuredName
	if nilName.HasSignal() {
		t.Error("nil has no signal")
	}
	year := 2025
	if (&StructuredName{Year: &year}).HasSignal() {
		t.Error("a bare year is not enough signal")
	}
	round := 5
	if !(&StructuredName{Round: &round}).HasSignal() {
		t.Error("a round is signal")
	}
	if !(&StructuredName{Teams: []string{"a"}}).HasSignal() {
		t.Error("teams are signal")
	}
}

func TestPassSummaryCounters(t *testing.T) {
	s := NewPassSummary("p1", true)
	if !s.DryRun || s.PassID != "p1" {
		t.Errorf("NewPassSummary = %+v", s)
	}

	s.AddSkip("already_ok")
	s.AddSkip("already_ok")
	s.AddFailure("EpisodeNotFound")

	if s.TotalSkipped() != 2 || s.TotalFailed() != 1 {
		t.Errorf("totals = %d skipped, %d failed", s.TotalSkipped(), s.TotalFailed())
	}
	if s.Skipped["already_ok"] != 2 {
		t.Errorf("reason-coded skip = %v", s.Skipped)
	}
}
