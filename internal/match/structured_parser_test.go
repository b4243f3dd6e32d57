// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package match

import (
	"testing"
	"time"

	"github.com/tomtom215/linesman/internal/metadata"
)

func nbaAliases() metadata.AliasLookup {
	return metadata.AliasLookup{
		"indiana pacers": "indiana pacers",
		"pacers":         "indiana pacers",
		"ind":            "indiana pacers",
		"boston celtics": "boston celtics",
		"celtics":        "boston celtics",
		"bos":            "boston celtics",
	}
}

func nhlAliases() metadata.AliasLookup {
	return metadata.AliasLookup{
		"njd":                  "new jersey devils",
		"new jersey devils":    "new jersey devils",
		"phi":                  "philadelphia flyers",
		"philadelphia flyers":  "philadelphia flyers",
	}
}

func TestParseStructured_TeamsAndTrailingDayMonth(t *testing.T) {
	got := ParseStructured("NBA RS 2025 Indiana Pacers vs Boston Celtics 22 12", nbaAliases(), nil)
	if got == nil {
		t.Fatal("expected a parse")
	}

	if len(got.Teams) != 2 || got.Teams[0] != "indiana pacers" || got.Teams[1] != "boston celtics" {
		t.Errorf("teams = %v", got.Teams)
	}
	if got.Year == nil || *got.Year != 2025 {
		t.Errorf("year = %v", got.Year)
	}
	if got.Date == nil {
		t.Fatal("expected a date from trailing DD MM + external year")
	}
	want := time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)
	if !got.Date.Equal(want) {
		t.Errorf("date = %v, want %v", got.Date, want)
	}
}

func TestParseStructured_ISODateWithAbbreviatedTeams(t *testing.T) {
	got := ParseStructured("NHL-2025-11-22_NJD@PHI", nhlAliases(), nil)
	if got == nil {
		t.Fatal("expected a parse")
	}

	want := time.Date(2025, 11, 22, 0, 0, 0, 0, time.UTC)
	if got.Date == nil || !got.Date.Equal(want) {
		t.Errorf("date = %v, want %v", got.Date, want)
	}
	if len(got.Teams) != 2 || got.Teams[0] != "new jersey devils" || got.Teams[1] != "philadelphia flyers" {
		t.Errorf("teams = %v", got.Teams)
	}
}

func TestParseStructured_USDate(t *testing.T) {
	got := ParseStructured("NFL 12-25-2025 Chiefs vs Raiders", metadata.AliasLookup{
		"chiefs": "kansas city chiefs", "raiders": "las vegas raiders",
	}, nil)
	if got == nil {
		t.Fatal("expected a parse")
	}
	want := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	if got.Date == nil || !got.Date.Equal(want) {
		t.Errorf("date = %v, want %v", got.Date, want)
	}
}

func TestParseStructured_ImpossibleMonthFallsBackToDayMonth(t *testing.T) {
	// 22 cannot be a month, so 22-12-2025 reads day-month-year.
	got := ParseStructured("NBA 22-12-2025 Pacers vs Celtics", nbaAliases(), nil)
	if got == nil {
		t.Fatal("expected a parse")
	}
	want := time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)
	if got.Date == nil || !got.Date.Equal(want) {
		t.Errorf("date = %v, want %v", got.Date, want)
	}
}

func TestParseStructured_RoundAndWeek(t *testing.T) {
	got := ParseStructured("Supercross Round 12 Daytona", nil, nil)
	if got == nil || got.Round == nil || *got.Round != 12 {
		t.Fatalf("round parse failed: %+v", got)
	}

	got = ParseStructured("NFL Wk 7 Chiefs at Broncos", nil, nil)
	if got == nil || got.Week == nil || *got.Week != 7 {
		t.Fatalf("week parse failed: %+v", got)
	}

	got = ParseStructured("MotoGP Rd.05 Le Mans", nil, nil)
	if got == nil || got.Round == nil || *got.Round != 5 {
		t.Fatalf("rd parse failed: %+v", got)
	}
}

func TestParseStructured_SessionFromTail(t *testing.T) {
	isSession := func(tok string) bool { return tok == "race" || tok == "qualifying" }

	got := ParseStructured("F1 Round 05 Monaco Race", nil, isSession)
	if got == nil {
		t.Fatal("expected a parse")
	}
	if got.Session != "race" {
		t.Errorf("session = %q", got.Session)
	}

	got = ParseStructured("NHL 2025 NJD vs PHI Qualifying", nhlAliases(), isSession)
	if got == nil || got.Session != "qualifying" {
		t.Fatalf("tail session after teams not recognized: %+v", got)
	}
}

func TestParseStructured_NoSignal(t *testing.T) {
	if got := ParseStructured("totally random clip", nil, nil); got != nil {
		t.Errorf("expected nil for signal-free name, got %+v", got)
	}
}

func TestParseStructured_SeparatorVariants(t *testing.T) {
	for _, name := range []string{
		"NBA.RS.2025.Indiana.Pacers.vs.Boston.Celtics.22.12",
		"NBA_RS_2025_Indiana_Pacers_VS_Boston_Celtics_22_12",
	} {
		got := ParseStructured(name, nbaAliases(), nil)
		if got == nil || len(got.Teams) != 2 {
			t.Errorf("parse of %q failed: %+v", name, got)
		}
	}
}
