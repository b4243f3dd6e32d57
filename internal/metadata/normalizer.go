// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package metadata

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/tomtom215/linesman/internal/models"
)

// AliasLookup is the case-folded mapping from alias to canonical entity
// name used by structured matching.
type AliasLookup map[string]string

// Canonical resolves a token to its canonical form, or returns the folded
// token unchanged when no alias is registered.
func (a AliasLookup) Canonical(token string) string {
	folded := Fold(token)
	if canonical, ok := a[folded]; ok {
		return canonical
	}
	return folded
}

// Fold lowercases and trims a token for alias comparison.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize converts a raw metadata document into the canonical model and
// derives the per-sport alias lookup. teamAliases (from sport config) merge
// over the aliases the metadata supplies.
//
// Post-conditions: every season number >= 0; episode numbers unique within
// a season; session tokens case-folded with no empty strings. Normalizing
// an already-normalized document is a fixed point.
func Normalize(raw *models.RawMetadata, teamAliases map[string]string) (*models.Show, AliasLookup, error) {
	if raw == nil || raw.Show.ID == "" {
		return nil, nil, fmt.Errorf("%w: missing show id", ErrNormalization)
	}

	show := &models.Show{
		ID:           raw.Show.ID,
		Title:        TitleCase(raw.Show.Title),
		DisplayTitle: raw.Show.Title,
		Aliases:      foldUnique(raw.Show.Aliases),
	}

	lookup := make(AliasLookup)
	for alias, canonical := range teamAliases {
		lookup[Fold(alias)] = Fold(canonical)
		// Canonical names resolve to themselves.
		lookup[Fold(canonical)] = Fold(canonical)
	}

	for _, rs := range raw.Seasons {
		if rs.Number < 0 {
			return nil, nil, fmt.Errorf("%w: season %q has negative number %d", ErrNormalization, rs.Key, rs.Number)
		}

		season := models.Season{
			Key:         rs.Key,
			Number:      rs.Number,
			Title:       TitleCase(rs.Title),
			RoundNumber: rs.Number,
			Aliases:     foldUnique(rs.Aliases),
		}
		if rs.Round != nil {
			season.RoundNumber = *rs.Round
		}
		if rs.Year != nil {
			season.Year = *rs.Year
		}

		seen := make(map[int]struct{}, len(rs.Episodes))
		for _, re := range rs.Episodes {
			if _, dup := seen[re.Number]; dup {
				return nil, nil, fmt.Errorf("%w: season %q has duplicate episode %d", ErrNormalization, rs.Key, re.Number)
			}
			seen[re.Number] = struct{}{}

			ep := models.Episode{
				Number:        re.Number,
				DisplayNumber: re.DisplayNumber,
				Title:         TitleCase(re.Title),
				Summary:       re.Summary,
				Week:          re.Week,
				Aliases:       foldUnique(re.Aliases),
			}
			if ep.DisplayNumber == "" {
				ep.DisplayNumber = fmt.Sprintf("%d", re.Number)
			}
			if re.OriginallyAvailable != "" {
				t, err := time.Parse("2006-01-02", re.OriginallyAvailable)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: episode %d date %q: %v", ErrNormalization, re.Number, re.OriginallyAvailable, err)
				}
				ep.OriginallyAvailable = &t
			}

			ep.SessionTokens = sessionTokens(ep.Title, ep.Aliases)
			season.Episodes = append(season.Episodes, ep)

			for _, alias := range ep.Aliases {
				lookup[alias] = Fold(ep.Title)
			}
		}

		show.Seasons = append(show.Seasons, season)
	}

	sort.SliceStable(show.Seasons, func(i, j int) bool {
		return show.Seasons[i].Number < show.Seasons[j].Number
	})

	return show, lookup, nil
}

// sessionTokens builds the case-folded union of the episode title and its
// aliases. Pattern-injected session aliases join at compile time.
func sessionTokens(title string, aliases []string) []string {
	set := make(map[string]struct{}, len(aliases)+1)
	if folded := Fold(title); folded != "" {
		set[folded] = struct{}{}
	}
	for _, a := range aliases {
		if a != "" {
			set[a] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// foldUnique case-folds and deduplicates an alias list, dropping empties.
func foldUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		if folded := Fold(s); folded != "" {
			set[folded] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TitleCase title-cases lower-case tokens while leaving tokens that carry
// any upper-case rune untouched, so acronyms like "NTT" or "IndyCar" keep
// their source casing.
func TitleCase(s string) string {
	if s == "" {
		return s
	}
	words := strings.Fields(s)
	for i, w := range words {
		if w == strings.ToLower(w) {
			runes := []rune(w)
			runes[0] = unicode.ToUpper(runes[0])
			words[i] = string(runes)
		}
	}
	return strings.Join(words, " ")
}
