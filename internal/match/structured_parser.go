// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package match

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/linesman/internal/metadata"
	"github.com/tomtom215/linesman/internal/models"
)

// Structured-parse heuristics for filenames no pattern recognizes, e.g.
// "NBA RS 2025 Indiana Pacers vs Boston Celtics 22 12" or
// "NHL-2025-11-22_NJD@PHI".

var (
	isoDatePattern  = regexp.MustCompile(`\b(\d{4})[-._ ](\d{1,2})[-._ ](\d{1,2})\b`)
	usDatePattern   = regexp.MustCompile(`\b(\d{1,2})[-._ ](\d{1,2})[-._ ](\d{4})\b`)
	dayMonthPattern = regexp.MustCompile(`\b(\d{1,2})[-._ ](\d{1,2})\b`)
	yearPattern     = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	roundPattern    = regexp.MustCompile(`(?i)\b(?:round|rd)\.?[-._ ]*(\d{1,2})\b`)
	weekPattern     = regexp.MustCompile(`(?i)\b(?:week|wk)\.?[-._ ]*(\d{1,2})\b`)
	teamSepPattern  = regexp.MustCompile(`(?i)(?:\b[vV][sS]\.?\b|@)`)
	tokenSplit      = regexp.MustCompile(`[-._ ]+`)
)

// maxTeamTokens bounds how many tokens one team name may span.
const maxTeamTokens = 4

// ParseStructured extracts {teams, date, round, week, session, year} from a
// filename stem. aliases normalizes team tokens; isSession recognizes
// session tokens in the remaining tail (nil disables session extraction).
// Returns nil when the name carries too little signal.
func ParseStructured(stem string, aliases metadata.AliasLookup, isSession func(string) bool) *models.StructuredName {
	out := &models.StructuredName{}
	// Underscores are word characters to the regexp engine and would
	// defeat the \b anchors around dates and counters.
	rest := strings.ReplaceAll(stem, "_", " ")

	// Round and week prefixes go first so their digits never read as dates.
	if m := roundPattern.FindStringSubmatchIndex(rest); m != nil {
		n, _ := strconv.Atoi(rest[m[2]:m[3]])
		out.Round = &n
		rest = rest[:m[0]] + " " + rest[m[1]:]
	}
	if m := weekPattern.FindStringSubmatchIndex(rest); m != nil {
		n, _ := strconv.Atoi(rest[m[2]:m[3]])
		out.Week = &n
		rest = rest[:m[0]] + " " + rest[m[1]:]
	}

	// A standalone four-digit year decides DD MM vs MM-DD ambiguity.
	if m := yearPattern.FindStringSubmatch(rest); m != nil {
		y, _ := strconv.Atoi(m[1])
		out.Year = &y
	}

	rest = extractDate(rest, out)
	extractTeams(rest, out, aliases, isSession)

	if !out.HasSignal() {
		return nil
	}
	return out
}

// extractDate pulls the best date reading out of the name and returns the
// name with the date text removed. Preference order:
//  1. YYYY-MM-DD (unambiguous)
//  2. MM-DD-YYYY (year attached)
//  3. DD MM with an external standalone year
func extractDate(rest string, out *models.StructuredName) string {
	if m := isoDatePattern.FindStringSubmatchIndex(rest); m != nil {
		y, _ := strconv.Atoi(rest[m[2]:m[3]])
		mo, _ := strconv.Atoi(rest[m[4]:m[5]])
		d, _ := strconv.Atoi(rest[m[6]:m[7]])
		if valid := makeDate(y, mo, d); valid != nil {
			out.Date = valid
			return rest[:m[0]] + " " + rest[m[1]:]
		}
	}

	// With a standalone year elsewhere in the name, a trailing DD MM pair
	// is the preferred reading; MM-DD-YYYY only applies when the year is
	// attached to the pair itself.
	if m := usDatePattern.FindStringSubmatchIndex(rest); m != nil {
		first, _ := strconv.Atoi(rest[m[2]:m[3]])
		second, _ := strconv.Atoi(rest[m[4]:m[5]])
		y, _ := strconv.Atoi(rest[m[6]:m[7]])
		if valid := makeDate(y, first, second); valid != nil {
			out.Date = valid
			return rest[:m[0]] + " " + rest[m[1]:]
		}
		// MM-DD impossible (e.g. 22-12): fall back to DD-MM.
		if valid := makeDate(y, second, first); valid != nil {
			out.Date = valid
			return rest[:m[0]] + " " + rest[m[1]:]
		}
	}

	if out.Year != nil {
		// Trailing DD MM after team names; scan from the end so jersey
		// numbers earlier in the name do not win.
		pairs := dayMonthPattern.FindAllStringSubmatchIndex(rest, -1)
		for i := len(pairs) - 1; i >= 0; i-- {
			m := pairs[i]
			d, _ := strconv.Atoi(rest[m[2]:m[3]])
			mo, _ := strconv.Atoi(rest[m[4]:m[5]])
			if rest[m[2]:m[3]] == strconv.Itoa(*out.Year) || rest[m[4]:m[5]] == strconv.Itoa(*out.Year) {
				continue
			}
			if valid := makeDate(*out.Year, mo, d); valid != nil {
				out.Date = valid
				return rest[:m[0]] + " " + rest[m[1]:]
			}
		}
	}
	return rest
}

// extractTeams splits the name around an explicit vs/@ separator and
// normalizes both sides through the alias lookup. The session token, when
// recognized, comes from the tail after the away team.
func extractTeams(rest string, out *models.StructuredName, aliases metadata.AliasLookup, isSession func(string) bool) {
	sep := teamSepPattern.FindStringIndex(rest)
	if sep == nil {
		// No matchup; the remaining tail may still name a session.
		if isSession != nil {
			for _, tok := range fieldsOf(rest) {
				if isSession(metadata.Fold(tok)) {
					out.Session = metadata.Fold(tok)
					break
				}
			}
		}
		return
	}

	left := fieldsOf(rest[:sep[0]])
	right := fieldsOf(rest[sep[1]:])

	if home := resolveTeam(left, aliases, true); home != "" {
		out.Teams = append(out.Teams, home)
	}
	away, consumed := resolveTeamPrefix(right, aliases)
	if away != "" {
		out.Teams = append(out.Teams, away)
	}

	if isSession != nil {
		for _, tok := range right[consumed:] {
			if isSession(metadata.Fold(tok)) {
				out.Session = metadata.Fold(tok)
				break
			}
		}
	}
}

// resolveTeam normalizes a team from token list. fromEnd scans suffixes
// (the home team sits immediately left of the separator); the longest
// alias-resolvable span wins, falling back to the single nearest token.
func resolveTeam(tokens []string, aliases metadata.AliasLookup, fromEnd bool) string {
	if len(tokens) == 0 {
		return ""
	}
	if !fromEnd {
		team, _ := resolveTeamPrefix(tokens, aliases)
		return team
	}

	limit := maxTeamTokens
	if len(tokens) < limit {
		limit = len(tokens)
	}
	for span := limit; span >= 1; span-- {
		candidate := metadata.Fold(strings.Join(tokens[len(tokens)-span:], " "))
		if resolved, ok := aliases[candidate]; ok {
			return resolved
		}
	}
	return metadata.Fold(tokens[len(tokens)-1])
}

// resolveTeamPrefix normalizes the team spanning the leading tokens and
// returns it with the number of tokens consumed.
func resolveTeamPrefix(tokens []string, aliases metadata.AliasLookup) (string, int) {
	if len(tokens) == 0 {
		return "", 0
	}

	limit := maxTeamTokens
	if len(tokens) < limit {
		limit = len(tokens)
	}
	for span := limit; span >= 1; span-- {
		candidate := metadata.Fold(strings.Join(tokens[:span], " "))
		if resolved, ok := aliases[candidate]; ok {
			return resolved, span
		}
	}
	return metadata.Fold(tokens[0]), 1
}

// fieldsOf splits on filename separators, dropping empties.
func fieldsOf(s string) []string {
	var out []string
	for _, tok := range tokenSplit.Split(s, -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// makeDate validates calendar components and returns the date, or nil when
// the components do not form a real day.
func makeDate(y, m, d int) *time.Time {
	if y < 1900 || y > 2200 || m < 1 || m > 12 || d < 1 || d > 31 {
		return nil
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return nil
	}
	return &t
}
