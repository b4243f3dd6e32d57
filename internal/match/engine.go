// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package match

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tomtom215/linesman/internal/config"
	"github.com/tomtom215/linesman/internal/destination"
	"github.com/tomtom215/linesman/internal/metadata"
	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/pattern"
)

// Scoring constants for the structured pass.
const (
	scoreTeamSet      = 0.55
	scoreDateWindow   = 0.40
	scoreSessionExact = 0.20
	scoreSessionFuzzy = 0.10

	// minSelectionScore is the structured-pass acceptance threshold.
	minSelectionScore = 0.60

	// dateWindow is the maximum distance between the parsed date and an
	// episode's air date.
	dateWindow = 48 * time.Hour
)

// Engine selects (season, episode) for release filenames. It holds no
// state; NewEngine returns one.
type Engine struct{}

// NewEngine returns a matching engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Match runs the deterministic selection algorithm for one file.
// relPath is the path relative to the source root; matching itself uses
// the base name while glob filters see the relative path.
func (e *Engine) Match(relPath string, rt *SportRuntime) (*Result, *Failure) {
	if !rt.Config.Enabled {
		return nil, fail(SportDisabled, "%s", rt.Config.ID)
	}
	if f := filterPath(relPath, &rt.Config); f != nil {
		return nil, f
	}

	base := filepath.Base(relPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	// Pattern pass: first fully-matching regex whose selectors both
	// resolve wins; a regex match with unresolved selectors falls through
	// to later patterns, keeping the most specific failure for reporting.
	var deferred *Failure
	for i := range rt.Patterns {
		p := &rt.Patterns[i]
		groups := p.Match(base)
		if groups == nil {
			continue
		}

		season, f := resolveSeason(p, groups, rt.Show)
		if f != nil {
			if deferred == nil {
				deferred = f
			}
			continue
		}
		episode, exact, f := resolveEpisode(p, season, groups)
		if f != nil {
			if deferred == nil {
				deferred = f
			}
			continue
		}

		return &Result{
			Season:          season,
			Episode:         episode,
			PatternID:       p.Rule.ID(),
			PatternPriority: p.Rule.Priority,
			Groups:          groups,
			ExactSession:    exact,
			Overrides:       p.Rule.Overrides,
			Score:           1,
		}, nil
	}

	// Structured pass.
	res, f := e.structuredPass(stem, rt)
	if res != nil {
		return res, nil
	}
	if deferred != nil {
		return nil, deferred
	}
	return nil, f
}

// filterPath applies the sport's glob and extension filters.
func filterPath(relPath string, cfg *config.SportConfig) *Failure {
	if len(cfg.SourceGlobs) > 0 {
		matched := false
		for _, glob := range cfg.SourceGlobs {
			if ok, err := doublestar.Match(glob, relPath); err == nil && ok {
				matched = true
				break
			}
		}
		if !matched {
			return fail(IgnoredByFilter, "no source glob matches %s", relPath)
		}
	}

	if len(cfg.SourceExtensions) > 0 {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
		matched := false
		for _, allowed := range cfg.SourceExtensions {
			if strings.TrimPrefix(strings.ToLower(allowed), ".") == ext {
				matched = true
				break
			}
		}
		if !matched {
			return fail(IgnoredByFilter, "extension %q not configured", ext)
		}
	}
	return nil
}

// resolveSeason applies the rule's season selector to the capture groups.
func resolveSeason(p *pattern.CompiledPattern, groups map[string]string, show *models.Show) (*models.Season, *Failure) {
	sel := p.Rule.SeasonSelector
	value := sel.Value
	if sel.Group != "" {
		value = groups[sel.Group]
	}

	switch sel.Mode {
	case models.SeasonByRoundMode:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fail(SeasonNotFound, "round %q is not numeric", value)
		}
		if s := show.SeasonByRound(n); s != nil {
			return s, nil
		}
		return nil, fail(SeasonNotFound, "no season for round %d", n)

	case models.SeasonByKeyMode:
		if s := show.SeasonByKey(value); s != nil {
			return s, nil
		}
		return nil, fail(SeasonNotFound, "no season with key %q", value)

	case models.SeasonByTitleMode:
		folded := metadata.Fold(value)
		for i := range show.Seasons {
			s := &show.Seasons[i]
			if metadata.Fold(s.Title) == folded {
				return s, nil
			}
			for _, alias := range s.Aliases {
				if alias == folded {
					return s, nil
				}
			}
		}
		return nil, fail(SeasonNotFound, "no season titled %q", value)

	case models.SeasonSequentialMode:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > len(show.Seasons) {
			return nil, fail(SeasonNotFound, "sequential index %q out of range", value)
		}
		// Seasons are sorted by number at normalization; the ordinal
		// counts every season in the normalized model.
		return &show.Seasons[n-1], nil

	case models.SeasonByWeekMode:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fail(SeasonNotFound, "week %q is not numeric", value)
		}
		if s := seasonByWeek(show, n); s != nil {
			return s, nil
		}
		return nil, fail(SeasonNotFound, "no season with week %d", n)

	case models.SeasonByDateMode:
		rendered, err := renderValueTemplate(sel.ValueTemplate, groups)
		if err != nil {
			return nil, fail(SeasonNotFound, "value template: %v", err)
		}
		day, err := time.Parse("2006-01-02", rendered)
		if err != nil {
			return nil, fail(SeasonNotFound, "rendered date %q: %v", rendered, err)
		}
		var found *models.Season
		for i := range show.Seasons {
			if show.Seasons[i].EpisodeOnDate(day) != nil {
				if found != nil {
					return nil, fail(Ambiguous, "date %s appears in seasons %d and %d", rendered, found.Number, show.Seasons[i].Number)
				}
				found = &show.Seasons[i]
			}
		}
		if found == nil {
			return nil, fail(EpisodeNotFound, "no episode airs on %s", rendered)
		}
		return found, nil
	}

	return nil, fail(SeasonNotFound, "unsupported selector mode %q", sel.Mode)
}

// resolveEpisode applies the rule's episode selector within the season.
// Returns the episode and whether it resolved exactly (direct number or
// exact session token, as opposed to fuzzy).
func resolveEpisode(p *pattern.CompiledPattern, season *models.Season, groups map[string]string) (*models.Episode, bool, *Failure) {
	sel := p.Rule.EpisodeSelector
	value := groups[sel.Group]

	if sel.Direct {
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, false, fail(EpisodeNotFound, "episode capture %q is not numeric", value)
		}
		if ep := season.EpisodeByNumber(n); ep != nil {
			return ep, true, nil
		}
		return nil, false, fail(EpisodeNotFound, "no episode %d in season %d", n, season.Number)
	}

	token := metadata.Fold(value)

	// Exact session lookup first.
	if canonical := p.Sessions.GetDirect(token); canonical != "" {
		if ep := episodeBySessionToken(season, canonical); ep != nil {
			return ep, true, nil
		}
	}

	// Fuzzy: candidates share the first character and a close length; the
	// best similarity at or above threshold wins, ties broken by lowest
	// episode number via the sorted candidate order.
	bestSim := 0.0
	var bestEp *models.Episode
	for _, candidate := range p.Sessions.GetCandidates(token) {
		sim := pattern.Similarity(token, candidate)
		if sim < pattern.FuzzyThreshold {
			continue
		}
		ep := episodeBySessionToken(season, p.Sessions.GetDirect(candidate))
		if ep == nil {
			continue
		}
		if sim > bestSim || (sim == bestSim && bestEp != nil && ep.Number < bestEp.Number) {
			bestSim = sim
			bestEp = ep
		}
	}
	if bestEp != nil {
		return bestEp, false, nil
	}

	if sel.TitleFallback {
		for i := range season.Episodes {
			if metadata.Fold(season.Episodes[i].Title) == token {
				return &season.Episodes[i], true, nil
			}
		}
		for i := range season.Episodes {
			if pattern.Similarity(metadata.Fold(season.Episodes[i].Title), token) >= pattern.FuzzyThreshold {
				return &season.Episodes[i], false, nil
			}
		}
	}

	return nil, false, fail(EpisodeNotFound, "no episode for session %q in season %d", value, season.Number)
}

// episodeBySessionToken returns the lowest-numbered episode carrying the
// canonical session token.
func episodeBySessionToken(season *models.Season, canonical string) *models.Episode {
	if canonical == "" {
		return nil
	}
	for i := range season.Episodes {
		ep := &season.Episodes[i]
		if metadata.Fold(ep.Title) == canonical {
			return ep
		}
		for _, tok := range ep.SessionTokens {
			if tok == canonical {
				return ep
			}
		}
	}
	return nil
}

// seasonHasEpisodeNear reports whether any episode airs within the date
// window of the given day.
func seasonHasEpisodeNear(season *models.Season, day time.Time) bool {
	for i := range season.Episodes {
		avail := season.Episodes[i].OriginallyAvailable
		if avail == nil {
			continue
		}
		diff := day.Sub(*avail)
		if diff < 0 {
			diff = -diff
		}
		if diff <= dateWindow {
			return true
		}
	}
	return false
}

// seasonByWeek returns the season containing an episode with the weekly
// index.
func seasonByWeek(show *models.Show, week int) *models.Season {
	for i := range show.Seasons {
		for j := range show.Seasons[i].Episodes {
			if w := show.Seasons[i].Episodes[j].Week; w != nil && *w == week {
				return &show.Seasons[i]
			}
		}
	}
	return nil
}

// structuredPass parses the stem heuristically and scores candidate
// episodes. The season derives from the parse via round, week, then date,
// in that order.
func (e *Engine) structuredPass(stem string, rt *SportRuntime) (*Result, *Failure) {
	parsed := ParseStructured(stem, rt.Aliases, sessionRecognizer(rt))
	if parsed == nil {
		return nil, fail(NoPatternMatched, "no pattern and no structured signal in %q", stem)
	}

	season, f := deriveSeason(parsed, rt.Show)
	if f != nil {
		return nil, f
	}

	best, exact, score := e.scoreSeason(season, parsed, rt)
	if best == nil && parsed.Round != nil {
		// Motorsport fallback: a known round whose location token is not
		// literal. Token similarity against the round's episode titles,
		// preferring exact, then highest similarity, then lowest number.
		best, exact = fuzzyLocate(season, stem)
		score = minSelectionScore
	}
	if best == nil {
		return nil, fail(EpisodeNotFound, "no candidate scored >= %.2f in season %d", minSelectionScore, season.Number)
	}

	return &Result{
		Season:       season,
		Episode:      best,
		ExactSession: exact,
		Structured:   parsed,
		Score:        score,
	}, nil
}

// sessionRecognizer builds the tail-session predicate over every compiled
// pattern's session index.
func sessionRecognizer(rt *SportRuntime) func(string) bool {
	if len(rt.Patterns) == 0 {
		return nil
	}
	return func(tok string) bool {
		for i := range rt.Patterns {
			if rt.Patterns[i].Sessions.GetDirect(tok) != "" {
				return true
			}
		}
		return false
	}
}

// deriveSeason picks the season for a structured parse: round, then week,
// then date. A sport with a single season falls back to it.
func deriveSeason(parsed *models.StructuredName, show *models.Show) (*models.Season, *Failure) {
	if parsed.Round != nil {
		if s := show.SeasonByRound(*parsed.Round); s != nil {
			return s, nil
		}
		return nil, fail(SeasonNotFound, "no season for round %d", *parsed.Round)
	}
	if parsed.Week != nil {
		if s := seasonByWeek(show, *parsed.Week); s != nil {
			return s, nil
		}
		return nil, fail(SeasonNotFound, "no season with week %d", *parsed.Week)
	}
	if parsed.Date != nil {
		var found *models.Season
		for i := range show.Seasons {
			if seasonHasEpisodeNear(&show.Seasons[i], *parsed.Date) {
				if found != nil {
					return nil, fail(Ambiguous, "date near %s appears in multiple seasons", parsed.Date.Format("2006-01-02"))
				}
				found = &show.Seasons[i]
			}
		}
		if found != nil {
			return found, nil
		}
	}
	if len(show.Seasons) == 1 {
		return &show.Seasons[0], nil
	}
	return nil, fail(SeasonNotFound, "structured parse selects no season")
}

// scoreSeason scores every episode in the season and returns the winner at
// or above the selection threshold. Equal totals break to the earliest
// episode by number; episodes are sorted by number first, and the strict >
// comparison keeps the first.
func (e *Engine) scoreSeason(season *models.Season, parsed *models.StructuredName, rt *SportRuntime) (*models.Episode, bool, float64) {
	ordered := make([]*models.Episode, 0, len(season.Episodes))
	for i := range season.Episodes {
		ordered = append(ordered, &season.Episodes[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	twoTeam := rt.Config.TwoTeam() && len(parsed.Teams) == 2

	var best *models.Episode
	bestExact := false
	bestScore := 0.0

	for _, ep := range ordered {
		score := 0.0
		exact := false

		if twoTeam {
			epTeams := episodeTeams(ep, rt.Aliases)
			// The unordered team set must be equal; partial overlap is a
			// reject regardless of other axes.
			if !teamSetsEqual(parsed.Teams, epTeams) {
				continue
			}
			score += scoreTeamSet
		}

		if parsed.Date != nil && ep.OriginallyAvailable != nil {
			diff := parsed.Date.Sub(*ep.OriginallyAvailable)
			if diff < 0 {
				diff = -diff
			}
			if diff > dateWindow {
				continue
			}
			score += scoreDateWindow
		}

		if parsed.Session != "" {
			if containsToken(ep.SessionTokens, parsed.Session) || metadata.Fold(ep.Title) == parsed.Session {
				score += scoreSessionExact
				exact = true
			} else if sessionFuzzyMatches(ep, parsed.Session) {
				score += scoreSessionFuzzy
			}
		}

		if score > bestScore {
			best, bestExact, bestScore = ep, exact, score
		}
	}

	if bestScore < minSelectionScore {
		return nil, false, 0
	}
	return best, bestExact, bestScore
}

// fuzzyLocate matches stem tokens against episode titles for rounds whose
// location spelling drifted. Exact wins, then highest similarity, then
// lowest episode number.
func fuzzyLocate(season *models.Season, stem string) (*models.Episode, bool) {
	tokens := fieldsOf(stem)

	var best *models.Episode
	bestSim := 0.0
	for i := range season.Episodes {
		ep := &season.Episodes[i]
		title := metadata.Fold(ep.Title)
		for _, tok := range tokens {
			folded := metadata.Fold(tok)
			if len(folded) < 3 {
				continue
			}
			sim := pattern.Similarity(folded, title)
			if sim < pattern.FuzzyThreshold {
				continue
			}
			if sim > bestSim || (sim == bestSim && best != nil && ep.Number < best.Number) {
				best, bestSim = ep, sim
			}
		}
	}
	return best, bestSim == 1
}

// episodeTeams extracts the normalized team set from an episode title of
// the form "A vs B" or "A @ B".
func episodeTeams(ep *models.Episode, aliases metadata.AliasLookup) []string {
	sep := teamSepPattern.FindStringIndex(ep.Title)
	if sep == nil {
		return nil
	}
	var teams []string
	if home := resolveTeam(fieldsOf(ep.Title[:sep[0]]), aliases, true); home != "" {
		teams = append(teams, home)
	}
	if away, _ := resolveTeamPrefix(fieldsOf(ep.Title[sep[1]:]), aliases); away != "" {
		teams = append(teams, away)
	}
	return teams
}

// teamSetsEqual compares unordered team sets.
func teamSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

func containsToken(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok {
			return true
		}
	}
	return false
}

func sessionFuzzyMatches(ep *models.Episode, session string) bool {
	for _, tok := range ep.SessionTokens {
		if pattern.Similarity(session, tok) >= pattern.FuzzyThreshold {
			return true
		}
	}
	return false
}

// renderValueTemplate combines capture groups through a declared template,
// e.g. "{y}-{m:02}-{d:02}". A :NN suffix zero-pads numeric values.
func renderValueTemplate(tmpl string, groups map[string]string) (string, error) {
	return destination.RenderTemplate(tmpl, func(key string) (string, bool) {
		v, ok := groups[key]
		return v, ok
	})
}
