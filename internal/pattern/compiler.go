// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package pattern compiles declarative matching rules into executable
// matchers: a case-insensitive regex, validated selectors, and a session
// lookup index over the sport's canonical and alias tokens.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/tomtom215/linesman/internal/metadata"
	"github.com/tomtom215/linesman/internal/models"
)

// ErrCompile wraps any rule compilation failure. Fatal for the affected
// sport; other sports continue.
var ErrCompile = errors.New("pattern compile failed")

// CompiledPattern is an immutable executable rule.
type CompiledPattern struct {
	Rule     models.PatternRule
	Regex    *regexp.Regexp
	Sessions *SessionLookupIndex
}

// Match applies the regex to a name and returns the named capture groups,
// or nil when the regex does not match.
func (p *CompiledPattern) Match(name string) map[string]string {
	m := p.Regex.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	groups := make(map[string]string)
	for i, gname := range p.Regex.SubexpNames() {
		if i == 0 || gname == "" {
			continue
		}
		groups[gname] = m[i]
	}
	return groups
}

// Compile translates a rule set into compiled patterns for one sport,
// sorted ascending by priority. For each rule it compiles the regex
// (case-insensitive unless the rule sets its own flags), verifies that the
// capture groups referenced by selectors exist, validates the selector
// against the show's metadata, and builds the session lookup index.
func Compile(rules []models.PatternRule, show *models.Show) ([]CompiledPattern, error) {
	compiled := make([]CompiledPattern, 0, len(rules))
	for i := range rules {
		cp, err := compileRule(&rules[i], show)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, *cp)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Rule.Priority < compiled[j].Rule.Priority
	})
	return compiled, nil
}

func compileRule(rule *models.PatternRule, show *models.Show) (*CompiledPattern, error) {
	expr := rule.Regex
	// Only a leading flag group counts as the rule's own flags; a leading
	// named or non-capturing group does not.
	if ok, _ := regexp.MatchString(`^\(\?[imsU-]+[:)]`, expr); !ok {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: rule %q: %v", ErrCompile, rule.ID(), err)
	}

	groups := make(map[string]struct{})
	for _, g := range re.SubexpNames() {
		if g != "" {
			groups[g] = struct{}{}
		}
	}

	if err := validateSeasonSelector(rule, groups, show); err != nil {
		return nil, err
	}
	if err := validateEpisodeSelector(rule, groups); err != nil {
		return nil, err
	}

	return &CompiledPattern{
		Rule:     *rule,
		Regex:    re,
		Sessions: buildSessionIndex(show, rule.SessionAliases),
	}, nil
}

func validateSeasonSelector(rule *models.PatternRule, groups map[string]struct{}, show *models.Show) error {
	sel := rule.SeasonSelector
	if !sel.Mode.Valid() {
		return fmt.Errorf("%w: rule %q: unknown season selector mode %q", ErrCompile, rule.ID(), sel.Mode)
	}

	switch sel.Mode {
	case models.SeasonByDateMode:
		if sel.ValueTemplate == "" {
			return fmt.Errorf("%w: rule %q: date selector requires value_template", ErrCompile, rule.ID())
		}
		for _, ref := range templateRefs(sel.ValueTemplate) {
			if _, ok := groups[ref]; !ok {
				return fmt.Errorf("%w: rule %q: value_template references unknown group %q", ErrCompile, rule.ID(), ref)
			}
		}
	case models.SeasonByKeyMode:
		if sel.Group == "" && sel.Value == "" {
			return fmt.Errorf("%w: rule %q: key selector requires group or value", ErrCompile, rule.ID())
		}
		fallthrough
	default:
		if sel.Group != "" {
			if _, ok := groups[sel.Group]; !ok {
				return fmt.Errorf("%w: rule %q: season selector references unknown group %q", ErrCompile, rule.ID(), sel.Group)
			}
		} else if sel.Mode != models.SeasonByKeyMode && sel.Value == "" {
			return fmt.Errorf("%w: rule %q: season selector %s requires a capture group", ErrCompile, rule.ID(), sel.Mode)
		}
	}

	if sel.Mode == models.SeasonByWeekMode && show != nil && !hasWeeklyIndices(show) {
		return fmt.Errorf("%w: rule %q: week selector but metadata carries no weekly indices", ErrCompile, rule.ID())
	}
	return nil
}

func validateEpisodeSelector(rule *models.PatternRule, groups map[string]struct{}) error {
	sel := rule.EpisodeSelector
	if sel.Group == "" {
		return fmt.Errorf("%w: rule %q: episode selector requires a capture group", ErrCompile, rule.ID())
	}
	if _, ok := groups[sel.Group]; !ok {
		return fmt.Errorf("%w: rule %q: episode selector references unknown group %q", ErrCompile, rule.ID(), sel.Group)
	}
	return nil
}

// hasWeeklyIndices reports whether any episode carries a weekly index.
func hasWeeklyIndices(show *models.Show) bool {
	for i := range show.Seasons {
		for j := range show.Seasons[i].Episodes {
			if show.Seasons[i].Episodes[j].Week != nil {
				return true
			}
		}
	}
	return false
}

// buildSessionIndex indexes every canonical and alias session token of the
// show plus the rule's injected session aliases. Canonical values are the
// folded episode titles so the engine can resolve a token to the episode
// carrying it.
func buildSessionIndex(show *models.Show, ruleAliases map[string]string) *SessionLookupIndex {
	idx := NewSessionLookupIndex()
	if show != nil {
		for i := range show.Seasons {
			for j := range show.Seasons[i].Episodes {
				ep := &show.Seasons[i].Episodes[j]
				canonical := metadata.Fold(ep.Title)
				for _, tok := range ep.SessionTokens {
					idx.Add(tok, canonical)
				}
			}
		}
	}
	for alias, canonical := range ruleAliases {
		idx.Add(metadata.Fold(alias), metadata.Fold(canonical))
	}
	return idx
}

// templateRefs extracts the group names referenced by a value template,
// e.g. "{y}-{m:02}-{d:02}" yields [y m d].
var templateRefPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(?::[0-9]+)?\}`)

func templateRefs(tmpl string) []string {
	var refs []string
	for _, m := range templateRefPattern.FindAllStringSubmatch(tmpl, -1) {
		refs = append(refs, m[1])
	}
	return refs
}
