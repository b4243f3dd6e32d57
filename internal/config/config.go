// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package config loads and validates Linesman configuration using Koanf v2
// with layered sources: struct defaults, an optional YAML file, then
// environment variables (highest priority).
package config

import (
	"time"

	"github.com/tomtom215/linesman/internal/models"
)

// Config is the root configuration document.
type Config struct {
	// SourceDir is the root scanned for release files.
	SourceDir string `koanf:"source_dir" validate:"required"`

	// DestinationDir is the root of the organized library.
	DestinationDir string `koanf:"destination_dir" validate:"required"`

	// CacheDir holds the metadata cache, processed DB, and trace artifacts.
	CacheDir string `koanf:"cache_dir" validate:"required"`

	// DryRun renders destinations and reports without touching the filesystem.
	DryRun bool `koanf:"dry_run"`

	// SkipExisting leaves differing destination files in place regardless
	// of pattern specificity.
	SkipExisting bool `koanf:"skip_existing"`

	// Reprocess ignores the processed cache and re-evaluates every source.
	Reprocess bool `koanf:"reprocess"`

	// LinkMode is the filesystem action: hardlink, copy, or symlink.
	LinkMode string `koanf:"link_mode" validate:"required,oneof=hardlink copy symlink"`

	// FallbackOnCrossDevice lets a failed cross-filesystem hardlink fall
	// back to copy instead of surfacing CrossDeviceLink.
	FallbackOnCrossDevice bool `koanf:"fallback_on_cross_device"`

	// MinFileSize skips files below this many bytes during discovery.
	MinFileSize int64 `koanf:"min_file_size" validate:"min=0"`

	// Workers bounds the match/link worker pool. 0 = runtime.NumCPU().
	Workers int `koanf:"workers" validate:"min=0"`

	// TraceEnabled writes per-file JSON trace artifacts under
	// cache_dir/traces/<pass_id>/.
	TraceEnabled bool `koanf:"trace_enabled"`

	Templates TemplatesConfig `koanf:"templates"`
	Metadata  MetadataConfig  `koanf:"metadata"`
	Watch     WatchConfig     `koanf:"watch"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	PostRun   PostRunConfig   `koanf:"post_run"`

	// Sports enumerates the configured content domains.
	Sports []SportConfig `koanf:"sports" validate:"dive"`

	// PatternSets are named, reusable rule lists referenced by sports.
	PatternSets map[string][]models.PatternRule `koanf:"pattern_sets"`
}

// TemplatesConfig holds the default destination templates. A pattern rule
// may override any of them via destination_overrides.
type TemplatesConfig struct {
	RootFolder   string `koanf:"root_folder" validate:"required"`
	SeasonFolder string `koanf:"season_folder" validate:"required"`
	Filename     string `koanf:"filename" validate:"required"`
}

// MetadataConfig configures the metadata backend and cache.
type MetadataConfig struct {
	// URL is the metadata backend base URL. Fetches go to <url>/<show_ref>.
	URL string `koanf:"url" validate:"omitempty,url"`

	// APIKey is sent as a bearer token when non-empty.
	APIKey string `koanf:"api_key"`

	// TTL is how long a cached payload is served without refetching.
	TTL time.Duration `koanf:"ttl" validate:"min=0"`

	// Timeout is the end-to-end deadline for one fetch including retries.
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`

	// MaxAttempts bounds retries within one fetch.
	MaxAttempts int `koanf:"max_attempts" validate:"min=1"`

	// BaseBackoff is the initial retry delay; later delays grow by a factor
	// of 1.5 per attempt with jitter.
	BaseBackoff time.Duration `koanf:"base_backoff" validate:"min=0"`

	// RateLimit caps backend requests per second. 0 = unlimited.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	Enabled bool `koanf:"enabled"`

	// Paths to observe. Defaults to [source_dir] when empty.
	Paths []string `koanf:"paths"`

	// Include globs; when non-empty an event must match one to dispatch.
	Include []string `koanf:"include"`

	// Ignore globs are dropped before dispatch.
	Ignore []string `koanf:"ignore"`

	// DebounceSeconds is the quiet window after the last event before a
	// pass dispatches.
	DebounceSeconds int `koanf:"debounce_seconds" validate:"min=0"`

	// ReconcileInterval forces a full pass even without events.
	ReconcileInterval time.Duration `koanf:"reconcile_interval" validate:"min=0"`
}

// ServerConfig configures the operational HTTP endpoints.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port" validate:"min=0,max=65535"`
}

// LoggingConfig mirrors logging.Config for koanf loading.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SportVariant derives an additional sport from the same base config with a
// different show reference (e.g. one config covering several seasons).
type SportVariant struct {
	Suffix  string `koanf:"suffix" validate:"required"`
	ShowRef string `koanf:"show_ref" validate:"required"`
}

// SportConfig is one configured content domain.
type SportConfig struct {
	ID      string `koanf:"id" validate:"required"`
	Enabled bool   `koanf:"enabled"`

	// ShowRef identifies the show at the metadata backend.
	ShowRef string `koanf:"show_ref" validate:"required"`

	// SourceGlobs restrict which discovered paths belong to this sport.
	SourceGlobs []string `koanf:"source_globs" validate:"min=1"`

	// SourceExtensions restrict file extensions, with or without dots.
	SourceExtensions []string `koanf:"source_extensions"`

	// PatternSets names entries in the top-level pattern_sets map.
	PatternSets []string `koanf:"pattern_sets"`

	// FilePatterns are inline rules evaluated alongside the named sets.
	FilePatterns []models.PatternRule `koanf:"file_patterns"`

	// AllowUnmatched downgrades NoPatternMatched from failure to skip.
	AllowUnmatched bool `koanf:"allow_unmatched"`

	// TeamAliasMap merges over the normalized metadata aliases.
	TeamAliasMap map[string]string `koanf:"team_alias_map"`

	// Variants derive sibling sports from this config.
	Variants []SportVariant `koanf:"variants" validate:"dive"`
}

// TwoTeam reports whether the sport requires exact team-set equality in the
// structured pass. Matchup sports carry team lists; event sports do not.
func (s *SportConfig) TwoTeam() bool {
	return len(s.TeamAliasMap) > 0
}

// RefreshTriggerConfig configures the at-most-once-per-pass library refresh.
type RefreshTriggerConfig struct {
	URL     string `koanf:"url" validate:"omitempty,url"`
	Token   string `koanf:"token"`
	Section string `koanf:"section"`
}

// NotificationConfig configures one notification sink.
type NotificationConfig struct {
	Type string `koanf:"type" validate:"required,oneof=log webhook"`
	URL  string `koanf:"url" validate:"omitempty,url"`
}

// PostRunConfig groups post-pass actions.
type PostRunConfig struct {
	RefreshTrigger RefreshTriggerConfig `koanf:"refresh_trigger"`
	Notifications  []NotificationConfig `koanf:"notifications" validate:"dive"`
}

// defaultConfig returns a Config with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		LinkMode:     string(models.LinkModeHardlink),
		MinFileSize:  10 << 20, // releases below 10MB are almost always samples
		Workers:      0,        // 0 = runtime.NumCPU()
		TraceEnabled: false,
		Templates: TemplatesConfig{
			RootFolder:   "{show_title} {season_year}",
			SeasonFolder: "{season_number:02} {season_title}",
			Filename:     "{show_title} - S{season_number:02}E{episode_number:02} - {episode_title}{extension}",
		},
		Metadata: MetadataConfig{
			TTL:         24 * time.Hour,
			Timeout:     30 * time.Second,
			MaxAttempts: 4,
			BaseBackoff: 500 * time.Millisecond,
			RateLimit:   5,
		},
		Watch: WatchConfig{
			Enabled:           false,
			DebounceSeconds:   5,
			ReconcileInterval: 15 * time.Minute,
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    3861,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// ExpandVariants flattens sport variants into standalone SportConfig values.
// A variant inherits everything from its base except ID and ShowRef.
func (c *Config) ExpandVariants() []SportConfig {
	out := make([]SportConfig, 0, len(c.Sports))
	for _, s := range c.Sports {
		out = append(out, s)
		for _, v := range s.Variants {
			derived := s
			derived.ID = s.ID + "_" + v.Suffix
			derived.ShowRef = v.ShowRef
			derived.Variants = nil
			out = append(out, derived)
		}
	}
	return out
}
