// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"linesman.yaml",
	"linesman.yml",
	"/etc/linesman/config.yaml",
	"/etc/linesman/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config
// file path.
const ConfigPathEnvVar = "LINESMAN_CONFIG"

// Load loads configuration with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if exists)
//  3. Environment variables: override any setting
//
// Precedence: ENV > File > Defaults. The loaded config is validated before
// it is returned.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom loads configuration from an explicit file path (empty path skips
// the file layer).
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// LINESMAN_SOURCE_DIR -> source_dir, LINESMAN_WATCH_DEBOUNCE_SECONDS ->
	// watch.debounce_seconds, and so on via the transform map.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when they arrive as env strings.
var sliceConfigPaths = []string{
	"watch.paths",
	"watch.include",
	"watch.ignore",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config
// paths. Only mapped variables are honored so random environment variables
// never pollute the config.
//
// Examples:
//   - LINESMAN_SOURCE_DIR -> source_dir
//   - LINESMAN_LINK_MODE -> link_mode
//   - LINESMAN_METADATA_URL -> metadata.url
//   - LINESMAN_WATCH_ENABLED -> watch.enabled
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"linesman_source_dir":       "source_dir",
		"linesman_destination_dir":  "destination_dir",
		"linesman_cache_dir":        "cache_dir",
		"linesman_dry_run":          "dry_run",
		"linesman_skip_existing":    "skip_existing",
		"linesman_reprocess":        "reprocess",
		"linesman_link_mode":        "link_mode",
		"linesman_cross_device":     "fallback_on_cross_device",
		"linesman_min_file_size":    "min_file_size",
		"linesman_workers":          "workers",
		"linesman_trace_enabled":    "trace_enabled",

		// Metadata backend
		"linesman_metadata_url":          "metadata.url",
		"linesman_metadata_api_key":      "metadata.api_key",
		"linesman_metadata_ttl":          "metadata.ttl",
		"linesman_metadata_timeout":      "metadata.timeout",
		"linesman_metadata_max_attempts": "metadata.max_attempts",
		"linesman_metadata_base_backoff": "metadata.base_backoff",
		"linesman_metadata_rate_limit":   "metadata.rate_limit",

		// Watcher
		"linesman_watch_enabled":            "watch.enabled",
		"linesman_watch_paths":              "watch.paths",
		"linesman_watch_include":            "watch.include",
		"linesman_watch_ignore":             "watch.ignore",
		"linesman_watch_debounce_seconds":   "watch.debounce_seconds",
		"linesman_watch_reconcile_interval": "watch.reconcile_interval",

		// HTTP server
		"linesman_server_enabled": "server.enabled",
		"linesman_http_host":      "server.host",
		"linesman_http_port":      "server.port",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Post-run
		"linesman_refresh_url":     "post_run.refresh_trigger.url",
		"linesman_refresh_token":   "post_run.refresh_trigger.token",
		"linesman_refresh_section": "post_run.refresh_trigger.section",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped.
	return ""
}
