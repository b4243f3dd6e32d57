// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package main is the entry point for the Linesman daemon.
//
// Linesman organizes sports video releases into a canonical library layout
// by matching filenames against per-sport episode metadata and
// materializing each match as a hardlink, copy, or symlink. Downstream
// media servers scan the destination tree without metadata guesswork.
//
// # Subcommands
//
//	linesman run               Run passes (default). Watches when configured.
//	linesman validate-config   Load, validate, and compile the configuration.
//	linesman trigger-refresh   Fire the configured library refresh trigger.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): command-line flags, environment variables, config file
// (linesman.yaml), built-in defaults. LINESMAN_CONFIG overrides the config
// file path.
//
// # Exit codes
//
//	0  success
//	1  partial failure (files failed or sports skipped)
//	2  configuration error
//	3  fatal I/O error
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the supervisor tree; in-flight workers finish
// their current file so the processed cache stays consistent, then the
// process exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tomtom215/linesman/internal/api"
	"github.com/tomtom215/linesman/internal/config"
	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/metadata"
	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/notify"
	"github.com/tomtom215/linesman/internal/pattern"
	"github.com/tomtom215/linesman/internal/processed"
	"github.com/tomtom215/linesman/internal/processor"
	"github.com/tomtom215/linesman/internal/supervisor"
	"github.com/tomtom215/linesman/internal/supervisor/services"
	"github.com/tomtom215/linesman/internal/watch"
)

const (
	exitOK             = 0
	exitPartialFailure = 1
	exitConfigError    = 2
	exitFatalIO        = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "run"
	if len(args) > 0 && args[0][0] != '-' {
		cmd = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("linesman", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path (overrides search paths)")
	dryRun := fs.Bool("dry-run", false, "render and report without touching the filesystem")
	reprocess := fs.Bool("reprocess", false, "ignore the processed cache")
	once := fs.Bool("once", false, "run a single pass and exit even when watching is configured")
	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logging.Error().Err(err).Msg("Configuration invalid")
		return exitConfigError
	}

	// Flags are the highest-precedence layer.
	if *dryRun {
		cfg.DryRun = true
	}
	if *reprocess {
		cfg.Reprocess = true
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	switch cmd {
	case "run":
		return runDaemon(cfg, *once)
	case "validate-config":
		return validateConfig(cfg)
	case "trigger-refresh":
		return triggerRefresh(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", cmd)
		return exitConfigError
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// validateConfig checks structure plus pattern compilation (regex and
// selector shape only; metadata-dependent checks run at pass time).
func validateConfig(cfg *config.Config) int {
	failed := false
	for name, rules := range cfg.PatternSets {
		if _, err := pattern.Compile(rules, nil); err != nil {
			logging.Error().Err(err).Str("pattern_set", name).Msg("Pattern set rejected")
			failed = true
		}
	}
	for _, sport := range cfg.ExpandVariants() {
		if _, err := pattern.Compile(sport.FilePatterns, nil); err != nil {
			logging.Error().Err(err).Str("sport", sport.ID).Msg("File patterns rejected")
			failed = true
		}
	}
	if failed {
		return exitConfigError
	}
	logging.Info().Int("sports", len(cfg.ExpandVariants())).Int("pattern_sets", len(cfg.PatternSets)).Msg("Configuration valid")
	return exitOK
}

func triggerRefresh(cfg *config.Config) int {
	rt := cfg.PostRun.RefreshTrigger
	if rt.URL == "" {
		logging.Error().Msg("No refresh trigger configured")
		return exitConfigError
	}
	trig := notify.NewHTTPRefreshTrigger(rt.URL, rt.Token, rt.Section)
	if err := trig.Trigger(context.Background(), models.NewPassSummary("manual", false)); err != nil {
		logging.Error().Err(err).Msg("Refresh trigger failed")
		return exitFatalIO
	}
	return exitOK
}

func runDaemon(cfg *config.Config, once bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := metadata.NewStore(
		filepath.Join(cfg.CacheDir, "metadata"),
		cfg.Metadata.TTL,
		metadata.NewHTTPProvider(metadata.HTTPProviderConfig{
			BaseURL: cfg.Metadata.URL,
			APIKey:  cfg.Metadata.APIKey,
			Timeout: cfg.Metadata.Timeout,
			Retry: metadata.RetryPolicy{
				MaxAttempts: cfg.Metadata.MaxAttempts,
				BaseBackoff: cfg.Metadata.BaseBackoff,
			},
			RateLimit: cfg.Metadata.RateLimit,
		}),
	)
	if err != nil {
		logging.Error().Err(err).Msg("Metadata store unavailable")
		return exitFatalIO
	}

	cache, err := processed.Open(filepath.Join(cfg.CacheDir, "processed.db"))
	if err != nil {
		logging.Error().Err(err).Msg("Processed cache unavailable")
		return exitFatalIO
	}
	defer cache.Close()

	proc := processor.New(cfg, store, cache, buildDispatcher(cfg), buildRefresh(cfg))

	if once || (!cfg.Watch.Enabled && !cfg.Server.Enabled) {
		summary, err := proc.RunPass(ctx, "manual")
		if err != nil {
			logging.Error().Err(err).Msg("Pass failed")
			return exitFatalIO
		}
		return exitCodeFor(summary)
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Watcher signals and manual API requests merge onto one coalescing
	// channel feeding the processor loop.
	signals := make(chan watch.Trigger, 1)
	requestPass := func() {
		select {
		case signals <- watch.Trigger("manual"):
		default:
		}
	}

	if cfg.Watch.Enabled {
		paths := cfg.Watch.Paths
		if len(paths) == 0 {
			paths = []string{cfg.SourceDir}
		}
		watcher, err := watch.New(watch.Config{
			Paths:             paths,
			Include:           cfg.Watch.Include,
			Ignore:            cfg.Watch.Ignore,
			Debounce:          secondsToDuration(cfg.Watch.DebounceSeconds),
			ReconcileInterval: cfg.Watch.ReconcileInterval,
		})
		if err != nil {
			logging.Error().Err(err).Msg("Watcher unavailable")
			return exitFatalIO
		}
		tree.AddPipelineService(services.NewWatcherService(watcher))
		go forwardSignals(ctx, watcher.Signals(), signals)
	}

	tree.AddPipelineService(services.NewProcessorService(proc, signals))

	if cfg.Server.Enabled {
		tree.AddAPIService(api.NewServer(cfg.Server.Host, cfg.Server.Port, proc, requestPass))
	}

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor exited")
		return exitFatalIO
	}

	if summary := proc.LastSummary(); summary != nil {
		return exitCodeFor(summary)
	}
	return exitOK
}

// forwardSignals pipes watcher triggers onto the merged channel without
// blocking; the capacity-one channel coalesces.
func forwardSignals(ctx context.Context, from <-chan watch.Trigger, to chan<- watch.Trigger) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-from:
			if !ok {
				return
			}
			select {
			case to <- t:
			default:
			}
		}
	}
}

func buildDispatcher(cfg *config.Config) *notify.Dispatcher {
	sinks := []notify.Sink{notify.LogSink{}}
	for _, n := range cfg.PostRun.Notifications {
		if n.Type == "webhook" && n.URL != "" {
			sinks = append(sinks, notify.NewWebhookSink(n.URL))
		}
	}
	return notify.NewDispatcher(sinks...)
}

func buildRefresh(cfg *config.Config) notify.RefreshTrigger {
	rt := cfg.PostRun.RefreshTrigger
	if rt.URL == "" {
		return nil
	}
	return notify.NewHTTPRefreshTrigger(rt.URL, rt.Token, rt.Section)
}

// exitCodeFor maps a summary onto the documented exit codes: any failed
// file or skipped sport is a partial failure.
func exitCodeFor(summary *models.PassSummary) int {
	if summary.TotalFailed() > 0 {
		return exitPartialFailure
	}
	for _, s := range summary.Sports {
		if s.LoadError != "" {
			return exitPartialFailure
		}
	}
	return exitOK
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
