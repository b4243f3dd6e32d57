// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package processor orchestrates a full pass: discover source files, load
// metadata concurrently, dispatch files to the matching engine, build
// destinations, link, update caches, and emit post-run events.
package processor

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/tomtom215/linesman/internal/config"
	"github.com/tomtom215/linesman/internal/destination"
	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/match"
	"github.com/tomtom215/linesman/internal/metadata"
	"github.com/tomtom215/linesman/internal/metrics"
	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/notify"
	"github.com/tomtom215/linesman/internal/pattern"
	"github.com/tomtom215/linesman/internal/processed"

	"golang.org/x/sync/errgroup"
)

// Processor owns the per-pass pipeline. Construct with New; all external
// collaborators are injected and live for the processor's lifetime.
type Processor struct {
	cfg        *config.Config
	store      *metadata.Store
	engine     *match.Engine
	builder    *destination.Builder
	cache      *processed.Cache
	dispatcher *notify.Dispatcher
	refresh    notify.RefreshTrigger // nil when unconfigured

	// runtimes persist across passes and rebuild when the sport's
	// metadata fingerprint changes. Only the processor mutates them,
	// between passes; workers see an immutable snapshot.
	mu       sync.RWMutex
	runtimes map[string]*match.SportRuntime

	lastSummary *models.PassSummary
}

// New wires a processor.
func New(cfg *config.Config, store *metadata.Store, cache *processed.Cache, dispatcher *notify.Dispatcher, refresh notify.RefreshTrigger) *Processor {
	return &Processor{
		cfg:        cfg,
		store:      store,
		engine:     match.NewEngine(),
		builder:    destination.NewBuilder(cfg.DestinationDir),
		cache:      cache,
		dispatcher: dispatcher,
		refresh:    refresh,
		runtimes:   make(map[string]*match.SportRuntime),
	}
}

// LastSummary returns the most recent pass summary, or nil before the
// first pass completes.
func (p *Processor) LastSummary() *models.PassSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSummary
}

func (p *Processor) setLastSummary(s *models.PassSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSummary = s
}

// workerCount resolves the match/link pool size.
func (p *Processor) workerCount() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return runtime.NumCPU()
}

// loadRuntimes fetches, normalizes, and compiles every enabled sport
// concurrently. A sport whose load fails is skipped for this pass without
// aborting the others; the reason lands in the summary.
func (p *Processor) loadRuntimes(ctx context.Context, summary *models.PassSummary) []*match.SportRuntime {
	sports := p.cfg.ExpandVariants()

	type loaded struct {
		sport   config.SportConfig
		runtime *match.SportRuntime
		stale   bool
		err     error
	}
	results := make([]loaded, len(sports))

	g, gctx := errgroup.WithContext(ctx)
	for i := range sports {
		g.Go(func() error {
			sport := sports[i]
			results[i].sport = sport
			if !sport.Enabled {
				return nil
			}
			rt, stale, err := p.loadRuntime(gctx, &sport)
			results[i].runtime = rt
			results[i].stale = stale
			results[i].err = err
			return nil // per-sport failures never abort the group
		})
	}
	_ = g.Wait()

	var out []*match.SportRuntime
	for _, r := range results {
		if !r.sport.Enabled {
			continue
		}
		ss := summary.Sports[r.sport.ID]
		ss.SportID = r.sport.ID
		if r.err != nil {
			ss.LoadError = r.err.Error()
			summary.Sports[r.sport.ID] = ss
			logging.Ctx(ctx).Error().Err(r.err).Str("sport", r.sport.ID).Msg("Sport skipped for this pass")
			continue
		}
		ss.Stale = r.stale
		summary.Sports[r.sport.ID] = ss
		if r.stale {
			logging.Ctx(ctx).Warn().Str("sport", r.sport.ID).Msg("Stale metadata in use")
		}
		out = append(out, r.runtime)
	}

	// Stable order so destination contention resolves deterministically.
	sort.Slice(out, func(i, j int) bool { return out[i].Config.ID < out[j].Config.ID })
	return out
}

// loadRuntime serves one sport from the metadata store, reusing the
// previous pass's compiled runtime when the payload digest is unchanged.
func (p *Processor) loadRuntime(ctx context.Context, sport *config.SportConfig) (*match.SportRuntime, bool, error) {
	res, err := p.store.Get(ctx, sport.ShowRef)
	if err != nil {
		metrics.MetadataFetches.WithLabelValues(sport.ID, "error").Inc()
		return nil, false, err
	}
	metrics.MetadataFetches.WithLabelValues(sport.ID, "ok").Inc()

	p.mu.RLock()
	prev := p.runtimes[sport.ID]
	p.mu.RUnlock()
	if prev != nil && prev.MetadataFingerprint == res.PayloadDigest {
		prev.Stale = res.Stale
		return prev, res.Stale, nil
	}

	show, aliases, err := metadata.Normalize(res.Raw, sport.TeamAliasMap)
	if err != nil {
		return nil, false, err
	}

	rules := make([]models.PatternRule, 0, len(sport.FilePatterns))
	for _, setName := range sport.PatternSets {
		rules = append(rules, p.cfg.PatternSets[setName]...)
	}
	rules = append(rules, sport.FilePatterns...)

	compiled, err := pattern.Compile(rules, show)
	if err != nil {
		return nil, false, err
	}

	rt := &match.SportRuntime{
		Config:              *sport,
		Show:                show,
		Patterns:            compiled,
		Aliases:             aliases,
		MetadataFingerprint: res.PayloadDigest,
		Stale:               res.Stale,
	}
	p.mu.Lock()
	p.runtimes[sport.ID] = rt
	p.mu.Unlock()
	return rt, res.Stale, nil
}
