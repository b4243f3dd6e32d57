// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package processor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/linesman/internal/destination"
	"github.com/tomtom215/linesman/internal/fingerprint"
	"github.com/tomtom215/linesman/internal/linker"
	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/match"
	"github.com/tomtom215/linesman/internal/metrics"
	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/notify"
)

// RunPass executes one full pass. trigger names what started it
// ("startup", "event", "reconcile", "manual") for metrics and logs.
// Cancellation lets in-flight workers finish their current file so the
// processed cache stays consistent.
func (p *Processor) RunPass(ctx context.Context, trigger string) (*models.PassSummary, error) {
	passID := logging.GeneratePassID()
	ctx = logging.ContextWithPassID(ctx, passID)
	summary := models.NewPassSummary(passID, p.cfg.DryRun)
	started := time.Now()

	metrics.PassesTotal.WithLabelValues(trigger).Inc()
	logging.Ctx(ctx).Info().Str("trigger", trigger).Bool("dry_run", p.cfg.DryRun).Msg("Pass started")

	// Stage 1: discover.
	files, err := p.discover(ctx)
	if err != nil {
		return summary, err
	}
	summary.Discovered = len(files)
	metrics.FilesDiscovered.Add(float64(len(files)))

	// Stage 2: load metadata concurrently.
	runtimes := p.loadRuntimes(ctx, summary)

	// Stage 3: match and act with a bounded worker pool. Each worker owns
	// a file through match, build, and link; reports land at the file's
	// discovery index so output order is stable.
	reports := make([]*models.FileReport, len(files))
	batch := p.cache.NewBatch()
	var batchMu sync.Mutex

	destSeen := make(map[string]int) // destination -> discovery index
	var destMu sync.Mutex

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.workerCount(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				reports[idx] = p.processFile(ctx, files[idx], runtimes, destSeen, &destMu, batch, &batchMu)
			}
		}()
	}

dispatch:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	// Stage 4: post-run.
	p.finishPass(ctx, summary, reports, batch)

	summary.FinishedAt = time.Now().UTC()
	metrics.PassDuration.Observe(time.Since(started).Seconds())
	p.setLastSummary(summary)

	logging.Ctx(ctx).Info().
		Int("discovered", summary.Discovered).
		Int("linked", summary.Linked).
		Int("skipped", summary.TotalSkipped()).
		Int("failed", summary.TotalFailed()).
		Dur("elapsed", time.Since(started)).
		Msg("Pass finished")

	if err := ctx.Err(); err != nil {
		// Cancellation is not a failure condition.
		return summary, nil
	}
	return summary, nil
}

// discover walks the source root and returns relative paths in stable
// (lexicographic) order, applying the sample-skip and size rules.
// Cancellation is checked between directory entries.
func (p *Processor) discover(ctx context.Context) ([]string, error) {
	var files []string
	root := p.cfg.SourceDir

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fs.SkipAll
		}
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("Discovery error, skipping subtree")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if isSample(rel) {
			return nil
		}
		if p.cfg.MinFileSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() < p.cfg.MinFileSize {
				return nil
			}
		}
		files = append(files, rel)
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		if os.IsNotExist(err) {
			// An empty or missing source tree is zero actions, not an error.
			return nil, nil
		}
		return nil, err
	}
	// WalkDir visits entries in lexical order per directory; the collected
	// slice is already deterministic.
	return files, nil
}

// isSample reports whether the path carries a sample token.
func isSample(rel string) bool {
	lower := strings.ToLower(rel)
	for _, tok := range tokenize(lower) {
		if tok == "sample" {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '.', '-', '_', ' ', '/', '\\':
			return true
		}
		return false
	})
}

// processFile matches one file against every runtime in order and acts on
// the first success. Sports whose filters reject the file are not charged
// a failure.
func (p *Processor) processFile(ctx context.Context, rel string, runtimes []*match.SportRuntime, destSeen map[string]int, destMu *sync.Mutex, batch batchPutter, batchMu *sync.Mutex) *models.FileReport {
	started := time.Now()
	report := &models.FileReport{Source: rel}

	var firstFailure *match.Failure
	var firstFailureSport string
	for _, rt := range runtimes {
		res, f := p.engine.Match(rel, rt)
		if res != nil {
			report.Sport = rt.Config.ID
			report.PatternID = res.PatternID
			p.act(ctx, rel, rt, res, report, destSeen, destMu, batch, batchMu)
			report.Elapsed = time.Since(started)
			metrics.MatchOutcomes.WithLabelValues(rt.Config.ID, string(report.Outcome)).Inc()
			return report
		}
		switch f.Kind {
		case match.IgnoredByFilter, match.SportDisabled:
			// Not this sport's file.
		case match.NoPatternMatched:
			if rt.Config.AllowUnmatched {
				// Downgraded to a skip for this sport.
				if firstFailure == nil {
					firstFailure = f
					firstFailureSport = rt.Config.ID
				}
				continue
			}
			fallthrough
		default:
			if firstFailure == nil {
				firstFailure = f
				firstFailureSport = rt.Config.ID
			}
		}
	}

	report.Elapsed = time.Since(started)
	if firstFailure == nil {
		report.Outcome = models.OutcomeIgnored
		report.Reason = string(match.IgnoredByFilter)
		return report
	}

	report.Sport = firstFailureSport
	report.Reason = string(firstFailure.Kind)
	if firstFailure.Kind == match.NoPatternMatched && p.allowUnmatched(firstFailureSport) {
		report.Outcome = models.OutcomeUnmatched
	} else {
		report.Outcome = models.OutcomeFailed
		report.Reason = firstFailure.Error()
	}
	metrics.MatchOutcomes.WithLabelValues(firstFailureSport, string(firstFailure.Kind)).Inc()
	return report
}

func (p *Processor) allowUnmatched(sportID string) bool {
	for _, s := range p.cfg.ExpandVariants() {
		if s.ID == sportID {
			return s.AllowUnmatched
		}
	}
	return false
}

// batchPutter is the slice of the processed batch the workers use.
type batchPutter interface {
	Put(rec *models.ProcessedRecord) error
	Delete(sourceFingerprint string) error
}

// act builds the destination and performs (or, in dry-run, records) the
// link for one successful match.
func (p *Processor) act(ctx context.Context, rel string, rt *match.SportRuntime, res *match.Result, report *models.FileReport, destSeen map[string]int, destMu *sync.Mutex, batch batchPutter, batchMu *sync.Mutex) {
	sourcePath := filepath.Join(p.cfg.SourceDir, rel)

	dest, err := p.builder.Build(p.templatesFor(res), p.buildContext(rt, res, rel))
	if err != nil {
		report.Outcome = models.OutcomeFailed
		report.Reason = reasonForBuildErr(err)
		summaryTrace(ctx, p, report, res)
		return
	}
	report.Destination = dest

	// Intra-pass destination dedup: the first claimant (by discovery
	// order via map insertion) wins; later files with the same rendered
	// destination are duplicates, not conflicts.
	destMu.Lock()
	if _, claimed := destSeen[dest]; claimed {
		destMu.Unlock()
		report.Outcome = models.OutcomeDuplicate
		report.Reason = "destination already claimed this pass"
		summaryTrace(ctx, p, report, res)
		return
	}
	destSeen[dest] = 1
	destMu.Unlock()

	srcFp, err := fingerprint.File(sourcePath)
	if err != nil {
		report.Outcome = models.OutcomeFailed
		report.Reason = linker.ErrSourceVanished.Error()
		summaryTrace(ctx, p, report, res)
		return
	}

	prior, havePrior := p.cache.Get(srcFp)
	if havePrior && !p.cfg.Reprocess && prior.DestinationPath == dest {
		metrics.ProcessedCacheHits.Inc()
		report.Outcome = models.OutcomeAlreadyOK
		report.Reason = "processed record matches"
		summaryTrace(ctx, p, report, res)
		return
	}

	if p.cfg.DryRun {
		report.Outcome = models.OutcomeWouldLink
		summaryTrace(ctx, p, report, res)
		return
	}

	opts := linker.Options{
		Mode:                  models.LinkMode(p.cfg.LinkMode),
		SkipExisting:          p.cfg.SkipExisting,
		FallbackOnCrossDevice: p.cfg.FallbackOnCrossDevice,
		Incoming:              linker.Specificity{PatternPriority: res.PatternPriority, ExactSession: res.ExactSession},
	}
	if havePrior {
		opts.Existing = &linker.Specificity{PatternPriority: prior.PatternPriority}

		// A relocated destination is only honored when the incoming match
		// is strictly more specific (or reprocessing was forced); a weaker
		// pattern never moves an established link.
		if prior.DestinationPath != dest && !p.cfg.Reprocess && !opts.Incoming.Beats(*opts.Existing) {
			report.Outcome = models.OutcomeSkipped
			report.Reason = "existing link has higher specificity"
			summaryTrace(ctx, p, report, res)
			return
		}
	}

	outcome, err := linker.Link(sourcePath, dest, opts)
	if err != nil {
		report.Outcome = models.OutcomeFailed
		report.Reason = reasonForLinkErr(err)
		metrics.LinkErrors.WithLabelValues(report.Reason).Inc()
		summaryTrace(ctx, p, report, res)
		return
	}

	switch outcome {
	case linker.OutcomeCreated:
		report.Outcome = models.OutcomeLinked
	case linker.OutcomeReplaced:
		report.Outcome = models.OutcomeReplaced
	case linker.OutcomeNoop:
		report.Outcome = models.OutcomeAlreadyOK
	case linker.OutcomeKept:
		report.Outcome = models.OutcomeSkipped
		report.Reason = "existing destination kept"
	}

	// A stronger pattern may move the destination; the old path must not
	// orphan.
	if havePrior && prior.DestinationPath != dest && (report.Outcome == models.OutcomeLinked || report.Outcome == models.OutcomeReplaced) {
		if err := os.Remove(prior.DestinationPath); err != nil && !os.IsNotExist(err) {
			logging.Ctx(ctx).Warn().Err(err).Str("path", prior.DestinationPath).Msg("Could not remove superseded destination")
		}
	}

	if report.Outcome == models.OutcomeLinked || report.Outcome == models.OutcomeReplaced || report.Outcome == models.OutcomeAlreadyOK {
		rec := &models.ProcessedRecord{
			SourceFingerprint: srcFp,
			DestinationPath:   dest,
			LinkMode:          models.LinkMode(p.cfg.LinkMode),
			PatternID:         res.PatternID,
			PatternPriority:   res.PatternPriority,
			CreatedAt:         time.Now().UTC(),
		}
		batchMu.Lock()
		if err := batch.Put(rec); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Could not stage processed record")
		}
		batchMu.Unlock()
	}

	summaryTrace(ctx, p, report, res)
}

// templatesFor applies rule-level destination overrides over the
// configured defaults.
func (p *Processor) templatesFor(res *match.Result) destination.Templates {
	tpl := destination.Templates{
		RootFolder:   p.cfg.Templates.RootFolder,
		SeasonFolder: p.cfg.Templates.SeasonFolder,
		Filename:     p.cfg.Templates.Filename,
	}
	if res.Overrides.RootFolder != "" {
		tpl.RootFolder = res.Overrides.RootFolder
	}
	if res.Overrides.SeasonFolder != "" {
		tpl.SeasonFolder = res.Overrides.SeasonFolder
	}
	if res.Overrides.Filename != "" {
		tpl.Filename = res.Overrides.Filename
	}
	return tpl
}

// buildContext assembles the full template context: the enumerated keys
// plus every regex capture group.
func (p *Processor) buildContext(rt *match.SportRuntime, res *match.Result, rel string) destination.Context {
	base := filepath.Base(rel)
	ext := filepath.Ext(base)

	ctx := destination.Context{
		"sport_id":   rt.Config.ID,
		"sport_name": rt.Show.DisplayTitle,

		"show_title":         rt.Show.Title,
		"show_display_title": rt.Show.DisplayTitle,

		"season_title":  res.Season.Title,
		"season_number": itoa(res.Season.Number),
		"season_round":  itoa(res.Season.RoundNumber),
		"season_year":   itoa(res.Season.Year),

		"episode_title":          res.Episode.Title,
		"episode_number":         itoa(res.Episode.Number),
		"episode_display_number": res.Episode.DisplayNumber,
		"episode_summary":        res.Episode.Summary,

		"source_filename": base,
		"source_stem":     strings.TrimSuffix(base, ext),
		"extension":       ext,
		"suffix":          strings.TrimPrefix(ext, "."),
		"relative_source": rel,
	}

	if res.Episode.OriginallyAvailable != nil {
		ctx["episode_originally_available"] = res.Episode.OriginallyAvailable.Format("2006-01-02")
	} else {
		ctx["episode_originally_available"] = ""
	}

	for k, v := range res.Groups {
		ctx[k] = v
	}
	return ctx
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func reasonForBuildErr(err error) string {
	switch {
	case errors.Is(err, destination.ErrTemplate):
		return "TemplateError"
	case errors.Is(err, destination.ErrNameTooLong):
		return "NameTooLong"
	case errors.Is(err, destination.ErrUnsafePath):
		return "UnsafePath"
	default:
		return err.Error()
	}
}

func reasonForLinkErr(err error) string {
	switch {
	case errors.Is(err, linker.ErrCrossDeviceLink):
		return "CrossDeviceLink"
	case errors.Is(err, linker.ErrDestinationConflict):
		return "DestinationConflict"
	case errors.Is(err, linker.ErrPermissionDenied):
		return "PermissionDenied"
	case errors.Is(err, linker.ErrSourceVanished):
		return "SourceVanished"
	default:
		return err.Error()
	}
}

// finishPass aggregates reports, dispatches notifications, commits the
// processed batch, fires the refresh trigger, and persists traces.
func (p *Processor) finishPass(ctx context.Context, summary *models.PassSummary, reports []*models.FileReport, batch interface{ Commit() error }) {
	newLinks := 0
	for _, r := range reports {
		if r == nil {
			summary.AddSkip(string(models.OutcomeCancelled))
			continue
		}
		summary.Files = append(summary.Files, *r)

		ss := summary.Sports[r.Sport]
		ss.SportID = r.Sport
		switch r.Outcome {
		case models.OutcomeLinked, models.OutcomeReplaced:
			summary.Linked++
			ss.Linked++
			newLinks++
			if p.dispatcher != nil {
				p.dispatcher.Emit(ctx, notify.Event{Type: notify.EventPerFileLinked, PassID: summary.PassID, File: r})
			}
		case models.OutcomeWouldLink:
			summary.Linked++
			ss.Linked++
		case models.OutcomeFailed:
			summary.AddFailure(r.Reason)
			ss.Failed++
		case models.OutcomeUnmatched:
			summary.AddSkip(string(models.OutcomeUnmatched))
			ss.Unmatched++
		default:
			summary.AddSkip(string(r.Outcome))
			ss.Skipped++
		}
		if r.Sport != "" {
			summary.Sports[r.Sport] = ss
		}
	}

	if err := batch.Commit(); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Processed cache commit failed")
		summary.AddFailure("ProcessedCacheCommit")
	}
	metrics.ProcessedCacheSize.Set(float64(p.cache.Count()))

	// At most one refresh per pass, only for real new links.
	if newLinks > 0 && !p.cfg.DryRun && p.refresh != nil {
		if err := p.refresh.Trigger(ctx, summary); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Library refresh trigger failed")
		} else if p.dispatcher != nil {
			p.dispatcher.Emit(ctx, notify.Event{Type: notify.EventRefreshRequested, PassID: summary.PassID, Summary: summary})
		}
	}

	if p.dispatcher != nil {
		p.dispatcher.Emit(ctx, notify.Event{Type: notify.EventPassSummary, PassID: summary.PassID, Summary: summary})
	}
}
