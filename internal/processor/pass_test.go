// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/linesman/internal/config"
	"github.com/tomtom215/linesman/internal/match"
	"github.com/tomtom215/linesman/internal/metadata"
	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/notify"
	"github.com/tomtom215/linesman/internal/processed"
)

// stubProvider serves a fixed raw document and can be switched to fail.
type stubProvider struct {
	doc  *models.RawMetadata
	fail error
}

func (s *stubProvider) Fetch(_ context.Context, _ string) (*models.RawMetadata, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.doc, nil
}

func f1Raw() *models.RawMetadata {
	round := 5
	year := 2025
	return &models.RawMetadata{
		Show: models.RawShow{ID: "formula1-2025", Title: "Formula 1"},
		Seasons: []models.RawSeason{{
			Key: "s5", Number: 5, Title: "Monaco Grand Prix", Round: &round, Year: &year,
			Episodes: []models.RawEpisode{
				{Number: 1, Title: "FP1"},
				{Number: 2, Title: "FP2"},
				{Number: 3, Title: "FP3"},
				{Number: 4, Title: "Qualifying"},
				{Number: 5, Title: "Sprint"},
				{Number: 6, Title: "Race"},
			},
		}},
	}
}

type testEnv struct {
	cfg      *config.Config
	proc     *Processor
	provider *stubProvider
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{
		SourceDir:      filepath.Join(base, "src"),
		DestinationDir: filepath.Join(base, "lib"),
		CacheDir:       filepath.Join(base, "cache"),
		LinkMode:       "hardlink",
		Workers:        2,
		Templates: config.TemplatesConfig{
			RootFolder:   "{show_title} {season_year}",
			SeasonFolder: "{season_number:02} {season_title}",
			Filename:     "{show_title} - S{season_number:02}E{episode_number:02} - {episode_title}{extension}",
		},
		Metadata: config.MetadataConfig{TTL: time.Hour},
		Sports: []config.SportConfig{{
			ID: "formula1_2025", Enabled: true, ShowRef: "formula1-2025",
			SourceGlobs:      []string{"**"},
			SourceExtensions: []string{"mkv"},
			PatternSets:      []string{"motorsport"},
		}},
		PatternSets: map[string][]models.PatternRule{
			"motorsport": {{
				Regex:           `Round(?P<round>\d{2})\.\w+\.(?P<session>\w+)\.mkv`,
				Description:     "round-session",
				Priority:        10,
				SeasonSelector:  models.SeasonSelector{Mode: models.SeasonByRoundMode, Group: "round"},
				EpisodeSelector: models.EpisodeSelector{Group: "session"},
			}},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	for _, dir := range []string{cfg.SourceDir, cfg.DestinationDir, cfg.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	provider := &stubProvider{doc: f1Raw()}
	store, err := metadata.NewStore(filepath.Join(cfg.CacheDir, "metadata"), cfg.Metadata.TTL, provider)
	if err != nil {
		t.Fatal(err)
	}
	cache, err := processed.Open(filepath.Join(cfg.CacheDir, "processed.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cache.Close() })

	return &testEnv{
		cfg:      cfg,
		proc:     New(cfg, store, cache, notify.NewDispatcher(notify.LogSink{}), nil),
		provider: provider,
	}
}

func (e *testEnv) addSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.cfg.SourceDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("video bytes for "+name), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func expectedDest(e *testEnv) string {
	return filepath.Join(e.cfg.DestinationDir, "Formula 1 2025", "05 Monaco Grand Prix", "Formula 1 - S05E06 - Race.mkv")
}

func TestRunPass_EndToEndLink(t *testing.T) {
	env := newTestEnv(t, nil)
	src := env.addSource(t, "Formula.1.2025.Round05.Monaco.Race.mkv")

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}

	if summary.Discovered != 1 || summary.Linked != 1 {
		t.Errorf("summary = discovered %d linked %d failed %v", summary.Discovered, summary.Linked, summary.Failed)
	}

	dest := expectedDest(env)
	dstInfo, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	srcInfo, _ := os.Stat(src)
	if !os.SameFile(srcInfo, dstInfo) {
		t.Error("destination is not a hardlink of the source")
	}
}

func TestRunPass_Idempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSource(t, "Formula.1.2025.Round05.Monaco.Race.mkv")

	if _, err := env.proc.RunPass(context.Background(), "manual"); err != nil {
		t.Fatal(err)
	}
	destMtime := mtime(t, expectedDest(env))

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Linked != 0 {
		t.Errorf("second pass must not relink, linked = %d", summary.Linked)
	}
	if summary.Skipped[string(models.OutcomeAlreadyOK)] != 1 {
		t.Errorf("expected already_ok skip, got %v", summary.Skipped)
	}
	if mtime(t, expectedDest(env)) != destMtime {
		t.Error("idempotent pass mutated the destination")
	}
}

func mtime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.ModTime()
}

func TestRunPass_EmptySourceDir(t *testing.T) {
	env := newTestEnv(t, nil)

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatalf("RunPass on empty dir: %v", err)
	}
	if summary.Discovered != 0 || summary.Linked != 0 || summary.TotalFailed() != 0 {
		t.Errorf("expected all-zero summary, got %+v", summary)
	}
}

func TestRunPass_DryRunThenReal(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.DryRun = true })
	env.addSource(t, "Formula.1.2025.Round05.Monaco.Race.mkv")

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Linked != 1 {
		t.Errorf("dry-run should report the would-write, got %d", summary.Linked)
	}
	if _, err := os.Stat(expectedDest(env)); !os.IsNotExist(err) {
		t.Error("dry-run must not touch the filesystem")
	}

	var wouldWrite string
	for _, f := range summary.Files {
		if f.Outcome == models.OutcomeWouldLink {
			wouldWrite = f.Destination
		}
	}

	env.cfg.DryRun = false
	if _, err := env.proc.RunPass(context.Background(), "manual"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(wouldWrite); err != nil {
		t.Errorf("real pass destination differs from dry-run rendering: %v", err)
	}
}

func TestRunPass_SampleAndSizeSkipped(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MinFileSize = 5 })
	env.addSource(t, "Formula.1.2025.Round05.Monaco.Race.sample.mkv")
	tiny := filepath.Join(env.cfg.SourceDir, "Formula.1.2025.Round05.Monaco.FP1.mkv")
	if err := os.WriteFile(tiny, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Discovered != 0 {
		t.Errorf("sample and undersized files must not be discovered, got %d", summary.Discovered)
	}
}

func TestRunPass_UnmatchedReported(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSource(t, "random.nonsense.mkv")

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalFailed() != 1 {
		t.Errorf("unmatched without allow_unmatched is a failure, got %v", summary.Failed)
	}
}

func TestRunPass_AllowUnmatchedDowngrades(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Sports[0].AllowUnmatched = true })
	env.addSource(t, "random.nonsense.mkv")

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalFailed() != 0 {
		t.Errorf("allow_unmatched must downgrade failures, got %v", summary.Failed)
	}
	if summary.Skipped[string(models.OutcomeUnmatched)] != 1 {
		t.Errorf("expected unmatched skip, got %v", summary.Skipped)
	}
}

func TestRunPass_PriorityOverwriteMovesDestination(t *testing.T) {
	// A weak pattern links the file under the wrong session; a later pass
	// with a stronger pattern moves it and leaves no orphan.
	weakRule := models.PatternRule{
		// Greedy prefix: captures the LAST token before .mkv ("Race").
		Regex:           `Round(?P<round>\d{2})\..*\.(?P<session>\w+)\.mkv`,
		Description:     "weak-last-token",
		Priority:        100,
		SeasonSelector:  models.SeasonSelector{Mode: models.SeasonByRoundMode, Group: "round"},
		EpisodeSelector: models.EpisodeSelector{Group: "session"},
	}
	strongRule := models.PatternRule{
		// Anchored: captures the token right after the round ("Sprint").
		Regex:           `Round(?P<round>\d{2})\.(?P<session>\w+)\.\w+\.mkv`,
		Description:     "strong-first-token",
		Priority:        10,
		SeasonSelector:  models.SeasonSelector{Mode: models.SeasonByRoundMode, Group: "round"},
		EpisodeSelector: models.EpisodeSelector{Group: "session"},
	}

	env := newTestEnv(t, func(c *config.Config) {
		c.PatternSets["motorsport"] = []models.PatternRule{weakRule}
	})
	env.addSource(t, "Formula.1.2025.Round05.Sprint.Race.mkv")

	if _, err := env.proc.RunPass(context.Background(), "manual"); err != nil {
		t.Fatal(err)
	}
	oldDest := filepath.Join(env.cfg.DestinationDir, "Formula 1 2025", "05 Monaco Grand Prix", "Formula 1 - S05E06 - Race.mkv")
	if _, err := os.Stat(oldDest); err != nil {
		t.Fatalf("weak pattern destination missing: %v", err)
	}

	// Reload with the stronger pattern in front.
	env.cfg.PatternSets["motorsport"] = []models.PatternRule{weakRule, strongRule}
	env.proc.runtimes = make(map[string]*match.SportRuntime)

	if _, err := env.proc.RunPass(context.Background(), "manual"); err != nil {
		t.Fatal(err)
	}

	newDest := filepath.Join(env.cfg.DestinationDir, "Formula 1 2025", "05 Monaco Grand Prix", "Formula 1 - S05E05 - Sprint.mkv")
	if _, err := os.Stat(newDest); err != nil {
		t.Errorf("strong pattern destination missing: %v", err)
	}
	if _, err := os.Stat(oldDest); !os.IsNotExist(err) {
		t.Error("superseded destination must not orphan")
	}
}

func TestRunPass_IntraPassDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSource(t, "Formula.1.2025.Round05.Monaco.Race.mkv")
	env.addSource(t, "dupes/Formula.1.2025.Round05.Monaco.Race.mkv")

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Linked != 1 {
		t.Errorf("exactly one contender may win the destination, linked = %d", summary.Linked)
	}
	if summary.Skipped[string(models.OutcomeDuplicate)] != 1 {
		t.Errorf("expected one duplicate skip, got %v", summary.Skipped)
	}
}

func TestRunPass_StaleMetadataProceeds(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Metadata.TTL = time.Nanosecond })
	env.addSource(t, "Formula.1.2025.Round05.Monaco.Race.mkv")

	// Warm the cache, then lose backend connectivity.
	if _, err := env.proc.RunPass(context.Background(), "manual"); err != nil {
		t.Fatal(err)
	}
	env.provider.fail = metadata.ErrTransientNetwork
	time.Sleep(time.Millisecond)

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	ss, ok := summary.Sports["formula1_2025"]
	if !ok || !ss.Stale {
		t.Errorf("expected stale-metadata marker, got %+v", summary.Sports)
	}
	if ss.LoadError != "" {
		t.Errorf("stale serve must not be a load error: %q", ss.LoadError)
	}
	if summary.Skipped[string(models.OutcomeAlreadyOK)] != 1 {
		t.Errorf("pass should proceed on stale cache, got %v", summary.Skipped)
	}
}

func TestRunPass_SportSkippedOnLoadFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.fail = metadata.ErrTransientNetwork
	env.addSource(t, "Formula.1.2025.Round05.Monaco.Race.mkv")

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatalf("a failed sport must not abort the pass: %v", err)
	}
	ss := summary.Sports["formula1_2025"]
	if ss.LoadError == "" {
		t.Errorf("expected a load error, got %+v", ss)
	}
	if summary.Linked != 0 {
		t.Errorf("nothing should link without metadata, got %d", summary.Linked)
	}
}

func TestRunPass_TraceArtifacts(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.TraceEnabled = true })
	env.addSource(t, "Formula.1.2025.Round05.Monaco.Race.mkv")

	summary, err := env.proc.RunPass(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}

	traceDir := filepath.Join(env.cfg.CacheDir, "traces", summary.PassID)
	entries, err := os.ReadDir(traceDir)
	if err != nil {
		t.Fatalf("trace dir missing: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected one trace artifact, got %d", len(entries))
	}
}
