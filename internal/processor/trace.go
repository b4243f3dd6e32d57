// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/match"
	"github.com/tomtom215/linesman/internal/models"
)

// traceArtifact is the per-file diagnostic written under
// cache_dir/traces/<pass_id>/ when tracing is enabled.
type traceArtifact struct {
	Report     models.FileReport      `json:"report"`
	Groups     map[string]string      `json:"groups,omitempty"`
	Structured *models.StructuredName `json:"structured,omitempty"`
	Score      float64                `json:"score,omitempty"`
}

// summaryTrace persists the trace artifact for one file. Failures to write
// a trace never affect the pass.
func summaryTrace(ctx context.Context, p *Processor, report *models.FileReport, res *match.Result) {
	if !p.cfg.TraceEnabled {
		return
	}

	art := traceArtifact{Report: *report}
	if res != nil {
		art.Groups = res.Groups
		art.Structured = res.Structured
		art.Score = res.Score
	}

	passID := logging.PassIDFromContext(ctx)
	dir := filepath.Join(p.cfg.CacheDir, "traces", passID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Trace dir creation failed")
		return
	}

	name := strings.ReplaceAll(report.Source, string(filepath.Separator), "_") + ".json"
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Trace encoding failed")
		return
	}

	// Atomic rename keeps partial traces out of the tree.
	tmp := filepath.Join(dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Trace write failed")
		return
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		logging.Ctx(ctx).Warn().Err(err).Msg("Trace rename failed")
	}
}
