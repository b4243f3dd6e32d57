// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Pass throughput and duration
// - Match outcomes per sport and failure kind
// - Metadata fetches, cache hits, and circuit breaker state
// - Link actions and processed-cache activity

var (
	// Pass metrics
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linesman_passes_total",
			Help: "Total number of processing passes",
		},
		[]string{"trigger"}, // "startup", "event", "reconcile", "manual"
	)

	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linesman_pass_duration_seconds",
			Help:    "Duration of a full processing pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	FilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linesman_files_discovered_total",
			Help: "Total number of files discovered across passes",
		},
	)

	// Match metrics
	MatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linesman_match_outcomes_total",
			Help: "Match outcomes by sport and result kind",
		},
		[]string{"sport", "outcome"},
	)

	// Link metrics
	LinksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linesman_links_created_total",
			Help: "Destinations materialized, by link mode",
		},
		[]string{"mode"},
	)

	LinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linesman_link_errors_total",
			Help: "Link failures by error kind",
		},
		[]string{"kind"},
	)

	// Metadata metrics
	MetadataFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linesman_metadata_fetches_total",
			Help: "Metadata backend fetches by sport and result",
		},
		[]string{"sport", "result"}, // "ok", "error"
	)

	MetadataCacheServes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linesman_metadata_cache_serves_total",
			Help: "Metadata cache serves by kind",
		},
		[]string{"kind"}, // "fresh", "refreshed", "stale", "miss"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linesman_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Processed cache metrics
	ProcessedCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linesman_processed_cache_hits_total",
			Help: "Sources skipped because an identical processed record exists",
		},
	)

	ProcessedCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linesman_processed_cache_records",
			Help: "Number of records in the processed cache",
		},
	)

	// Watcher metrics
	WatcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linesman_watcher_events_total",
			Help: "Filesystem events by disposition",
		},
		[]string{"disposition"}, // "dispatched", "filtered", "coalesced"
	)
)
