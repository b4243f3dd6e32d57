// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package notify fans pass events out to configured sinks. The core does
// not depend on delivery semantics: sinks swallow their own failures.
package notify

import (
	"context"

	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/models"
)

// EventType enumerates the notification events the processor emits.
type EventType string

const (
	// EventPerFileLinked fires for each destination materialized.
	EventPerFileLinked EventType = "PerFileLinked"

	// EventPassSummary fires once per pass with the full summary.
	EventPassSummary EventType = "PassSummary"

	// EventRefreshRequested fires when the library refresh trigger ran.
	EventRefreshRequested EventType = "RefreshRequested"
)

// Event is one notification.
type Event struct {
	Type    EventType           `json:"type"`
	PassID  string              `json:"pass_id"`
	File    *models.FileReport  `json:"file,omitempty"`
	Summary *models.PassSummary `json:"summary,omitempty"`
}

// Sink consumes events. Implementations must not block the pass; failures
// are logged, never propagated.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// Dispatcher fans one event out to all configured sinks.
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher builds a dispatcher over the given sinks.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Emit delivers the event to every sink.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	for _, s := range d.sinks {
		s.Emit(ctx, event)
	}
}

// LogSink writes events to the structured log. Always configured.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(ctx context.Context, event Event) {
	ev := logging.Ctx(ctx).Info().Str("event", string(event.Type))
	switch {
	case event.File != nil:
		ev = ev.Str("source", event.File.Source).Str("destination", event.File.Destination).Str("outcome", string(event.File.Outcome))
	case event.Summary != nil:
		ev = ev.Int("linked", event.Summary.Linked).Int("skipped", event.Summary.TotalSkipped()).Int("failed", event.Summary.TotalFailed())
	}
	ev.Msg("Pass notification")
}
