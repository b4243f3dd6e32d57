// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package services wraps Linesman's long-running components as suture
// services.
package services

import (
	"context"

	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/models"
	"github.com/tomtom215/linesman/internal/watch"
)

// PassRunner is the slice of the processor the run loop needs.
type PassRunner interface {
	RunPass(ctx context.Context, trigger string) (*models.PassSummary, error)
}

// ProcessorService drives the processor: one startup pass, then a pass per
// watcher signal. Without a watcher it runs the startup pass and waits for
// shutdown (one-shot mode is handled by the CLI directly).
type ProcessorService struct {
	runner  PassRunner
	signals <-chan watch.Trigger
}

// NewProcessorService wraps the processor run loop. signals may be nil
// when watching is disabled.
func NewProcessorService(runner PassRunner, signals <-chan watch.Trigger) *ProcessorService {
	return &ProcessorService{runner: runner, signals: signals}
}

// Serve implements suture.Service.
func (s *ProcessorService) Serve(ctx context.Context) error {
	if _, err := s.runner.RunPass(ctx, "startup"); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Startup pass failed")
	}

	if s.signals == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trig, ok := <-s.signals:
			if !ok {
				return nil
			}
			if _, err := s.runner.RunPass(ctx, string(trig)); err != nil {
				logging.Ctx(ctx).Error().Err(err).Str("trigger", string(trig)).Msg("Pass failed")
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *ProcessorService) String() string {
	return "processor"
}
