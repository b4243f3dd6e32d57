// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context keys for logging.
type contextKey string

const (
	// passIDKey is the context key for processing-pass IDs.
	passIDKey contextKey = "pass_id"

	// loggerKey is the context key for storing a logger instance.
	loggerKey contextKey = "logger"
)

// GeneratePassID creates a new unique pass ID.
func GeneratePassID() string {
	return uuid.New().String()
}

// ContextWithPassID returns a new context carrying the given pass ID.
//
//	ctx = logging.ContextWithPassID(ctx, logging.GeneratePassID())
func ContextWithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey, id)
}

// PassIDFromContext retrieves the pass ID from context.
// Returns empty string if not present.
func PassIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(passIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithLogger stores a logger in the context.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns a logger derived from the context. If a logger is stored in
// the context it is used; otherwise the global logger is used. When a pass
// ID is present it is attached as a field.
func Ctx(ctx context.Context) zerolog.Logger {
	logger, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		logger = Logger()
	}
	if id := PassIDFromContext(ctx); id != "" {
		logger = logger.With().Str("pass_id", id).Logger()
	}
	return logger
}
