// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/models"
)

// refreshTimeout bounds one trigger call.
const refreshTimeout = 15 * time.Second

// RefreshTrigger asks the downstream media server to rescan its library.
// Invoked at most once per pass, and only when the pass produced at least
// one new destination.
type RefreshTrigger interface {
	Trigger(ctx context.Context, summary *models.PassSummary) error
}

// HTTPRefreshTrigger issues the Plex-style partial-scan request: a GET
// against the configured URL with the section and token as query
// parameters.
type HTTPRefreshTrigger struct {
	url     string
	token   string
	section string
	client  *http.Client
}

// NewHTTPRefreshTrigger builds the default trigger.
func NewHTTPRefreshTrigger(rawURL, token, section string) *HTTPRefreshTrigger {
	return &HTTPRefreshTrigger{
		url:     rawURL,
		token:   token,
		section: section,
		client:  &http.Client{Timeout: refreshTimeout},
	}
}

// Trigger implements RefreshTrigger.
func (t *HTTPRefreshTrigger) Trigger(ctx context.Context, summary *models.PassSummary) error {
	u, err := url.Parse(t.url)
	if err != nil {
		return fmt.Errorf("refresh trigger url: %w", err)
	}
	q := u.Query()
	if t.section != "" {
		q.Set("section", t.section)
	}
	if t.token != "" {
		q.Set("X-Plex-Token", t.token)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh trigger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("refresh trigger: status %d", resp.StatusCode)
	}
	logging.Ctx(ctx).Info().Str("pass_id", summary.PassID).Int("linked", summary.Linked).Msg("Library refresh requested")
	return nil
}
