// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package notify

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/linesman/internal/logging"
)

// webhookTimeout bounds one delivery attempt.
const webhookTimeout = 10 * time.Second

// WebhookSink POSTs events as JSON to a configured URL. Delivery is
// best-effort: failures are logged and dropped.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink for the URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// Emit implements Sink.
func (s *WebhookSink) Emit(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Webhook payload encoding failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("url", s.url).Msg("Webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("url", s.url).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logging.Ctx(ctx).Warn().Int("status", resp.StatusCode).Str("url", s.url).Msg("Webhook rejected")
	}
}
