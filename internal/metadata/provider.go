// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/metrics"
	"github.com/tomtom215/linesman/internal/models"
)

// Provider fetches raw per-sport metadata from a configured backend.
// Implementations retry only within a single Fetch; stale-acceptance policy
// belongs to the Store.
type Provider interface {
	Fetch(ctx context.Context, showRef string) (*models.RawMetadata, error)
}

// RetryPolicy bounds retries within one fetch.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// HTTPProviderConfig configures the default HTTP-backed provider.
type HTTPProviderConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Retry     RetryPolicy
	RateLimit float64 // requests per second, 0 = unlimited
}

// HTTPProvider fetches metadata documents over HTTP with bounded
// exponential backoff, a request rate limiter, and a circuit breaker that
// sheds load when the backend is persistently failing.
type HTTPProvider struct {
	cfg     HTTPProviderConfig
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPProvider creates the default backend client.
// Circuit breaker configuration:
// - Opens after 60% failure rate with minimum 6 requests
// - 1 minute measurement window, 2 minute recovery timeout
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 4
	}
	if cfg.Retry.BaseBackoff <= 0 {
		cfg.Retry.BaseBackoff = 500 * time.Millisecond
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	cbName := "metadata-backend"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 6 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			// Terminal backend answers are not backend failures.
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuthFailure)
		},
	})

	return &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		cb:      cb,
	}
}

// Fetch retrieves and decodes the metadata document for one show reference.
// RateLimited and TransientNetwork failures are retried with exponential
// backoff and jitter up to the policy bound; NotFound and AuthFailure are
// terminal.
func (p *HTTPProvider) Fetch(ctx context.Context, showRef string) (*models.RawMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}

	body, err := p.cb.Execute(func() ([]byte, error) {
		return p.fetchWithRetry(ctx, showRef)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrMetadataUnavailable)
		}
		return nil, err
	}

	raw := &models.RawMetadata{}
	if err := json.Unmarshal(body, raw); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrNormalization, showRef, err)
	}
	return raw, nil
}

// fetchWithRetry performs the HTTP roundtrips for one fetch. backoff/v4
// supplies the exponential schedule with jitter; terminal errors are wrapped
// in backoff.Permanent so they surface immediately.
func (p *HTTPProvider) fetchWithRetry(ctx context.Context, showRef string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.Retry.BaseBackoff

	var body []byte
	op := func() error {
		b, err := p.fetchOnce(ctx, showRef)
		if err != nil {
			if retriable(err) {
				logging.Ctx(ctx).Warn().Err(err).Str("show_ref", showRef).Msg("Retrying metadata fetch")
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(p.cfg.Retry.MaxAttempts-1)), ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return body, nil
}

// fetchOnce performs a single HTTP roundtrip and classifies the outcome.
func (p *HTTPProvider) fetchOnce(ctx context.Context, showRef string) ([]byte, error) {
	url := p.cfg.BaseURL + "/" + showRef
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: timeout fetching %s", ErrTransientNetwork, showRef)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrTransientNetwork, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, showRef)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailure, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, showRef)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrTransientNetwork, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransientNetwork, resp.StatusCode)
	}
}

// stateToFloat maps breaker states to gauge values.
func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
