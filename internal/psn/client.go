// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

/*
HTTP client for the upstream trophy service.

Every request flows through, in order: a local credential expiry check
(so a known-dead token never spends budget), the shared rate limiter,
and the circuit breaker. Responses are mapped into the package's error
taxonomy before they leave this file.

Retry policy: 429 responses honor Retry-After and otherwise back off
exponentially from the configured base delay; 5xx responses and
transport failures back off the same way. 4xx responses other than 429
are never retried. All waits are context-aware.
*/
package psn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/metrics"
	"github.com/tomtom215/trophytrack/internal/ratelimit"
)

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// ClientConfig configures the upstream HTTP client.
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client issues rate-limited, breaker-guarded requests against the
// upstream service. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryBase  time.Duration
	limiter    *ratelimit.Limiter
	breaker    *breaker
	clk        clock.Clock
}

// NewClient creates a Client. The limiter is shared with everything
// else that talks upstream; the breaker is created here since nothing
// else needs it.
func NewClient(cfg ClientConfig, limiter *ratelimit.Limiter, clk clock.Clock) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBaseDelay,
		limiter:    limiter,
		breaker:    newBreaker("psn"),
		clk:        clk,
	}
}

// get fetches and decodes one endpoint. The endpoint name labels
// metrics and error context; path and query build the request URL.
func (c *Client) get(ctx context.Context, cred AccessCredential, endpoint, path string, query url.Values) (payload, error) {
	if cred.Expired(c.clk.Now()) {
		return nil, apiErr(ErrAuthExpired, endpoint, 0, "credential expired locally")
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}

	start := time.Now()
	result, err := c.breaker.execute(func() (payload, error) {
		return c.doWithRetries(ctx, cred, endpoint, path, query)
	})
	metrics.APICallDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.APICallsTotal.WithLabelValues(endpoint, outcomeLabel(err)).Inc()
	if err != nil {
		c.limiter.RecordError()
	}
	return result, err
}

func (c *Client) doWithRetries(ctx context.Context, cred AccessCredential, endpoint, path string, query url.Values) (payload, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.APIRetriesTotal.WithLabelValues(endpoint).Inc()
		}

		result, retryAfter, err := c.doOnce(ctx, cred, endpoint, path, query)
		if err == nil {
			return result, nil
		}
		if retryAfter < 0 {
			return nil, err
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}
		delay := c.retryBase << attempt
		if retryAfter > delay {
			delay = retryAfter
		}
		logging.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying upstream request")
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// doOnce performs a single request. The returned duration is negative
// when the error must not be retried, zero or positive when retry is
// allowed (positive being a server-requested minimum delay).
func (c *Client) doOnce(ctx context.Context, cred AccessCredential, endpoint, path string, query url.Values) (payload, time.Duration, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("building request for %s: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		return nil, 0, apiErr(ErrTransient, endpoint, 0, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var p payload
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return nil, -1, apiErr(ErrSchemaDrift, endpoint, resp.StatusCode, "response is not a JSON object: "+err.Error())
		}
		return p, 0, nil

	case resp.StatusCode == http.StatusUnauthorized:
		return nil, -1, apiErr(ErrAuthExpired, endpoint, resp.StatusCode, readErrorBody(resp.Body))

	case resp.StatusCode == http.StatusForbidden:
		return nil, -1, apiErr(ErrForbidden, endpoint, resp.StatusCode, readErrorBody(resp.Body))

	case resp.StatusCode == http.StatusNotFound:
		return nil, -1, apiErr(ErrNotFound, endpoint, resp.StatusCode, readErrorBody(resp.Body))

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		logging.Warn().
			Str("endpoint", endpoint).
			Dur("retry_after", retryAfter).
			Msg("Upstream returned 429 despite local budget")
		return nil, retryAfter, apiErr(ErrTransient, endpoint, resp.StatusCode, "rate limited upstream")

	case resp.StatusCode >= 500:
		return nil, 0, apiErr(ErrTransient, endpoint, resp.StatusCode, readErrorBody(resp.Body))

	default:
		return nil, -1, apiErr(ErrTransient, endpoint, resp.StatusCode, readErrorBody(resp.Body))
	}
}

func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil || len(body) == 0 {
		return ""
	}
	return string(body)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
