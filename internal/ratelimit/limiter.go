// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

/*
Package ratelimit implements the fixed-window call budget for the
upstream trophy service.

The window is a fixed interval anchored at the first call after the
previous window expired, not a sliding window: once windowEnd passes,
the counter resets to zero regardless of how calls were distributed.
All pacing decisions live here; callers never implement their own
sleep-and-retry math beyond honoring the wait duration Reserve returns.

The current window is persisted through an optional WindowStore so the
budget survives process restarts. Persistence is best-effort: a failed
save logs a warning and does not block the call path.
*/
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/metrics"
	"github.com/tomtom215/trophytrack/internal/models"
)

// WindowStore persists the current rate limit window across restarts.
type WindowStore interface {
	LoadWindow() (*models.RateLimitWindow, error)
	SaveWindow(models.RateLimitWindow) error
}

// Limiter enforces a fixed-window call budget. Safe for concurrent use.
// The mutex is never held while sleeping or performing I/O other than
// the best-effort window save.
type Limiter struct {
	mu       sync.Mutex
	window   models.RateLimitWindow
	limit    int
	duration time.Duration
	clk      clock.Clock
	store    WindowStore
}

// New creates a Limiter with the given budget. A nil store disables
// persistence; a persisted window that has not yet expired is resumed,
// so restarting the process does not reset the budget.
func New(limit int, window time.Duration, clk clock.Clock, store WindowStore) *Limiter {
	l := &Limiter{
		limit:    limit,
		duration: window,
		clk:      clk,
		store:    store,
	}
	now := clk.Now()
	if store != nil {
		if saved, err := store.LoadWindow(); err != nil {
			logging.Warn().Err(err).Msg("Failed to load persisted rate limit window, starting fresh")
		} else if saved != nil && !saved.Expired(now) {
			l.window = *saved
			l.window.Limit = limit
		}
	}
	if l.window.WindowStart.IsZero() {
		l.window = newWindow(now, limit, window)
	}
	l.publish()
	return l
}

func newWindow(now time.Time, limit int, duration time.Duration) models.RateLimitWindow {
	return models.RateLimitWindow{
		WindowStart: now,
		WindowEnd:   now.Add(duration),
		Limit:       limit,
	}
}

// Reserve attempts to consume one call from the current window. It
// returns zero if the call was admitted, or the duration until the
// window resets if the budget is exhausted. Rollover is lazy: the
// first reservation after WindowEnd starts a fresh window.
func (l *Limiter) Reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	l.rollover(now)

	if l.window.CallsMade >= l.limit {
		l.window.Exceeded = true
		metrics.RateLimitWaitsTotal.Inc()
		l.publish()
		l.save()
		return l.window.WindowEnd.Sub(now)
	}

	l.window.CallsMade++
	l.publish()
	l.save()
	return 0
}

// Acquire blocks until a call is admitted or ctx is done. It is the
// sleep-and-retry loop Reserve callers would otherwise write themselves.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait := l.Reserve()
		if wait <= 0 {
			return nil
		}
		logging.Debug().
			Dur("wait", wait).
			Int("limit", l.limit).
			Msg("Rate limit window exhausted, waiting for reset")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// CanProceed reports whether a call would be admitted right now without
// consuming budget.
func (l *Limiter) CanProceed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.clk.Now())
	return l.window.CallsMade < l.limit
}

// TimeUntilReset returns the duration until the current window expires.
// Zero means the window has already expired and the next reservation
// starts fresh.
func (l *Limiter) TimeUntilReset() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.window.WindowEnd.Sub(l.clk.Now())
	if d < 0 {
		return 0
	}
	return d
}

// RecordError counts an upstream error against the current window.
// Errors do not consume budget; the count is diagnostic.
func (l *Limiter) RecordError() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.clk.Now())
	l.window.ErrorsCount++
	l.save()
}

// Snapshot returns a copy of the current window for status reporting.
func (l *Limiter) Snapshot() models.RateLimitWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.clk.Now())
	return l.window
}

// rollover starts a fresh window if the current one expired. Callers
// must hold l.mu.
func (l *Limiter) rollover(now time.Time) {
	if !l.window.Expired(now) {
		return
	}
	logging.Debug().
		Int("calls_made", l.window.CallsMade).
		Int("errors", l.window.ErrorsCount).
		Bool("exceeded", l.window.Exceeded).
		Msg("Rate limit window expired, starting new window")
	l.window = newWindow(now, l.limit, l.duration)
	l.publish()
}

// publish updates the window gauges. Callers must hold l.mu.
func (l *Limiter) publish() {
	metrics.RateLimitWindowCalls.Set(float64(l.window.CallsMade))
	metrics.RateLimitWindowRemaining.Set(float64(l.window.Remaining()))
}

// save persists the window best-effort. Callers must hold l.mu.
func (l *Limiter) save() {
	if l.store == nil {
		return
	}
	if err := l.store.SaveWindow(l.window); err != nil {
		logging.Warn().Err(err).Msg("Failed to persist rate limit window")
	}
}
