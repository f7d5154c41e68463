// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package psn

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/metrics"
)

// breaker guards upstream requests with a circuit breaker. Only
// transient failures count against the trip threshold: a 403 or 404 is
// the upstream answering correctly, not the upstream being down.
type breaker struct {
	cb *gobreaker.CircuitBreaker[payload]
}

func newBreaker(name string) *breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3, // probes allowed in half-open
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, ErrAuthExpired) ||
				errors.Is(err, ErrForbidden) ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrSchemaDrift)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))
	return &breaker{cb: gobreaker.NewCircuitBreaker[payload](settings)}
}

func (b *breaker) execute(fn func() (payload, error)) (payload, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), "success").Inc()
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), "rejected").Inc()
		return nil, apiErr(ErrTransient, b.cb.Name(), 0, "circuit breaker open")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), "failure").Inc()
		return nil, err
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
