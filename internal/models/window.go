// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package models

import "time"

// Upstream quota defaults: roughly 300 calls per 15 minutes.
const (
	DefaultWindowLimit    = 300
	DefaultWindowDuration = 15 * time.Minute
)

// RateLimitWindow tracks outbound calls against the quota for the current
// fixed window. A single window row is process-wide shared state; it rolls
// over lazily once WindowEnd has passed.
type RateLimitWindow struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	CallsMade   int  `json:"calls_made"`
	Limit       int  `json:"limit"`
	ErrorsCount int  `json:"errors_count"`
	Exceeded    bool `json:"exceeded"`
}

// Expired reports whether the window has ended at now.
func (w *RateLimitWindow) Expired(now time.Time) bool {
	return !now.Before(w.WindowEnd)
}

// Remaining returns how many calls the window can still admit.
func (w *RateLimitWindow) Remaining() int {
	if w.CallsMade >= w.Limit {
		return 0
	}
	return w.Limit - w.CallsMade
}
