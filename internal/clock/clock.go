// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Package clock provides an injectable time source.
//
// All components that make windowing, staleness, or timestamp decisions
// (rate limiter, identity cache, sync jobs) take a Clock instead of calling
// time.Now directly, so tests can drive time deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts the current time.
//
// Thread Safety: implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system wall clock.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time { return time.Now() }

// System returns the process-wide real clock.
func System() Clock { return Real{} }

// Mock is a manually advanced Clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock creates a Mock frozen at the given instant.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

// Now returns the mock's current instant.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set jumps the mock clock to the given instant.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
