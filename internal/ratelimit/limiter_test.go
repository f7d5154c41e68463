// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/models"
)

type memWindowStore struct {
	saved   *models.RateLimitWindow
	loadErr error
}

func (s *memWindowStore) LoadWindow() (*models.RateLimitWindow, error) {
	return s.saved, s.loadErr
}

func (s *memWindowStore) SaveWindow(w models.RateLimitWindow) error {
	s.saved = &w
	return nil
}

func TestReserveWithinBudget(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	l := New(3, 15*time.Minute, clk, nil)

	for i := 0; i < 3; i++ {
		if wait := l.Reserve(); wait != 0 {
			t.Fatalf("Reserve() call %d = %s, want 0", i+1, wait)
		}
	}
	if wait := l.Reserve(); wait != 15*time.Minute {
		t.Errorf("Reserve() after exhaustion = %s, want 15m", wait)
	}
	if l.CanProceed() {
		t.Error("CanProceed() = true after exhaustion")
	}
}

func TestReserveFullBudget(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	l := New(models.DefaultWindowLimit, models.DefaultWindowDuration, clk, nil)

	for i := 0; i < models.DefaultWindowLimit; i++ {
		if wait := l.Reserve(); wait != 0 {
			t.Fatalf("Reserve() call %d rejected with wait %s", i+1, wait)
		}
	}
	if wait := l.Reserve(); wait <= 0 {
		t.Errorf("Reserve() call %d admitted, want rejection", models.DefaultWindowLimit+1)
	}
	snap := l.Snapshot()
	if snap.CallsMade != models.DefaultWindowLimit {
		t.Errorf("CallsMade = %d, want %d", snap.CallsMade, models.DefaultWindowLimit)
	}
	if !snap.Exceeded {
		t.Error("Exceeded = false after rejection")
	}
}

func TestWindowRollover(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	l := New(2, 15*time.Minute, clk, nil)

	l.Reserve()
	l.Reserve()
	if l.CanProceed() {
		t.Fatal("CanProceed() = true, want false before rollover")
	}

	// Partial wait does not reset the window.
	clk.Advance(14 * time.Minute)
	if l.CanProceed() {
		t.Error("CanProceed() = true with 1m left in window")
	}

	clk.Advance(time.Minute)
	if !l.CanProceed() {
		t.Error("CanProceed() = false after window expired")
	}
	if wait := l.Reserve(); wait != 0 {
		t.Errorf("Reserve() after rollover = %s, want 0", wait)
	}
	snap := l.Snapshot()
	if snap.CallsMade != 1 {
		t.Errorf("CallsMade after rollover = %d, want 1", snap.CallsMade)
	}
	if snap.Exceeded {
		t.Error("Exceeded carried over into fresh window")
	}
}

func TestTimeUntilReset(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	l := New(1, 15*time.Minute, clk, nil)

	if d := l.TimeUntilReset(); d != 15*time.Minute {
		t.Errorf("TimeUntilReset() = %s, want 15m", d)
	}
	clk.Advance(5 * time.Minute)
	if d := l.TimeUntilReset(); d != 10*time.Minute {
		t.Errorf("TimeUntilReset() = %s, want 10m", d)
	}
	clk.Advance(20 * time.Minute)
	if d := l.TimeUntilReset(); d != 0 {
		t.Errorf("TimeUntilReset() after expiry = %s, want 0", d)
	}
}

func TestRecordError(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	l := New(5, 15*time.Minute, clk, nil)

	l.Reserve()
	l.RecordError()
	l.RecordError()

	snap := l.Snapshot()
	if snap.ErrorsCount != 2 {
		t.Errorf("ErrorsCount = %d, want 2", snap.ErrorsCount)
	}
	// Errors do not consume budget.
	if snap.CallsMade != 1 {
		t.Errorf("CallsMade = %d, want 1", snap.CallsMade)
	}
}

func TestPersistedWindowResumed(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := &memWindowStore{
		saved: &models.RateLimitWindow{
			WindowStart: start,
			WindowEnd:   start.Add(15 * time.Minute),
			CallsMade:   299,
			Limit:       300,
		},
	}
	clk := clock.NewMock(start.Add(2 * time.Minute))
	l := New(300, 15*time.Minute, clk, store)

	if wait := l.Reserve(); wait != 0 {
		t.Fatalf("Reserve() = %s, want 0 for final budgeted call", wait)
	}
	if wait := l.Reserve(); wait <= 0 {
		t.Error("Reserve() admitted call beyond resumed budget")
	}
}

func TestExpiredPersistedWindowIgnored(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := &memWindowStore{
		saved: &models.RateLimitWindow{
			WindowStart: start,
			WindowEnd:   start.Add(15 * time.Minute),
			CallsMade:   300,
			Limit:       300,
		},
	}
	clk := clock.NewMock(start.Add(time.Hour))
	l := New(300, 15*time.Minute, clk, store)

	if !l.CanProceed() {
		t.Error("CanProceed() = false, expired persisted window should not apply")
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	l := New(1, 15*time.Minute, clk, nil)
	l.Reserve()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); err != context.Canceled {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}
