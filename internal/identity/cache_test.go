// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/store"
)

type stubValidator struct {
	calls   int
	summary psn.AccountSummary
	err     error
}

func (s *stubValidator) ValidateAccount(_ context.Context, _ psn.AccessCredential, accountID string) (psn.AccountSummary, error) {
	s.calls++
	if s.err != nil {
		return psn.AccountSummary{}, s.err
	}
	out := s.summary
	out.AccountID = accountID
	return out, nil
}

func newTestCache(t *testing.T, v *stubValidator, clk clock.Clock) *Cache {
	t.Helper()
	s, err := store.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return NewCache(s, v, 24*time.Hour, clk)
}

func TestGetOrValidateCachesResult(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	v := &stubValidator{summary: psn.AccountSummary{Public: true, DisplayName: "hunter"}}
	c := newTestCache(t, v, clk)

	cred := psn.AccessCredential{Token: "t"}
	first, err := c.GetOrValidate(context.Background(), cred, "12345")
	if err != nil {
		t.Fatalf("GetOrValidate() error = %v", err)
	}
	if !first.Valid || !first.Public || first.DisplayName != "hunter" {
		t.Errorf("entry = %+v", first)
	}
	if v.calls != 1 {
		t.Fatalf("validator calls = %d, want 1", v.calls)
	}

	// Within the staleness window: served from cache.
	clk.Advance(23 * time.Hour)
	if _, err := c.GetOrValidate(context.Background(), cred, "12345"); err != nil {
		t.Fatal(err)
	}
	if v.calls != 1 {
		t.Errorf("validator calls = %d after cache hit, want 1", v.calls)
	}

	// Past the window: revalidated.
	clk.Advance(2 * time.Hour)
	if _, err := c.GetOrValidate(context.Background(), cred, "12345"); err != nil {
		t.Fatal(err)
	}
	if v.calls != 2 {
		t.Errorf("validator calls = %d after staleness, want 2", v.calls)
	}
}

func TestGetOrValidatePrivateProfile(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	v := &stubValidator{summary: psn.AccountSummary{Public: false}}
	c := newTestCache(t, v, clk)

	entry, err := c.GetOrValidate(context.Background(), psn.AccessCredential{}, "12345")
	if err != nil {
		t.Fatalf("GetOrValidate() error = %v", err)
	}
	if !entry.Valid {
		t.Error("Valid = false for private profile, want true")
	}
	if entry.Public {
		t.Error("Public = true for private profile")
	}
}

func TestGetOrValidateNotFoundIsCacheable(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	v := &stubValidator{err: psn.ErrNotFound}
	c := newTestCache(t, v, clk)

	entry, err := c.GetOrValidate(context.Background(), psn.AccessCredential{}, "ghost")
	if err != nil {
		t.Fatalf("GetOrValidate() error = %v, not-found should not error", err)
	}
	if entry.Valid {
		t.Error("Valid = true for missing account")
	}

	// The negative result is cached too.
	if _, err := c.GetOrValidate(context.Background(), psn.AccessCredential{}, "ghost"); err != nil {
		t.Fatal(err)
	}
	if v.calls != 1 {
		t.Errorf("validator calls = %d, want 1", v.calls)
	}
}

func TestTransientErrorCountsAgainstEntry(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	v := &stubValidator{summary: psn.AccountSummary{Public: true}}
	c := newTestCache(t, v, clk)

	ctx := context.Background()
	cred := psn.AccessCredential{}
	if _, err := c.GetOrValidate(ctx, cred, "12345"); err != nil {
		t.Fatal(err)
	}

	v.err = psn.ErrTransient
	clk.Advance(25 * time.Hour)
	for i := 0; i < models.ConsecutiveErrorPolicy; i++ {
		if _, err := c.GetOrValidate(ctx, cred, "12345"); !errors.Is(err, psn.ErrTransient) {
			t.Fatalf("GetOrValidate() error = %v, want ErrTransient", err)
		}
	}

	entry, err := c.store.GetIdentity("12345")
	if err != nil {
		t.Fatal(err)
	}
	if entry.ConsecutiveErrors != models.ConsecutiveErrorPolicy {
		t.Errorf("ConsecutiveErrors = %d, want %d", entry.ConsecutiveErrors, models.ConsecutiveErrorPolicy)
	}
	if !entry.ShouldStopSyncing() {
		t.Error("ShouldStopSyncing() = false at policy threshold")
	}

	// Recovery resets the count.
	v.err = nil
	if _, err := c.GetOrValidate(ctx, cred, "12345"); err != nil {
		t.Fatal(err)
	}
	entry, _ = c.store.GetIdentity("12345")
	if entry.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors after recovery = %d, want 0", entry.ConsecutiveErrors)
	}
}

func TestTransientErrorsCountedForFreshID(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	v := &stubValidator{err: psn.ErrTransient}
	c := newTestCache(t, v, clk)

	ctx := context.Background()
	cred := psn.AccessCredential{}
	for i := 0; i < models.ConsecutiveErrorPolicy; i++ {
		if _, err := c.GetOrValidate(ctx, cred, "fresh"); !errors.Is(err, psn.ErrTransient) {
			t.Fatalf("GetOrValidate() error = %v, want ErrTransient", err)
		}
	}

	// Failures must be counted even though the id was never validated.
	entry, err := c.store.GetIdentity("fresh")
	if err != nil {
		t.Fatalf("GetIdentity() error = %v, want counter entry", err)
	}
	if entry.ConsecutiveErrors != models.ConsecutiveErrorPolicy {
		t.Errorf("ConsecutiveErrors = %d, want %d", entry.ConsecutiveErrors, models.ConsecutiveErrorPolicy)
	}
	if !entry.ShouldStopSyncing() {
		t.Error("ShouldStopSyncing() = false at policy threshold")
	}
	if v.calls != models.ConsecutiveErrorPolicy {
		t.Errorf("validator calls = %d, counter entry must not act as a cache hit", v.calls)
	}

	// A later successful validation replaces the counter entry.
	v.err = nil
	v.summary = psn.AccountSummary{Public: true}
	got, err := c.GetOrValidate(ctx, cred, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Valid || got.ConsecutiveErrors != 0 {
		t.Errorf("entry after recovery = %+v", got)
	}
}

func TestMarkStale(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	v := &stubValidator{summary: psn.AccountSummary{Public: true}}
	c := newTestCache(t, v, clk)

	ctx := context.Background()
	if _, err := c.GetOrValidate(ctx, psn.AccessCredential{}, "12345"); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkStale("12345"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrValidate(ctx, psn.AccessCredential{}, "12345"); err != nil {
		t.Fatal(err)
	}
	if v.calls != 2 {
		t.Errorf("validator calls = %d after MarkStale, want 2", v.calls)
	}

	if err := c.MarkStale("never-seen"); err != nil {
		t.Errorf("MarkStale() on missing entry = %v, want nil", err)
	}
}
