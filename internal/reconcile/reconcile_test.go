// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package reconcile

import (
	"testing"
	"time"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *store.BadgerStore, *clock.Mock) {
	t.Helper()
	s, err := store.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	return New(s, clk), s, clk
}

func sampleTitle() psn.TitleSummary {
	return psn.TitleSummary{
		ExternalID:      "NPWR_A",
		Name:            "Alpha Quest",
		Platform:        "PS5",
		SetVersion:      "01.00",
		DefinedBronze:   2,
		DefinedPlatinum: 1,
	}
}

func TestUpsertTitleCreateThenUpdate(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	title, created, err := r.UpsertTitle(sampleTitle())
	if err != nil {
		t.Fatalf("UpsertTitle() error = %v", err)
	}
	if !created {
		t.Error("created = false on first sight")
	}
	if title.DifficultyWeight != models.DifficultyWeightDefault {
		t.Errorf("DifficultyWeight = %.1f, want default", title.DifficultyWeight)
	}

	// Re-sync with a changed trophy list refreshes counts but never the
	// difficulty weight.
	title.DifficultyWeight = 7.5
	if err := r.store.PutTitle(title); err != nil {
		t.Fatal(err)
	}
	summary := sampleTitle()
	summary.DefinedBronze = 5
	updated, created, err := r.UpsertTitle(summary)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("created = true on second sight")
	}
	if updated.BronzeCount != 5 {
		t.Errorf("BronzeCount = %d, want refreshed 5", updated.BronzeCount)
	}
	if updated.DifficultyWeight != 7.5 {
		t.Errorf("DifficultyWeight = %.1f, operator value overwritten", updated.DifficultyWeight)
	}
}

func TestUpsertTitleSuggestsDifficulty(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	summary := sampleTitle()
	summary.ExternalID = "NPWR_MEAT"
	summary.Name = "Super Meat Boy"
	title, _, err := r.UpsertTitle(summary)
	if err != nil {
		t.Fatal(err)
	}
	if title.DifficultyWeight != models.DifficultyWeightMax {
		t.Errorf("DifficultyWeight = %.1f, want %.1f for a notorious platformer",
			title.DifficultyWeight, models.DifficultyWeightMax)
	}
}

func earnedAt(t time.Time) *time.Time { return &t }

func TestSyncTrophiesIdempotent(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	title, _, err := r.UpsertTitle(sampleTitle())
	if err != nil {
		t.Fatal(err)
	}

	defs := []psn.TrophyRecord{
		{TrophyID: 0, Tier: models.TierPlatinum, Name: "All Done"},
		{TrophyID: 1, Tier: models.TierBronze, Name: "First Steps"},
		{TrophyID: 2, Tier: models.TierBronze, Name: "Second Steps"},
	}
	earned := []psn.EarnedRecord{
		{TrophyID: 1, Earned: true, EarnedAt: earnedAt(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))},
		{TrophyID: 2, Earned: false},
	}

	first, err := r.SyncTrophies("u1", title, defs, earned)
	if err != nil {
		t.Fatalf("SyncTrophies() error = %v", err)
	}
	if first.DefinitionsCreated != 3 {
		t.Errorf("DefinitionsCreated = %d, want 3", first.DefinitionsCreated)
	}
	if first.EarnedNew != 1 {
		t.Errorf("EarnedNew = %d, want 1", first.EarnedNew)
	}

	// Identical second run: zero mutations.
	second, err := r.SyncTrophies("u1", title, defs, earned)
	if err != nil {
		t.Fatal(err)
	}
	if second != (TrophySyncResult{}) {
		t.Errorf("second run = %+v, want all zeros", second)
	}
}

func TestEarnedFlagMonotonic(t *testing.T) {
	r, s, _ := newTestReconciler(t)
	title, _, err := r.UpsertTitle(sampleTitle())
	if err != nil {
		t.Fatal(err)
	}

	when := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	_, err = r.SyncTrophies("u1", title, nil, []psn.EarnedRecord{
		{TrophyID: 1, Earned: true, EarnedAt: &when},
	})
	if err != nil {
		t.Fatal(err)
	}

	// A later payload claims the trophy is not earned. The local flag
	// and its timestamp must survive.
	result, err := r.SyncTrophies("u1", title, nil, []psn.EarnedRecord{
		{TrophyID: 1, Earned: false},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.EarnedUpdated != 0 || result.EarnedNew != 0 {
		t.Errorf("regression payload caused mutations: %+v", result)
	}

	row, err := s.GetEarned("u1", "NPWR_A", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !row.Earned {
		t.Error("Earned reverted to false")
	}
	if row.EarnedAt == nil || !row.EarnedAt.Equal(when) {
		t.Errorf("EarnedAt = %v, want original %s", row.EarnedAt, when)
	}
}

func TestEarnedAtDefaultsToSyncTime(t *testing.T) {
	r, s, clk := newTestReconciler(t)
	title, _, err := r.UpsertTitle(sampleTitle())
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.SyncTrophies("u1", title, nil, []psn.EarnedRecord{
		{TrophyID: 1, Earned: true}, // no earnedDateTime in payload
	})
	if err != nil {
		t.Fatal(err)
	}
	row, err := s.GetEarned("u1", "NPWR_A", 1)
	if err != nil {
		t.Fatal(err)
	}
	if row.EarnedAt == nil || !row.EarnedAt.Equal(clk.Now()) {
		t.Errorf("EarnedAt = %v, want sync time %s", row.EarnedAt, clk.Now())
	}
}

func TestProgressUpdates(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	title, _, err := r.UpsertTitle(sampleTitle())
	if err != nil {
		t.Fatal(err)
	}

	thirty := 30
	_, err = r.SyncTrophies("u1", title, nil, []psn.EarnedRecord{
		{TrophyID: 2, Earned: false, Progress: &thirty},
	})
	if err != nil {
		t.Fatal(err)
	}

	sixty := 60
	result, err := r.SyncTrophies("u1", title, nil, []psn.EarnedRecord{
		{TrophyID: 2, Earned: false, Progress: &sixty},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.EarnedUpdated != 1 {
		t.Errorf("EarnedUpdated = %d, want 1 for progress change", result.EarnedUpdated)
	}
}
