// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package reconcile

import (
	"testing"
	"time"

	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
)

func TestRecomputeProgress(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	title, _, err := r.UpsertTitle(sampleTitle()) // 2 bronze + 1 platinum, weight 3.0
	if err != nil {
		t.Fatal(err)
	}

	defs := []psn.TrophyRecord{
		{TrophyID: 0, Tier: models.TierPlatinum, Name: "All Done"},
		{TrophyID: 1, Tier: models.TierBronze, Name: "First"},
		{TrophyID: 2, Tier: models.TierBronze, Name: "Second"},
	}
	when := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	earned := []psn.EarnedRecord{
		{TrophyID: 1, Earned: true, EarnedAt: &when},
	}
	if _, err := r.SyncTrophies("u1", title, defs, earned); err != nil {
		t.Fatal(err)
	}

	progress, err := r.RecomputeProgress("u1", title)
	if err != nil {
		t.Fatalf("RecomputeProgress() error = %v", err)
	}
	if progress.BronzeEarned != 1 || progress.PlatinumEarned != 0 {
		t.Errorf("earned counts = %d bronze, %d platinum", progress.BronzeEarned, progress.PlatinumEarned)
	}
	// 1 bronze * 1 point * 3.0 weight
	if progress.TotalScoreEarned != 3 {
		t.Errorf("TotalScoreEarned = %d, want 3", progress.TotalScoreEarned)
	}
	// (2*1 + 1*15) * 3.0
	if progress.MaxPossibleScore != 51 {
		t.Errorf("MaxPossibleScore = %d, want 51", progress.MaxPossibleScore)
	}
	if progress.ProgressPercentage != 33 {
		t.Errorf("ProgressPercentage = %d, want 33", progress.ProgressPercentage)
	}
	if progress.Completed {
		t.Error("Completed = true at 1/3")
	}
	if progress.LastTrophyAt == nil || !progress.LastTrophyAt.Equal(when) {
		t.Errorf("LastTrophyAt = %v", progress.LastTrophyAt)
	}
}

func TestRecomputeProgressCompletion(t *testing.T) {
	r, _, clk := newTestReconciler(t)
	title, _, err := r.UpsertTitle(sampleTitle())
	if err != nil {
		t.Fatal(err)
	}

	defs := []psn.TrophyRecord{
		{TrophyID: 0, Tier: models.TierPlatinum},
		{TrophyID: 1, Tier: models.TierBronze},
		{TrophyID: 2, Tier: models.TierBronze},
	}
	last := time.Date(2026, 7, 2, 20, 0, 0, 0, time.UTC)
	earned := []psn.EarnedRecord{
		{TrophyID: 0, Earned: true, EarnedAt: &last},
		{TrophyID: 1, Earned: true},
		{TrophyID: 2, Earned: true},
	}
	if _, err := r.SyncTrophies("u1", title, defs, earned); err != nil {
		t.Fatal(err)
	}

	progress, err := r.RecomputeProgress("u1", title)
	if err != nil {
		t.Fatal(err)
	}
	if !progress.Completed {
		t.Fatal("Completed = false with all trophies earned")
	}
	firstStamp := *progress.CompletedAt

	// Recomputing later never moves the completion stamp.
	clk.Advance(48 * time.Hour)
	progress, err = r.RecomputeProgress("u1", title)
	if err != nil {
		t.Fatal(err)
	}
	if !progress.CompletedAt.Equal(firstStamp) {
		t.Errorf("CompletedAt moved from %s to %s", firstStamp, progress.CompletedAt)
	}
}

func TestRecomputeStats(t *testing.T) {
	r, _, _ := newTestReconciler(t)

	for _, summary := range []psn.TitleSummary{
		{ExternalID: "NPWR_A", Name: "Alpha", DefinedBronze: 1},
		{ExternalID: "NPWR_B", Name: "Beta", DefinedBronze: 1},
	} {
		title, _, err := r.UpsertTitle(summary)
		if err != nil {
			t.Fatal(err)
		}
		defs := []psn.TrophyRecord{{TrophyID: 0, Tier: models.TierBronze}}
		earned := []psn.EarnedRecord{{TrophyID: 0, Earned: true}}
		if _, err := r.SyncTrophies("u1", title, defs, earned); err != nil {
			t.Fatal(err)
		}
		if _, err := r.RecomputeProgress("u1", title); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := r.RecomputeStats("u1")
	if err != nil {
		t.Fatalf("RecomputeStats() error = %v", err)
	}
	// 2 bronze at default weight: 2 * 1 * 3.0
	if stats.TotalScore != 6 {
		t.Errorf("TotalScore = %d, want 6", stats.TotalScore)
	}
	if stats.BronzeCount != 2 {
		t.Errorf("BronzeCount = %d, want 2", stats.BronzeCount)
	}
	if stats.Level != 1 {
		t.Errorf("Level = %d, want 1", stats.Level)
	}
	if stats.LastSyncAt == nil {
		t.Error("LastSyncAt = nil")
	}
}
