// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/scoring"
	"github.com/tomtom215/trophytrack/internal/store"
)

// RecomputeProgress derives the user's per-title progress strictly from
// the earned rows currently in the store. Nothing is carried over from
// the previous progress record except StartedAt and the one-shot
// CompletedAt stamp; everything else is recomputed, so the result
// cannot drift from the underlying rows.
func (r *Reconciler) RecomputeProgress(userID string, title *models.Title) (*models.GameProgress, error) {
	now := r.clk.Now()

	earned, err := r.store.ListEarnedByTitle(userID, title.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("listing earned rows for %s: %w", title.ExternalID, err)
	}
	defs, err := r.store.ListDefinitions(title.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("listing definitions for %s: %w", title.ExternalID, err)
	}
	tierByID := make(map[int]models.Tier, len(defs))
	for _, d := range defs {
		tierByID[d.TrophyID] = d.Tier
	}

	existing, err := r.store.GetProgress(userID, title.ExternalID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading progress for %s: %w", title.ExternalID, err)
	}

	progress := &models.GameProgress{
		UserID:           userID,
		TitleExternalID:  title.ExternalID,
		MaxPossibleScore: title.MaxPossibleScore(),
		StartedAt:        now,
		UpdatedAt:        now,
	}
	if existing != nil {
		progress.StartedAt = existing.StartedAt
		progress.Completed = existing.Completed
		progress.CompletedAt = existing.CompletedAt
	}

	var lastTrophy *time.Time
	for _, row := range earned {
		if !row.Earned {
			continue
		}
		tier, ok := tierByID[row.TrophyID]
		if !ok {
			// Earned row without a definition: the definition fetch was
			// degraded at some point. Count it as bronze rather than
			// losing it.
			tier = models.TierBronze
		}
		switch tier {
		case models.TierPlatinum:
			progress.PlatinumEarned++
		case models.TierGold:
			progress.GoldEarned++
		case models.TierSilver:
			progress.SilverEarned++
		default:
			progress.BronzeEarned++
		}
		progress.TotalScoreEarned += scoring.TrophyScore(tier, title)
		if row.EarnedAt != nil && (lastTrophy == nil || row.EarnedAt.After(*lastTrophy)) {
			lastTrophy = row.EarnedAt
		}
	}
	progress.LastTrophyAt = lastTrophy

	total := title.TotalTrophyCount()
	if total > 0 {
		progress.ProgressPercentage = progress.TotalEarned() * 100 / total
		if progress.TotalEarned() >= total && !progress.Completed {
			progress.Completed = true
			completedAt := now
			if lastTrophy != nil {
				completedAt = *lastTrophy
			}
			progress.CompletedAt = &completedAt
		}
	}

	if err := r.store.PutProgress(progress); err != nil {
		return nil, fmt.Errorf("saving progress for %s: %w", title.ExternalID, err)
	}
	return progress, nil
}

// RecomputeStats rebuilds the user's aggregate stats from all progress
// rows and persists them together with the sync timestamp in a single
// write, so readers never observe a half-updated aggregate.
func (r *Reconciler) RecomputeStats(userID string) (*models.UserStats, error) {
	now := r.clk.Now()

	rows, err := r.store.ListProgressByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("listing progress for %s: %w", userID, err)
	}

	stats := &models.UserStats{
		UserID:    userID,
		UpdatedAt: now,
	}
	for _, p := range rows {
		stats.TotalScore += p.TotalScoreEarned
		stats.BronzeCount += p.BronzeEarned
		stats.SilverCount += p.SilverEarned
		stats.GoldCount += p.GoldEarned
		stats.PlatinumCount += p.PlatinumEarned
	}
	stats.Level, stats.LevelProgress = scoring.LevelFor(stats.TotalScore)
	stats.LastSyncAt = &now

	if err := r.store.PutStats(stats); err != nil {
		return nil, fmt.Errorf("saving stats for %s: %w", userID, err)
	}
	return stats, nil
}
