// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

/*
Package reconcile merges canonical upstream records into local state.

Every operation is an idempotent upsert keyed by natural key: running
the same reconciliation twice produces zero additional mutations. The
one non-obvious rule is earned-flag monotonicity — once a trophy is
recorded as earned it never reverts, even if a later payload claims
otherwise, because upstream occasionally omits earned data it
previously reported.
*/
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/scoring"
	"github.com/tomtom215/trophytrack/internal/store"
)

// Reconciler applies canonical records to the store.
type Reconciler struct {
	store store.Store
	clk   clock.Clock
}

func New(s store.Store, clk clock.Clock) *Reconciler {
	return &Reconciler{store: s, clk: clk}
}

// UpsertTitle creates or refreshes a title from an upstream summary.
// The difficulty weight is suggested from the title name on first
// sight only; an existing weight is never overwritten, since operators
// tune it by hand.
func (r *Reconciler) UpsertTitle(summary psn.TitleSummary) (*models.Title, bool, error) {
	now := r.clk.Now()

	existing, err := r.store.GetTitle(summary.ExternalID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("loading title %s: %w", summary.ExternalID, err)
	}

	if existing == nil {
		title := &models.Title{
			ExternalID:       summary.ExternalID,
			Name:             summary.Name,
			Platform:         summary.Platform,
			IconURL:          summary.IconURL,
			HasTrophyGroups:  summary.HasTrophyGroups,
			SetVersion:       summary.SetVersion,
			BronzeCount:      summary.DefinedBronze,
			SilverCount:      summary.DefinedSilver,
			GoldCount:        summary.DefinedGold,
			PlatinumCount:    summary.DefinedPlatinum,
			DifficultyWeight: scoring.SuggestDifficultyWeight(summary.Name),
			CreatedAt:        now,
			UpdatedAt:        now,
			LastSynced:       now,
		}
		if err := r.store.PutTitle(title); err != nil {
			return nil, false, fmt.Errorf("creating title %s: %w", summary.ExternalID, err)
		}
		logging.Debug().
			Str("title", title.ExternalID).
			Str("name", title.Name).
			Float64("difficulty_weight", title.DifficultyWeight).
			Msg("Created title")
		return title, true, nil
	}

	changed := existing.Name != summary.Name ||
		existing.Platform != summary.Platform ||
		existing.IconURL != summary.IconURL ||
		existing.HasTrophyGroups != summary.HasTrophyGroups ||
		existing.SetVersion != summary.SetVersion ||
		existing.BronzeCount != summary.DefinedBronze ||
		existing.SilverCount != summary.DefinedSilver ||
		existing.GoldCount != summary.DefinedGold ||
		existing.PlatinumCount != summary.DefinedPlatinum
	if changed {
		existing.Name = summary.Name
		existing.Platform = summary.Platform
		existing.IconURL = summary.IconURL
		existing.HasTrophyGroups = summary.HasTrophyGroups
		existing.SetVersion = summary.SetVersion
		existing.BronzeCount = summary.DefinedBronze
		existing.SilverCount = summary.DefinedSilver
		existing.GoldCount = summary.DefinedGold
		existing.PlatinumCount = summary.DefinedPlatinum
		existing.UpdatedAt = now
	}
	existing.LastSynced = now
	if err := r.store.PutTitle(existing); err != nil {
		return nil, false, fmt.Errorf("updating title %s: %w", summary.ExternalID, err)
	}
	return existing, false, nil
}

// TrophySyncResult counts the mutations one title's reconciliation
// performed. A no-op re-run returns all zeros.
type TrophySyncResult struct {
	DefinitionsCreated int
	DefinitionsUpdated int
	EarnedNew          int
	EarnedUpdated      int
}

// SyncTrophies reconciles trophy definitions and the user's earned
// state for one title.
func (r *Reconciler) SyncTrophies(userID string, title *models.Title, defs []psn.TrophyRecord, earned []psn.EarnedRecord) (TrophySyncResult, error) {
	var result TrophySyncResult
	now := r.clk.Now()

	for _, rec := range defs {
		created, updated, err := r.upsertDefinition(title.ExternalID, rec, now)
		if err != nil {
			return result, err
		}
		if created {
			result.DefinitionsCreated++
		} else if updated {
			result.DefinitionsUpdated++
		}
	}

	for _, rec := range earned {
		isNew, updated, err := r.upsertEarned(userID, title.ExternalID, rec, now)
		if err != nil {
			return result, err
		}
		if isNew {
			result.EarnedNew++
		} else if updated {
			result.EarnedUpdated++
		}
	}
	return result, nil
}

func (r *Reconciler) upsertDefinition(titleID string, rec psn.TrophyRecord, now time.Time) (created, updated bool, err error) {
	existing, err := r.store.GetDefinition(titleID, rec.TrophyID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, false, fmt.Errorf("loading definition %s/%d: %w", titleID, rec.TrophyID, err)
	}

	if existing == nil {
		def := &models.TrophyDefinition{
			TitleExternalID: titleID,
			TrophyID:        rec.TrophyID,
			GroupID:         rec.GroupID,
			Name:            rec.Name,
			Description:     rec.Description,
			Tier:            rec.Tier,
			IconURL:         rec.IconURL,
			Hidden:          rec.Hidden,
			ProgressTarget:  rec.ProgressTarget,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := r.store.PutDefinition(def); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	changed := existing.Name != rec.Name ||
		existing.Description != rec.Description ||
		existing.Tier != rec.Tier ||
		existing.GroupID != rec.GroupID ||
		existing.IconURL != rec.IconURL ||
		existing.Hidden != rec.Hidden ||
		!intPtrEqual(existing.ProgressTarget, rec.ProgressTarget)
	if !changed {
		return false, false, nil
	}
	existing.Name = rec.Name
	existing.Description = rec.Description
	existing.Tier = rec.Tier
	existing.GroupID = rec.GroupID
	existing.IconURL = rec.IconURL
	existing.Hidden = rec.Hidden
	existing.ProgressTarget = rec.ProgressTarget
	existing.UpdatedAt = now
	if err := r.store.PutDefinition(existing); err != nil {
		return false, false, err
	}
	return false, true, nil
}

func (r *Reconciler) upsertEarned(userID, titleID string, rec psn.EarnedRecord, now time.Time) (newlyEarned, updated bool, err error) {
	existing, err := r.store.GetEarned(userID, titleID, rec.TrophyID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, false, fmt.Errorf("loading earned %s/%s/%d: %w", userID, titleID, rec.TrophyID, err)
	}

	if existing == nil {
		row := &models.EarnedTrophy{
			UserID:          userID,
			TitleExternalID: titleID,
			TrophyID:        rec.TrophyID,
			Earned:          rec.Earned,
			ProgressValue:   rec.Progress,
			ProgressRate:    rec.ProgressRate,
			ProgressAt:      rec.ProgressAt,
			CreatedAt:       now,
			SyncedAt:        now,
		}
		if rec.Earned {
			row.EarnedAt = earnedAtOr(rec.EarnedAt, now)
		}
		if err := r.store.PutEarned(row); err != nil {
			return false, false, err
		}
		return rec.Earned, false, nil
	}

	changed := false
	if rec.Earned && !existing.Earned {
		existing.Earned = true
		// EarnedAt is set exactly once.
		if existing.EarnedAt == nil {
			existing.EarnedAt = earnedAtOr(rec.EarnedAt, now)
		}
		newlyEarned = true
		changed = true
	}
	// Monotonicity: an upstream record claiming un-earned never clears
	// the local flag.
	if !intPtrEqual(existing.ProgressValue, rec.Progress) && rec.Progress != nil {
		existing.ProgressValue = rec.Progress
		changed = true
	}
	if !intPtrEqual(existing.ProgressRate, rec.ProgressRate) && rec.ProgressRate != nil {
		existing.ProgressRate = rec.ProgressRate
		changed = true
	}
	if rec.ProgressAt != nil && !timePtrEqual(existing.ProgressAt, rec.ProgressAt) {
		existing.ProgressAt = rec.ProgressAt
		changed = true
	}
	if !changed {
		return false, false, nil
	}
	existing.SyncedAt = now
	if err := r.store.PutEarned(existing); err != nil {
		return false, false, err
	}
	return newlyEarned, !newlyEarned, nil
}

func earnedAtOr(at *time.Time, now time.Time) *time.Time {
	if at != nil {
		return at
	}
	t := now
	return &t
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
