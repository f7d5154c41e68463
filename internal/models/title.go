// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package models

import "time"

// Difficulty weight bounds and default. The default is the "AAA standard"
// multiplier; weights outside the bounds are clamped on write.
const (
	DifficultyWeightMin     = 1.0
	DifficultyWeightMax     = 10.0
	DifficultyWeightDefault = 3.0
)

// Title is one external game/application with its own trophy set.
//
// Titles are created on first encounter during a sync, have their mutable
// fields (name, counts, icon) refreshed on later syncs, and are never
// deleted. ExternalID is the natural key.
type Title struct {
	// ExternalID is the upstream communication id (unique key).
	ExternalID string `json:"external_id"`

	Name     string `json:"name"`
	Platform string `json:"platform"`
	IconURL  string `json:"icon_url,omitempty"`

	HasTrophyGroups bool   `json:"has_trophy_groups"`
	SetVersion      string `json:"set_version,omitempty"`

	// Defined trophy counts per tier. PlatinumCount is 0 or 1.
	BronzeCount   int `json:"bronze_count"`
	SilverCount   int `json:"silver_count"`
	GoldCount     int `json:"gold_count"`
	PlatinumCount int `json:"platinum_count"`

	// DifficultyWeight multiplies every trophy's base points for this
	// title. Assigned once at creation; retroactive admin changes are
	// picked up because scores are always recomputed from scratch.
	DifficultyWeight float64 `json:"difficulty_weight"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastSynced time.Time `json:"last_synced"`
}

// Key returns the title's natural key.
func (t *Title) Key() string { return t.ExternalID }

// TotalTrophyCount returns the number of defined trophies across all tiers.
func (t *Title) TotalTrophyCount() int {
	return t.BronzeCount + t.SilverCount + t.GoldCount + t.PlatinumCount
}

// MaxPossibleScore returns the score for earning every defined trophy.
func (t *Title) MaxPossibleScore() int {
	total := float64(t.BronzeCount)*float64(TierBronze.BasePoints()) +
		float64(t.SilverCount)*float64(TierSilver.BasePoints()) +
		float64(t.GoldCount)*float64(TierGold.BasePoints()) +
		float64(t.PlatinumCount)*float64(TierPlatinum.BasePoints())
	return int(total * t.DifficultyWeight)
}

// ClampDifficultyWeight bounds w to the valid range, substituting the
// default for non-positive values.
func ClampDifficultyWeight(w float64) float64 {
	if w <= 0 {
		return DifficultyWeightDefault
	}
	if w < DifficultyWeightMin {
		return DifficultyWeightMin
	}
	if w > DifficultyWeightMax {
		return DifficultyWeightMax
	}
	return w
}
