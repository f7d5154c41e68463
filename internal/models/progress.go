// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package models

import (
	"fmt"
	"time"
)

// GameProgress is the per-(user, title) aggregate.
//
// It is recomputed deterministically from the current EarnedTrophy rows for
// the pair, never incrementally patched. (UserID, TitleExternalID) is
// unique.
type GameProgress struct {
	UserID          string `json:"user_id"`
	TitleExternalID string `json:"title_external_id"`

	// ProgressPercentage is earned/defined*100 truncated to an integer.
	ProgressPercentage int `json:"progress_percentage"`

	BronzeEarned   int `json:"bronze_earned"`
	SilverEarned   int `json:"silver_earned"`
	GoldEarned     int `json:"gold_earned"`
	PlatinumEarned int `json:"platinum_earned"`

	TotalScoreEarned int `json:"total_score_earned"`
	MaxPossibleScore int `json:"max_possible_score"`

	// Completed is set when ProgressPercentage reaches 100; CompletedAt is
	// stamped exactly once on the transition.
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	StartedAt    time.Time  `json:"started_at"`
	LastTrophyAt *time.Time `json:"last_trophy_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Key returns the progress row's natural key.
func (p *GameProgress) Key() string {
	return ProgressKey(p.UserID, p.TitleExternalID)
}

// ProgressKey builds the natural key for a (user, title) pair.
func ProgressKey(userID, titleExternalID string) string {
	return fmt.Sprintf("%s/%s", userID, titleExternalID)
}

// TotalEarned returns the number of earned trophies across all tiers.
func (p *GameProgress) TotalEarned() int {
	return p.BronzeEarned + p.SilverEarned + p.GoldEarned + p.PlatinumEarned
}

// UserStats is the per-user aggregate: total score, level, progress toward
// the next level, and per-tier earned counts. All fields update together in
// one store transaction at the end of a sync run so a reader never observes
// a half-updated record.
type UserStats struct {
	UserID string `json:"user_id"`

	TotalScore    int     `json:"total_score"`
	Level         int     `json:"level"`
	LevelProgress float64 `json:"level_progress"`

	BronzeCount   int `json:"bronze_count"`
	SilverCount   int `json:"silver_count"`
	GoldCount     int `json:"gold_count"`
	PlatinumCount int `json:"platinum_count"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Key returns the stats row's natural key.
func (s *UserStats) Key() string { return s.UserID }
