// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package models

import (
	"fmt"
	"time"
)

// TrophyDefinition is one trophy belonging to a Title.
//
// (TitleExternalID, TrophyID) is unique. Definitions are created lazily as
// encountered and immutable once created except for cosmetic fields (name,
// description, icon).
type TrophyDefinition struct {
	TitleExternalID string `json:"title_external_id"`

	// TrophyID is the upstream trophy id, unique within the title.
	TrophyID int    `json:"trophy_id"`
	GroupID  string `json:"group_id,omitempty"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tier        Tier   `json:"tier"`
	IconURL     string `json:"icon_url,omitempty"`
	Hidden      bool   `json:"hidden"`

	// ProgressTarget is the numeric completion target for trophies that
	// track progress; nil when the trophy has no target.
	ProgressTarget *int `json:"progress_target,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the definition's natural key.
func (d *TrophyDefinition) Key() string {
	return DefinitionKey(d.TitleExternalID, d.TrophyID)
}

// DefinitionKey builds the natural key for a (title, trophy id) pair.
func DefinitionKey(titleExternalID string, trophyID int) string {
	return fmt.Sprintf("%s/%d", titleExternalID, trophyID)
}

// EarnedTrophy joins a user to a TrophyDefinition.
//
// (UserID, TitleExternalID, TrophyID) is unique. Earned transitions
// false -> true only and EarnedAt is set exactly once; upstream data that
// reports an already-earned trophy as not earned is stale and ignored.
type EarnedTrophy struct {
	UserID          string `json:"user_id"`
	TitleExternalID string `json:"title_external_id"`
	TrophyID        int    `json:"trophy_id"`

	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`

	// Progress tracking for trophies with a target.
	ProgressValue *int       `json:"progress_value,omitempty"`
	ProgressRate  *int       `json:"progress_rate,omitempty"`
	ProgressAt    *time.Time `json:"progress_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	SyncedAt  time.Time `json:"synced_at"`
}

// Key returns the earned row's natural key.
func (e *EarnedTrophy) Key() string {
	return EarnedKey(e.UserID, e.TitleExternalID, e.TrophyID)
}

// EarnedKey builds the natural key for a (user, title, trophy id) triple.
func EarnedKey(userID, titleExternalID string, trophyID int) string {
	return fmt.Sprintf("%s/%s/%d", userID, titleExternalID, trophyID)
}
