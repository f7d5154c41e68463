// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package psn

import (
	"time"

	"github.com/tomtom215/trophytrack/internal/models"
)

// AccountSummary is the canonical result of validating an account
// against the upstream service.
type AccountSummary struct {
	AccountID   string
	DisplayName string
	AvatarURL   string
	TrophyLevel int
	// Public is false when the profile exists but its trophy data is
	// hidden from the caller.
	Public bool
}

// TitleSummary is one entry from the account's title list, normalized
// to the fields the reconciler consumes.
type TitleSummary struct {
	ExternalID      string
	Name            string
	Platform        string
	IconURL         string
	HasTrophyGroups bool
	SetVersion      string
	DefinedBronze   int
	DefinedSilver   int
	DefinedGold     int
	DefinedPlatinum int
	LastUpdated     *time.Time
}

// TrophyRecord is one trophy definition within a title.
type TrophyRecord struct {
	TrophyID       int
	GroupID        string
	Name           string
	Description    string
	Tier           models.Tier
	Hidden         bool
	IconURL        string
	ProgressTarget *int
}

// EarnedRecord is the per-user earned state of one trophy.
type EarnedRecord struct {
	TrophyID     int
	Earned       bool
	EarnedAt     *time.Time
	Progress     *int
	ProgressRate *int
	ProgressAt   *time.Time
}

// normalizeAccount extracts an AccountSummary. Every field defaults;
// the upstream account identity is supplied by the caller, so account
// payloads are never dropped for drift.
func normalizeAccount(p payload, accountID string) AccountSummary {
	return AccountSummary{
		AccountID:   accountID,
		DisplayName: p.str("", "onlineId", "displayName", "profile.onlineId"),
		AvatarURL:   p.str("", "avatarUrl", "avatarUrls.0.avatarUrl", "profile.avatarUrl"),
		TrophyLevel: p.integer(0, "trophyLevel", "level", "trophySummary.level"),
		Public:      true,
	}
}

// normalizeTitle extracts a TitleSummary. The external title ID is the
// only field without a default: a list entry missing it cannot be keyed
// and is dropped with ErrSchemaDrift.
func normalizeTitle(p payload) (TitleSummary, error) {
	id := p.str("", "npCommunicationId", "npCommId", "titleId")
	if id == "" {
		return TitleSummary{}, apiErr(ErrSchemaDrift, "trophyTitles", 0, "title entry missing external id")
	}
	return TitleSummary{
		ExternalID:      id,
		Name:            p.str("Unknown Title", "trophyTitleName", "titleName", "name"),
		Platform:        p.str("PS5", "trophyTitlePlatform", "platform"),
		IconURL:         p.str("", "trophyTitleIconUrl", "iconUrl"),
		HasTrophyGroups: p.boolean(false, "hasTrophyGroups"),
		SetVersion:      p.str("01.00", "trophySetVersion", "setVersion"),
		DefinedBronze:   p.integer(0, "definedTrophies.bronze", "trophies.bronze", "bronzeCount"),
		DefinedSilver:   p.integer(0, "definedTrophies.silver", "trophies.silver", "silverCount"),
		DefinedGold:     p.integer(0, "definedTrophies.gold", "trophies.gold", "goldCount"),
		DefinedPlatinum: p.integer(0, "definedTrophies.platinum", "trophies.platinum", "platinumCount"),
		LastUpdated:     p.timestamp("lastUpdatedDateTime", "lastUpdated"),
	}, nil
}

// normalizeTrophy extracts a TrophyRecord. The numeric trophy ID is the
// identity within a title; a record without one is dropped.
func normalizeTrophy(p payload) (TrophyRecord, error) {
	id := p.integer(-1, "trophyId", "id")
	if id < 0 {
		return TrophyRecord{}, apiErr(ErrSchemaDrift, "trophies", 0, "trophy entry missing id")
	}
	tier := models.Tier(p.str(string(models.TierBronze), "trophyType", "type"))
	if !tier.Valid() {
		tier = models.TierBronze
	}
	return TrophyRecord{
		TrophyID:       id,
		GroupID:        p.str("default", "trophyGroupId", "groupId"),
		Name:           p.str("Unknown Trophy", "trophyName", "name"),
		Description:    p.str("", "trophyDetail", "description", "detail"),
		Tier:           tier,
		Hidden:         p.boolean(false, "trophyHidden", "hidden"),
		IconURL:        p.str("", "trophyIconUrl", "iconUrl"),
		ProgressTarget: p.intPtr("trophyProgressTargetValue", "progressTargetValue"),
	}, nil
}

// normalizeEarned extracts an EarnedRecord for one trophy.
func normalizeEarned(p payload) (EarnedRecord, error) {
	id := p.integer(-1, "trophyId", "id")
	if id < 0 {
		return EarnedRecord{}, apiErr(ErrSchemaDrift, "earnedTrophies", 0, "earned entry missing trophy id")
	}
	return EarnedRecord{
		TrophyID:     id,
		Earned:       p.boolean(false, "earned"),
		EarnedAt:     p.timestamp("earnedDateTime", "earnedDate"),
		Progress:     p.intPtr("progress", "progressValue"),
		ProgressRate: p.intPtr("progressRate"),
		ProgressAt:   p.timestamp("progressedDateTime"),
	}, nil
}
