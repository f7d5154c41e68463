// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package models

import "time"

// ConsecutiveErrorPolicy is the number of consecutive validation failures
// after which callers should stop attempting syncs for an id. The cache
// exposes the counter; it does not enforce the policy.
const ConsecutiveErrorPolicy = 5

// IdentityValidation is the cached validation result for one external
// account id. Upserted on every validation attempt.
type IdentityValidation struct {
	// ExternalID is the account id queried upstream (natural key).
	ExternalID string `json:"external_id"`

	Valid  bool `json:"valid"`
	Public bool `json:"public"`

	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	TrophyLevel int    `json:"trophy_level,omitempty"`

	LastChecked       time.Time `json:"last_checked"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
}

// Key returns the validation row's natural key.
func (v *IdentityValidation) Key() string { return v.ExternalID }

// Stale reports whether the cached result is older than maxAge at now.
func (v *IdentityValidation) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(v.LastChecked) >= maxAge
}

// ShouldStopSyncing reports the five-consecutive-failures policy signal.
func (v *IdentityValidation) ShouldStopSyncing() bool {
	return v.ConsecutiveErrors >= ConsecutiveErrorPolicy
}
