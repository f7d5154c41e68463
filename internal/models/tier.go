// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Package models defines the persistent entities of the trophy
// synchronization engine: titles, trophy definitions, per-user earned
// trophies, per-title progress, sync jobs, cached identity validations,
// rate-limit windows, and per-user aggregates.
//
// Entities are plain structs keyed by natural keys (see each type's Key
// method); the store package persists them without any ORM layer.
package models

// Tier classifies a trophy and drives its base point value.
type Tier string

// Trophy tiers in ascending point order.
const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// BasePoints returns the fixed base point value for the tier.
// Unknown tiers score as bronze, matching how unrecognized upstream
// trophy types are degraded rather than rejected.
func (t Tier) BasePoints() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 3
	case TierGold:
		return 6
	case TierPlatinum:
		return 15
	default:
		return 1
	}
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// AllTiers lists the known tiers in ascending point order.
func AllTiers() []Tier {
	return []Tier{TierBronze, TierSilver, TierGold, TierPlatinum}
}
