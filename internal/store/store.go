// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Package store persists trophy records in an embedded Badger database.
// Each entity type lives under its own key prefix; values are JSON.
// All records are keyed by natural key, so every write is an upsert.
package store

import (
	"errors"

	"github.com/tomtom215/trophytrack/internal/models"
)

// ErrNotFound is returned when no record exists for the given key.
var ErrNotFound = errors.New("store: record not found")

// Store is the persistence surface for the sync engine. Implementations
// must be safe for concurrent use.
type Store interface {
	// Titles
	GetTitle(externalID string) (*models.Title, error)
	PutTitle(title *models.Title) error
	ListTitles() ([]models.Title, error)

	// Trophy definitions
	GetDefinition(titleExternalID string, trophyID int) (*models.TrophyDefinition, error)
	PutDefinition(def *models.TrophyDefinition) error
	ListDefinitions(titleExternalID string) ([]models.TrophyDefinition, error)

	// Per-user earned state
	GetEarned(userID, titleExternalID string, trophyID int) (*models.EarnedTrophy, error)
	PutEarned(earned *models.EarnedTrophy) error
	ListEarnedByTitle(userID, titleExternalID string) ([]models.EarnedTrophy, error)
	ListEarnedByUser(userID string) ([]models.EarnedTrophy, error)

	// Per-title progress
	GetProgress(userID, titleExternalID string) (*models.GameProgress, error)
	PutProgress(progress *models.GameProgress) error
	ListProgressByUser(userID string) ([]models.GameProgress, error)

	// Aggregate stats
	GetStats(userID string) (*models.UserStats, error)
	PutStats(stats *models.UserStats) error

	// Sync jobs
	GetJob(jobID string) (*models.SyncJob, error)
	PutJob(job *models.SyncJob) error
	ListJobsByUser(userID string) ([]models.SyncJob, error)

	// Identity validation cache
	GetIdentity(externalID string) (*models.IdentityValidation, error)
	PutIdentity(identity *models.IdentityValidation) error

	// Credentials (tokens sealed by the caller before they arrive here)
	GetCredential(userID string) (*models.Credential, error)
	PutCredential(cred *models.Credential) error
	ListCredentials() ([]models.Credential, error)

	// Rate limit window persistence, satisfying ratelimit.WindowStore.
	LoadWindow() (*models.RateLimitWindow, error)
	SaveWindow(window models.RateLimitWindow) error

	Close() error
}
