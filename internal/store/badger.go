// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package store

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/metrics"
	"github.com/tomtom215/trophytrack/internal/models"
)

// Key prefixes. Natural keys follow the prefix; composite keys join
// their parts with "/" so per-user and per-title prefix scans work.
const (
	prefixTitle      = "title:"
	prefixDefinition = "def:"
	prefixEarned     = "earned:"
	prefixProgress   = "progress:"
	prefixStats      = "stats:"
	prefixJob        = "job:"
	prefixIdentity   = "identity:"
	prefixCredential = "cred:"
	keyWindow        = "window:psn"
)

// BadgerStore implements Store on an embedded Badger database.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) the database at path. An empty path opens an
// in-memory database, used in tests and by database.in_memory.
func Open(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logging.Error().Msgf("badger: "+format, args...)
}
func (badgerLogger) Warningf(format string, args ...any) {
	logging.Warn().Msgf("badger: "+format, args...)
}
func (badgerLogger) Infof(format string, args ...any) {
	logging.Debug().Msgf("badger: "+format, args...)
}
func (badgerLogger) Debugf(format string, args ...any) {
	logging.Debug().Msgf("badger: "+format, args...)
}

// getJSON loads and unmarshals one key inside a read transaction.
func getJSON[T any](db *badger.DB, entity, key string) (*T, error) {
	metrics.StoreOperationsTotal.WithLabelValues(entity, "get").Inc()
	var out T
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(entity, "get").Inc()
		return nil, fmt.Errorf("getting %s %q: %w", entity, key, err)
	}
	return &out, nil
}

// putJSON marshals and writes one key inside a write transaction.
func putJSON(db *badger.DB, entity, key string, v any) error {
	metrics.StoreOperationsTotal.WithLabelValues(entity, "put").Inc()
	data, err := json.Marshal(v)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(entity, "put").Inc()
		return fmt.Errorf("marshaling %s %q: %w", entity, key, err)
	}
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(entity, "put").Inc()
		return fmt.Errorf("putting %s %q: %w", entity, key, err)
	}
	return nil
}

// scanJSON collects every value under a key prefix.
func scanJSON[T any](db *badger.DB, entity, prefix string) ([]T, error) {
	metrics.StoreOperationsTotal.WithLabelValues(entity, "scan").Inc()
	var out []T
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var v T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(entity, "scan").Inc()
		return nil, fmt.Errorf("scanning %s prefix %q: %w", entity, prefix, err)
	}
	return out, nil
}

func (s *BadgerStore) GetTitle(externalID string) (*models.Title, error) {
	return getJSON[models.Title](s.db, "title", prefixTitle+externalID)
}

func (s *BadgerStore) PutTitle(title *models.Title) error {
	return putJSON(s.db, "title", prefixTitle+title.Key(), title)
}

func (s *BadgerStore) ListTitles() ([]models.Title, error) {
	return scanJSON[models.Title](s.db, "title", prefixTitle)
}

func (s *BadgerStore) GetDefinition(titleExternalID string, trophyID int) (*models.TrophyDefinition, error) {
	return getJSON[models.TrophyDefinition](s.db, "definition",
		prefixDefinition+models.DefinitionKey(titleExternalID, trophyID))
}

func (s *BadgerStore) PutDefinition(def *models.TrophyDefinition) error {
	return putJSON(s.db, "definition",
		prefixDefinition+models.DefinitionKey(def.TitleExternalID, def.TrophyID), def)
}

func (s *BadgerStore) ListDefinitions(titleExternalID string) ([]models.TrophyDefinition, error) {
	return scanJSON[models.TrophyDefinition](s.db, "definition",
		prefixDefinition+titleExternalID+"/")
}

func (s *BadgerStore) GetEarned(userID, titleExternalID string, trophyID int) (*models.EarnedTrophy, error) {
	return getJSON[models.EarnedTrophy](s.db, "earned",
		prefixEarned+models.EarnedKey(userID, titleExternalID, trophyID))
}

func (s *BadgerStore) PutEarned(earned *models.EarnedTrophy) error {
	return putJSON(s.db, "earned",
		prefixEarned+models.EarnedKey(earned.UserID, earned.TitleExternalID, earned.TrophyID), earned)
}

func (s *BadgerStore) ListEarnedByTitle(userID, titleExternalID string) ([]models.EarnedTrophy, error) {
	return scanJSON[models.EarnedTrophy](s.db, "earned",
		prefixEarned+userID+"/"+titleExternalID+"/")
}

func (s *BadgerStore) ListEarnedByUser(userID string) ([]models.EarnedTrophy, error) {
	return scanJSON[models.EarnedTrophy](s.db, "earned", prefixEarned+userID+"/")
}

func (s *BadgerStore) GetProgress(userID, titleExternalID string) (*models.GameProgress, error) {
	return getJSON[models.GameProgress](s.db, "progress",
		prefixProgress+models.ProgressKey(userID, titleExternalID))
}

func (s *BadgerStore) PutProgress(progress *models.GameProgress) error {
	return putJSON(s.db, "progress",
		prefixProgress+models.ProgressKey(progress.UserID, progress.TitleExternalID), progress)
}

func (s *BadgerStore) ListProgressByUser(userID string) ([]models.GameProgress, error) {
	return scanJSON[models.GameProgress](s.db, "progress", prefixProgress+userID+"/")
}

func (s *BadgerStore) GetStats(userID string) (*models.UserStats, error) {
	return getJSON[models.UserStats](s.db, "stats", prefixStats+userID)
}

func (s *BadgerStore) PutStats(stats *models.UserStats) error {
	return putJSON(s.db, "stats", prefixStats+stats.Key(), stats)
}

func (s *BadgerStore) GetJob(jobID string) (*models.SyncJob, error) {
	return getJSON[models.SyncJob](s.db, "job", prefixJob+jobID)
}

func (s *BadgerStore) PutJob(job *models.SyncJob) error {
	return putJSON(s.db, "job", prefixJob+job.ID, job)
}

// ListJobsByUser scans all jobs and filters. Job volume is small (one
// manual sync per user per 5 minutes at most), so a secondary index is
// not worth its write amplification.
func (s *BadgerStore) ListJobsByUser(userID string) ([]models.SyncJob, error) {
	all, err := scanJSON[models.SyncJob](s.db, "job", prefixJob)
	if err != nil {
		return nil, err
	}
	jobs := all[:0]
	for _, j := range all {
		if j.UserID == userID {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (s *BadgerStore) GetIdentity(externalID string) (*models.IdentityValidation, error) {
	return getJSON[models.IdentityValidation](s.db, "identity", prefixIdentity+externalID)
}

func (s *BadgerStore) PutIdentity(identity *models.IdentityValidation) error {
	return putJSON(s.db, "identity", prefixIdentity+identity.ExternalID, identity)
}

func (s *BadgerStore) GetCredential(userID string) (*models.Credential, error) {
	return getJSON[models.Credential](s.db, "credential", prefixCredential+userID)
}

func (s *BadgerStore) PutCredential(cred *models.Credential) error {
	return putJSON(s.db, "credential", prefixCredential+cred.UserID, cred)
}

func (s *BadgerStore) ListCredentials() ([]models.Credential, error) {
	return scanJSON[models.Credential](s.db, "credential", prefixCredential)
}

func (s *BadgerStore) LoadWindow() (*models.RateLimitWindow, error) {
	w, err := getJSON[models.RateLimitWindow](s.db, "window", keyWindow)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return w, err
}

func (s *BadgerStore) SaveWindow(window models.RateLimitWindow) error {
	return putJSON(s.db, "window", keyWindow, window)
}
