// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Package identity caches account validation results so repeated syncs
// do not spend rate limit budget re-checking an account that was
// confirmed valid recently. Entries go stale after a configurable age
// (24 hours by default) and are revalidated on next use.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/metrics"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/store"
)

// validator is the upstream call the cache shields. Satisfied by
// *psn.Adapter.
type validator interface {
	ValidateAccount(ctx context.Context, cred psn.AccessCredential, accountID string) (psn.AccountSummary, error)
}

// Cache validates external accounts with staleness-bounded caching.
type Cache struct {
	store     store.Store
	validator validator
	maxAge    time.Duration
	clk       clock.Clock
}

// NewCache creates a Cache. maxAge bounds how long a validation result
// is trusted without re-checking upstream.
func NewCache(s store.Store, v validator, maxAge time.Duration, clk clock.Clock) *Cache {
	return &Cache{store: s, validator: v, maxAge: maxAge, clk: clk}
}

// GetOrValidate returns the cached validation for externalID, calling
// upstream only when no fresh entry exists.
//
// A private profile is a successful validation with Public false. Not
// found upstream is a successful validation with Valid false: the
// answer "this account does not exist" is itself cacheable. Transient
// failures increment the entry's consecutive error count, creating a
// counter-only entry for a never-validated id, and return the error.
func (c *Cache) GetOrValidate(ctx context.Context, cred psn.AccessCredential, externalID string) (*models.IdentityValidation, error) {
	now := c.clk.Now()

	cached, err := c.store.GetIdentity(externalID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if cached != nil && !cached.Stale(now, c.maxAge) {
		metrics.IdentityCacheHits.Inc()
		return cached, nil
	}
	metrics.IdentityCacheMisses.Inc()

	summary, err := c.validator.ValidateAccount(ctx, cred, externalID)
	switch {
	case err == nil:
		entry := &models.IdentityValidation{
			ExternalID:  externalID,
			Valid:       true,
			Public:      summary.Public,
			DisplayName: summary.DisplayName,
			AvatarURL:   summary.AvatarURL,
			TrophyLevel: summary.TrophyLevel,
			LastChecked: now,
		}
		if err := c.store.PutIdentity(entry); err != nil {
			return nil, err
		}
		return entry, nil

	case errors.Is(err, psn.ErrNotFound):
		entry := &models.IdentityValidation{
			ExternalID:  externalID,
			Valid:       false,
			LastChecked: now,
		}
		if err := c.store.PutIdentity(entry); err != nil {
			return nil, err
		}
		return entry, nil

	default:
		// Upstream unreachable or auth problem. Keep whatever we knew
		// and count the failure; repeated failures signal the account
		// for operator attention rather than silent retry forever. A
		// never-validated id gets a counter-only row with a zero
		// LastChecked, which is always stale, so the failure is never
		// served back as a cached verdict.
		if cached == nil {
			cached = &models.IdentityValidation{ExternalID: externalID}
		}
		cached.ConsecutiveErrors++
		if putErr := c.store.PutIdentity(cached); putErr != nil {
			logging.Warn().Err(putErr).Str("external_id", externalID).
				Msg("Failed to record validation error count")
		}
		if cached.ShouldStopSyncing() {
			logging.Warn().
				Str("external_id", externalID).
				Int("consecutive_errors", cached.ConsecutiveErrors).
				Msg("Account has repeated validation failures")
		}
		return nil, err
	}
}

// MarkStale forces revalidation on next use by backdating the entry
// past the staleness window. Missing entries are a no-op.
func (c *Cache) MarkStale(externalID string) error {
	cached, err := c.store.GetIdentity(externalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	cached.LastChecked = c.clk.Now().Add(-c.maxAge - time.Second)
	return c.store.PutIdentity(cached)
}

// ResetErrors clears the consecutive error count after a successful
// sync touch.
func (c *Cache) ResetErrors(externalID string) error {
	cached, err := c.store.GetIdentity(externalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if cached.ConsecutiveErrors == 0 {
		return nil
	}
	cached.ConsecutiveErrors = 0
	return c.store.PutIdentity(cached)
}
