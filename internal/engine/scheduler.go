// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/models"
)

// Serve runs the background re-sync scheduler until ctx is done. When
// scheduled sync is disabled it just blocks, keeping the engine a valid
// supervised service either way. Returning only on context cancellation
// keeps the supervisor from restart-looping it.
func (e *Engine) Serve(ctx context.Context) error {
	defer e.Stop()

	if !e.cfg.Scheduled {
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().
		Dur("interval", e.cfg.ScheduledInterval).
		Msg("Scheduled sync enabled")
	ticker := time.NewTicker(e.cfg.ScheduledInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.runScheduledPass(ctx)
		}
	}
}

// runScheduledPass starts a sync for every user with an active
// credential. Rejections are expected (a user may have synced manually
// moments ago) and logged at debug only.
func (e *Engine) runScheduledPass(ctx context.Context) {
	creds, err := e.store.ListCredentials()
	if err != nil {
		logging.Error().Err(err).Msg("Scheduled sync could not list credentials")
		return
	}
	for _, cred := range creds {
		if !cred.Active {
			continue
		}
		_, err := e.StartSync(ctx, cred.UserID, models.JobTypeScheduled)
		switch {
		case err == nil:
		case errors.Is(err, ErrAlreadyRunning) || errors.Is(err, ErrSyncedRecently):
			logging.Debug().Str("user_id", cred.UserID).Err(err).Msg("Scheduled sync skipped")
		default:
			logging.Warn().Str("user_id", cred.UserID).Err(err).Msg("Scheduled sync failed to start")
		}
	}
}
