// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package engine

import (
	"context"
	"errors"

	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/metrics"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/store"
)

// run drives one sync job to a terminal state. It owns the job struct
// exclusively; observers read the persisted copy.
func (e *Engine) run(ctx context.Context, job *models.SyncJob, cred psn.AccessCredential) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.active, job.UserID)
		e.mu.Unlock()
		metrics.SyncActiveJobs.Dec()
	}()

	started := e.clk.Now()
	job.Status = models.JobRunning
	job.StartedAt = &started
	job.CurrentTask = "validating account"
	e.persist(job)

	if before, err := e.store.GetStats(job.UserID); err == nil {
		job.ScoreBefore = before.TotalScore
		job.LevelBefore = before.Level
	}

	ident, err := e.identity.GetOrValidate(ctx, cred, job.ExternalID)
	switch {
	case err != nil:
		e.finalize(job, err)
		return
	case !ident.Valid:
		e.finalize(job, ErrIdentityInvalid)
		return
	case !ident.Public:
		// Nothing to pull from a private profile. The job still
		// completes; the warning tells the operator why it was empty.
		job.WarningsCount++
		job.RecordError("profile is private, no trophy data visible")
		e.finalize(job, nil)
		return
	}

	err = e.syncTitles(ctx, job, cred)
	e.finalize(job, err)
}

// syncTitles pages through the account's titles, reconciling each one.
// Per-title failures degrade to warnings; only a terminal upstream
// error or cancellation stops the loop.
func (e *Engine) syncTitles(ctx context.Context, job *models.SyncJob, cred psn.AccessCredential) error {
	offset := 0
	processed := 0
	for {
		job.CurrentTask = "fetching title list"
		e.persist(job)

		page, err := e.remote.ListTitles(ctx, cred, job.ExternalID, offset)
		switch {
		case err == nil:
		case errors.Is(err, psn.ErrForbidden):
			job.WarningsCount++
			job.RecordError("title list is not visible, profile may have gone private")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case psn.IsTerminal(err):
			return err
		default:
			job.WarningsCount++
			job.RecordError("title list unavailable: " + err.Error())
			return nil
		}
		job.TitlesFound += len(page.Titles)
		if page.Dropped > 0 {
			job.WarningsCount += page.Dropped
		}
		e.persist(job)

		for i := range page.Titles {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.syncOneTitle(ctx, job, cred, page.Titles[i])
			processed++
			e.updateProgress(job, processed)
			metrics.SyncTitlesProcessed.Inc()
		}

		if page.Done || processed >= e.cfg.MaxTitles {
			if !page.Done {
				job.WarningsCount++
				job.RecordError("title cap reached, remaining titles skipped")
			}
			return nil
		}
		offset = page.NextOffset
	}
}

// syncOneTitle reconciles a single title. Errors are recorded on the
// job and swallowed unless they are terminal for the whole sync, in
// which case they surface through the next page fetch anyway.
func (e *Engine) syncOneTitle(ctx context.Context, job *models.SyncJob, cred psn.AccessCredential, summary psn.TitleSummary) {
	job.CurrentTask = "syncing " + summary.Name
	e.persist(job)

	title, created, err := e.reconciler.UpsertTitle(summary)
	if err != nil {
		job.ErrorsCount++
		job.RecordError("title " + summary.ExternalID + ": " + err.Error())
		return
	}
	if created {
		job.TitlesCreated++
	} else {
		job.TitlesUpdated++
	}

	defs, droppedDefs, err := e.remote.ListTrophyDefinitions(ctx, cred, summary)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, psn.ErrForbidden) || errors.Is(err, psn.ErrNotFound) {
			job.WarningsCount++
			job.RecordError("title " + summary.ExternalID + ": trophy definitions not visible")
			return
		}
		job.ErrorsCount++
		job.RecordError("title " + summary.ExternalID + ": " + err.Error())
		return
	}

	earned, droppedEarned, err := e.remote.ListEarnedTrophies(ctx, cred, job.ExternalID, summary)
	if err != nil {
		if errors.Is(err, psn.ErrForbidden) || errors.Is(err, psn.ErrNotFound) {
			// Definitions still get reconciled below with no earned data.
			job.WarningsCount++
			earned = nil
		} else {
			job.ErrorsCount++
			job.RecordError("title " + summary.ExternalID + ": " + err.Error())
			return
		}
	}
	job.WarningsCount += droppedDefs + droppedEarned

	result, err := e.reconciler.SyncTrophies(job.UserID, title, defs, earned)
	if err != nil {
		job.ErrorsCount++
		job.RecordError("title " + summary.ExternalID + ": " + err.Error())
		return
	}
	job.TrophiesSynced += len(earned)
	job.NewlyEarned += result.EarnedNew
	if result.EarnedNew > 0 {
		metrics.SyncTrophiesNewlyEarned.Add(float64(result.EarnedNew))
	}

	if _, err := e.reconciler.RecomputeProgress(job.UserID, title); err != nil {
		job.ErrorsCount++
		job.RecordError("title " + summary.ExternalID + ": " + err.Error())
	}
}

// updateProgress advances the job's progress percentage. The value only
// ever increases; the final 100 is written by finalize.
func (e *Engine) updateProgress(job *models.SyncJob, processed int) {
	total := job.TitlesFound
	if total < processed {
		total = processed
	}
	if total == 0 {
		return
	}
	pct := processed * 99 / total
	if pct > job.ProgressPercent {
		job.ProgressPercent = pct
	}
	e.persist(job)
}

// finalize moves the job to its terminal state and recomputes the
// user's aggregate stats on any outcome that synced data.
func (e *Engine) finalize(job *models.SyncJob, runErr error) {
	now := e.clk.Now()

	switch {
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		job.Status = models.JobCancelled
	case runErr != nil:
		job.Status = models.JobFailed
		job.ErrorMessage = runErr.Error()
	default:
		job.Status = models.JobCompleted
		job.ProgressPercent = 100
	}
	job.CompletedAt = &now
	job.CurrentTask = ""

	if job.Status == models.JobCompleted || job.NewlyEarned > 0 {
		if stats, err := e.reconciler.RecomputeStats(job.UserID); err != nil {
			job.ErrorsCount++
			job.RecordError("recomputing stats: " + err.Error())
		} else {
			job.ScoreAfter = stats.TotalScore
			job.LevelAfter = stats.Level
		}
		if err := e.identity.ResetErrors(job.ExternalID); err != nil && !errors.Is(err, store.ErrNotFound) {
			logging.Warn().Err(err).Msg("Failed to reset identity error count")
		}
	} else {
		job.ScoreAfter = job.ScoreBefore
		job.LevelAfter = job.LevelBefore
	}

	e.persist(job)

	metrics.SyncJobsTotal.WithLabelValues(string(job.Status)).Inc()
	if job.StartedAt != nil {
		metrics.SyncJobDuration.Observe(now.Sub(*job.StartedAt).Seconds())
	}
	logging.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("titles_found", job.TitlesFound).
		Int("trophies_synced", job.TrophiesSynced).
		Int("newly_earned", job.NewlyEarned).
		Int("errors", job.ErrorsCount).
		Int("warnings", job.WarningsCount).
		Int("score_gained", job.ScoreGained()).
		Msg("Sync job finished")
}

// persist writes the job's current state. A failed write is logged and
// the run continues; job state is advisory, trophy data is not.
func (e *Engine) persist(job *models.SyncJob) {
	if err := e.store.PutJob(job); err != nil {
		logging.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist job state")
	}
}
