// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

/*
Package engine runs sync jobs.

One job per user at a time: a second StartSync while a job is pending
or running is rejected, and a successful sync within the minimum
interval is rejected as too recent. Jobs move through a strict state
machine (pending -> running -> completed/failed/cancelled) and every
state change is persisted, so job status survives a restart even though
the in-flight work does not.

A job fails outright only when the upstream credential is dead or the
service is unreachable. Everything else — private profiles, dropped
records, single titles erroring — degrades to warnings on a job that
still completes.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/identity"
	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/metrics"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/reconcile"
	"github.com/tomtom215/trophytrack/internal/store"
)

var (
	// ErrAlreadyRunning rejects a StartSync while the user has an
	// active job.
	ErrAlreadyRunning = errors.New("engine: sync already running for user")

	// ErrSyncedRecently rejects a StartSync inside the minimum interval
	// after the last successful sync.
	ErrSyncedRecently = errors.New("engine: synced too recently")

	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("engine: job not found")

	// ErrIdentityInvalid means the linked account does not exist
	// upstream.
	ErrIdentityInvalid = errors.New("engine: linked account is not valid")
)

// remote is the slice of the upstream adapter the engine consumes.
type remote interface {
	ListTitles(ctx context.Context, cred psn.AccessCredential, accountID string, offset int) (psn.TitlesPage, error)
	ListTrophyDefinitions(ctx context.Context, cred psn.AccessCredential, title psn.TitleSummary) ([]psn.TrophyRecord, int, error)
	ListEarnedTrophies(ctx context.Context, cred psn.AccessCredential, accountID string, title psn.TitleSummary) ([]psn.EarnedRecord, int, error)
}

// Config bounds sync job behavior.
type Config struct {
	MaxTitles   int
	MinInterval time.Duration

	Scheduled         bool
	ScheduledInterval time.Duration
}

// Engine is the sync job controller.
type Engine struct {
	store      store.Store
	remote     remote
	identity   *identity.Cache
	reconciler *reconcile.Reconciler
	vault      *psn.Vault
	clk        clock.Clock
	cfg        Config

	mu     sync.Mutex
	active map[string]context.CancelFunc // userID -> cancel for the running job
	wg     sync.WaitGroup
}

// New creates an Engine. The vault may be nil when credentials are
// stored unsealed (tests only).
func New(s store.Store, r remote, idc *identity.Cache, rec *reconcile.Reconciler, vault *psn.Vault, clk clock.Clock, cfg Config) *Engine {
	return &Engine{
		store:      s,
		remote:     r,
		identity:   idc,
		reconciler: rec,
		vault:      vault,
		clk:        clk,
		cfg:        cfg,
		active:     make(map[string]context.CancelFunc),
	}
}

// StartSync creates and launches a sync job for the user. The returned
// job is a snapshot in the pending state; progress is observed through
// GetJobStatus.
func (e *Engine) StartSync(ctx context.Context, userID string, jobType models.JobType) (*models.SyncJob, error) {
	cred, externalID, err := e.loadCredential(userID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if _, running := e.active[userID]; running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	if err := e.checkThrottle(userID); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	now := e.clk.Now()
	job := &models.SyncJob{
		ID:         uuid.NewString(),
		UserID:     userID,
		ExternalID: externalID,
		Type:       jobType,
		Status:     models.JobPending,
		CreatedAt:  now,
	}
	if err := e.store.PutJob(job); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("creating job: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.active[userID] = cancel
	metrics.SyncActiveJobs.Inc()
	e.wg.Add(1)
	e.mu.Unlock()

	snapshot := *job
	go e.run(runCtx, job, cred)

	logging.Info().
		Str("job_id", job.ID).
		Str("user_id", userID).
		Str("type", string(jobType)).
		Msg("Sync job started")
	return &snapshot, nil
}

// checkThrottle enforces the minimum interval between successful syncs.
// Callers must hold e.mu.
func (e *Engine) checkThrottle(userID string) error {
	if e.cfg.MinInterval <= 0 {
		return nil
	}
	jobs, err := e.store.ListJobsByUser(userID)
	if err != nil {
		return fmt.Errorf("checking sync history: %w", err)
	}
	cutoff := e.clk.Now().Add(-e.cfg.MinInterval)
	for _, j := range jobs {
		if j.Status == models.JobCompleted && j.CompletedAt != nil && j.CompletedAt.After(cutoff) {
			return ErrSyncedRecently
		}
	}
	return nil
}

// loadCredential resolves the user's active credential, unsealing the
// token when a vault is configured.
func (e *Engine) loadCredential(userID string) (psn.AccessCredential, string, error) {
	stored, err := e.store.GetCredential(userID)
	if errors.Is(err, store.ErrNotFound) {
		return psn.AccessCredential{}, "", psn.ErrNoCredential
	}
	if err != nil {
		return psn.AccessCredential{}, "", fmt.Errorf("loading credential: %w", err)
	}
	if !stored.Active {
		return psn.AccessCredential{}, "", psn.ErrNoCredential
	}

	token := string(stored.EncryptedAccessToken)
	if e.vault != nil {
		token, err = e.vault.Open(stored.EncryptedAccessToken)
		if err != nil {
			return psn.AccessCredential{}, "", fmt.Errorf("unsealing credential: %w", err)
		}
	}
	cred := psn.NewAccessCredential(token)
	if cred.ExpiresAt.IsZero() && !stored.ExpiresAt.IsZero() {
		cred.ExpiresAt = stored.ExpiresAt
	}
	return cred, stored.ExternalID, nil
}

// GetJobStatus returns the persisted state of a job.
func (e *Engine) GetJobStatus(jobID string) (*models.SyncJob, error) {
	job, err := e.store.GetJob(jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// CancelJob requests cancellation. Terminal jobs are a no-op and the
// current state is returned. A running job stops cooperatively at the
// next title boundary; a pending or orphaned job is cancelled
// immediately.
func (e *Engine) CancelJob(jobID string) (*models.SyncJob, error) {
	job, err := e.GetJobStatus(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	e.mu.Lock()
	cancel, running := e.active[job.UserID]
	e.mu.Unlock()

	if running {
		cancel()
		logging.Info().Str("job_id", jobID).Msg("Sync job cancellation requested")
		return job, nil
	}

	// No runner owns this job (left over from a previous process).
	job.Status = models.JobCancelled
	now := e.clk.Now()
	job.CompletedAt = &now
	if err := e.store.PutJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// ValidateIdentity checks the user's linked account through the
// validation cache.
func (e *Engine) ValidateIdentity(ctx context.Context, userID string) (*models.IdentityValidation, error) {
	cred, externalID, err := e.loadCredential(userID)
	if err != nil {
		return nil, err
	}
	return e.identity.GetOrValidate(ctx, cred, externalID)
}

// Stop cancels all running jobs and waits for their runners to
// finalize.
func (e *Engine) Stop() {
	e.mu.Lock()
	for _, cancel := range e.active {
		cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
}
