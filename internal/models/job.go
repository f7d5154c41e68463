// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package models

import "time"

// JobStatus is the sync job state machine state.
//
// Transitions: pending -> running -> {completed, failed, cancelled}.
// Terminal states are final; a job is never reopened. Partial success is
// represented as completed with nonzero error/warning counters; there is no
// separate terminal state for it.
type JobStatus string

// Job states.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobCancelled
	case JobRunning:
		return next == JobCompleted || next == JobFailed || next == JobCancelled
	default:
		return false
	}
}

// JobType distinguishes operator-triggered syncs from scheduled re-syncs.
type JobType string

// Job types.
const (
	JobTypeManual    JobType = "manual"
	JobTypeScheduled JobType = "scheduled"
)

// maxRetainedErrors bounds the per-job error message list.
const maxRetainedErrors = 10

// SyncJob is one engine run. Created at job start, mutated only by the
// controller, finalized exactly once.
type SyncJob struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	ExternalID string  `json:"external_id"`
	Type       JobType `json:"type"`

	Status JobStatus `json:"status"`

	// ProgressPercent only increases; CurrentTask is free text for
	// observability.
	ProgressPercent int    `json:"progress_percent"`
	CurrentTask     string `json:"current_task,omitempty"`

	TitlesFound    int `json:"titles_found"`
	TitlesCreated  int `json:"titles_created"`
	TitlesUpdated  int `json:"titles_updated"`
	TrophiesSynced int `json:"trophies_synced"`
	NewlyEarned    int `json:"newly_earned"`
	ErrorsCount    int `json:"errors_count"`
	WarningsCount  int `json:"warnings_count"`

	ScoreBefore int `json:"score_before"`
	ScoreAfter  int `json:"score_after"`
	LevelBefore int `json:"level_before"`
	LevelAfter  int `json:"level_after"`

	// ErrorMessage is the terminal failure message; Errors retains the
	// first few per-title error strings for diagnostics.
	ErrorMessage string   `json:"error_message,omitempty"`
	Errors       []string `json:"errors,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Key returns the job's natural key.
func (j *SyncJob) Key() string { return j.ID }

// ScoreGained returns the score delta over the run.
func (j *SyncJob) ScoreGained() int { return j.ScoreAfter - j.ScoreBefore }

// LevelGained returns the level delta over the run.
func (j *SyncJob) LevelGained() int { return j.LevelAfter - j.LevelBefore }

// Duration returns elapsed run time, zero until the job has started.
func (j *SyncJob) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(*j.StartedAt)
	}
	return 0
}

// RecordError appends msg to the retained error list, capped at
// maxRetainedErrors. Callers bump ErrorsCount or WarningsCount
// themselves; the list holds both kinds.
func (j *SyncJob) RecordError(msg string) {
	if len(j.Errors) < maxRetainedErrors {
		j.Errors = append(j.Errors, msg)
	}
}
