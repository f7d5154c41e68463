// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/trophytrack/internal/engine"
	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/scoring"
	"github.com/tomtom215/trophytrack/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeValid decodes a JSON body into v and runs struct validation.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	// Readiness means the store answers; upstream being down does not
	// make the API unready.
	if _, err := s.store.LoadWindow(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type startSyncRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

func (s *Server) handleStartSync(w http.ResponseWriter, r *http.Request) {
	var req startSyncRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	job, err := s.controller.StartSync(r.Context(), req.UserID, models.JobTypeManual)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, job)
	case errors.Is(err, engine.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "a sync job is already running for this user")
	case errors.Is(err, engine.ErrSyncedRecently):
		w.Header().Set("Retry-After", "300")
		writeError(w, http.StatusTooManyRequests, "synced too recently, try again later")
	case errors.Is(err, psn.ErrNoCredential):
		writeError(w, http.StatusUnprocessableEntity, "no active credential stored for this user")
	default:
		logging.Error().Err(err).Str("user_id", req.UserID).Msg("StartSync failed")
		writeError(w, http.StatusInternalServerError, "failed to start sync")
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.controller.GetJobStatus(chi.URLParam(r, "jobID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, job)
	case errors.Is(err, engine.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	default:
		writeError(w, http.StatusInternalServerError, "failed to load job")
	}
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.controller.CancelJob(chi.URLParam(r, "jobID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, job)
	case errors.Is(err, engine.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	default:
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
	}
}

type validateIdentityRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

func (s *Server) handleValidateIdentity(w http.ResponseWriter, r *http.Request) {
	var req validateIdentityRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	ident, err := s.controller.ValidateIdentity(r.Context(), req.UserID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ident)
	case errors.Is(err, psn.ErrNoCredential):
		writeError(w, http.StatusUnprocessableEntity, "no active credential stored for this user")
	case errors.Is(err, psn.ErrAuthExpired):
		writeError(w, http.StatusUnauthorized, "stored credential has expired")
	default:
		logging.Error().Err(err).Str("user_id", req.UserID).Msg("Identity validation failed")
		writeError(w, http.StatusBadGateway, "validation failed upstream")
	}
}

type putCredentialRequest struct {
	UserID     string `json:"user_id" validate:"required,max=128"`
	ExternalID string `json:"external_id" validate:"required,max=128"`
	Token      string `json:"token" validate:"required"`
}

func (s *Server) handlePutCredential(w http.ResponseWriter, r *http.Request) {
	var req putCredentialRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	sealed := []byte(req.Token)
	if s.vault != nil {
		var err error
		sealed, err = s.vault.Seal(req.Token)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to seal credential")
			writeError(w, http.StatusInternalServerError, "failed to store credential")
			return
		}
	}

	cred := &models.Credential{
		UserID:               req.UserID,
		ExternalID:           req.ExternalID,
		EncryptedAccessToken: sealed,
		TokenType:            "bearer",
		ExpiresAt:            psn.NewAccessCredential(req.Token).ExpiresAt,
		Active:               true,
		UpdatedAt:            time.Now().UTC(),
	}
	if err := s.store.PutCredential(cred); err != nil {
		logging.Error().Err(err).Msg("Failed to persist credential")
		writeError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type titleListResponse struct {
	Count  int            `json:"count"`
	Titles []models.Title `json:"titles"`
}

func (s *Server) handleListTitles(w http.ResponseWriter, _ *http.Request) {
	titles, err := s.store.ListTitles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list titles")
		return
	}
	writeJSON(w, http.StatusOK, titleListResponse{Count: len(titles), Titles: titles})
}

type setDifficultyRequest struct {
	Weight float64 `json:"weight" validate:"required,gte=1,lte=10"`
}

func (s *Server) handleSetDifficulty(w http.ResponseWriter, r *http.Request) {
	var req setDifficultyRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	externalID := chi.URLParam(r, "externalID")
	title, err := s.store.GetTitle(externalID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "title not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load title")
		return
	}

	title.DifficultyWeight = req.Weight
	title.UpdatedAt = time.Now().UTC()
	if err := s.store.PutTitle(title); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save title")
		return
	}
	writeJSON(w, http.StatusOK, title)
}

type userStatsResponse struct {
	*models.UserStats
	LevelName     string `json:"level_name"`
	NextThreshold int    `json:"next_threshold"`
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(chi.URLParam(r, "userID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no stats for user, run a sync first")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, userStatsResponse{
		UserStats:     stats,
		LevelName:     scoring.LevelName(stats.Level),
		NextThreshold: scoring.NextThreshold(stats.Level),
	})
}

type userTrophiesResponse struct {
	Count    int                   `json:"count"`
	Trophies []models.EarnedTrophy `json:"trophies"`
}

// handleUserTrophies returns the user's currently-earned trophies
// across all titles. Tracked-but-unearned rows are filtered out.
func (s *Server) handleUserTrophies(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListEarnedByUser(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list trophies")
		return
	}
	earned := make([]models.EarnedTrophy, 0, len(rows))
	for _, row := range rows {
		if row.Earned {
			earned = append(earned, row)
		}
	}
	writeJSON(w, http.StatusOK, userTrophiesResponse{Count: len(earned), Trophies: earned})
}

type rateLimitResponse struct {
	CallsMade      int    `json:"calls_made"`
	Limit          int    `json:"limit"`
	Remaining      int    `json:"remaining"`
	Exceeded       bool   `json:"exceeded"`
	ResetInSeconds int    `json:"reset_in_seconds"`
	WindowStart    string `json:"window_start"`
	WindowEnd      string `json:"window_end"`
	ErrorsInWindow int    `json:"errors_in_window"`
}

func (s *Server) handleRateLimitStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.limiter.Snapshot()
	writeJSON(w, http.StatusOK, rateLimitResponse{
		CallsMade:      snap.CallsMade,
		Limit:          snap.Limit,
		Remaining:      snap.Remaining(),
		Exceeded:       snap.Exceeded,
		ResetInSeconds: int(s.limiter.TimeUntilReset().Seconds()),
		WindowStart:    snap.WindowStart.UTC().Format(time.RFC3339),
		WindowEnd:      snap.WindowEnd.UTC().Format(time.RFC3339),
		ErrorsInWindow: snap.ErrorsCount,
	})
}
