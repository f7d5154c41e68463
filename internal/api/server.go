// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Package api exposes the sync engine over HTTP: job control, identity
// validation, credential management, title tuning, and user stats,
// plus health and Prometheus endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/trophytrack/internal/config"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/ratelimit"
	"github.com/tomtom215/trophytrack/internal/store"
)

// Controller is the engine surface the API consumes.
type Controller interface {
	StartSync(ctx context.Context, userID string, jobType models.JobType) (*models.SyncJob, error)
	GetJobStatus(jobID string) (*models.SyncJob, error)
	CancelJob(jobID string) (*models.SyncJob, error)
	ValidateIdentity(ctx context.Context, userID string) (*models.IdentityValidation, error)
}

// Server bundles the router and its dependencies.
type Server struct {
	controller Controller
	store      store.Store
	limiter    *ratelimit.Limiter
	vault      *psn.Vault
	validate   *validator.Validate
	cfg        config.ServerConfig
	httpServer *http.Server
}

// NewServer builds the HTTP server. The vault may be nil, in which
// case the credential endpoint stores tokens unsealed.
func NewServer(controller Controller, s store.Store, limiter *ratelimit.Limiter, vault *psn.Vault, cfg config.ServerConfig) *Server {
	srv := &Server{
		controller: controller,
		store:      s,
		limiter:    limiter,
		vault:      vault,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		cfg:        cfg,
	}
	srv.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(metricsMiddleware)
	r.Use(chimiddleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(httprate.LimitByIP(s.cfg.RequestsPerMinute, time.Minute))

	r.Get("/healthz", s.handleLive)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(perClientLimit(s.cfg.SyncStartPerMinute)).
			Post("/sync", s.handleStartSync)
		r.Get("/sync/{jobID}", s.handleJobStatus)
		r.Delete("/sync/{jobID}", s.handleCancelJob)

		r.Post("/identity/validate", s.handleValidateIdentity)
		r.Put("/credentials", s.handlePutCredential)
		r.Get("/titles", s.handleListTitles)
		r.Patch("/titles/{externalID}/difficulty", s.handleSetDifficulty)
		r.Get("/users/{userID}/stats", s.handleUserStats)
		r.Get("/users/{userID}/trophies", s.handleUserTrophies)
		r.Get("/ratelimit", s.handleRateLimitStatus)
	})
	return r
}

// ListenAndServe runs the HTTP server until Shutdown.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
