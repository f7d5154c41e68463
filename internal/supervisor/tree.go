// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Package supervisor assembles the suture supervision tree. The root
// supervisor owns the long-running services (sync engine scheduler,
// HTTP API) and restarts them with backoff when they fail.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/trophytrack/internal/logging"
)

// Tree is the root supervisor plus handles to everything it runs.
type Tree struct {
	root *suture.Supervisor
}

// NewTree creates the root supervisor with suture events routed
// through the structured logger.
func NewTree() *Tree {
	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
	root := suture.New("trophytrack", suture.Spec{
		EventHook:        hook,
		FailureDecay:     30,
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
	})
	return &Tree{root: root}
}

// Add registers a service with the root supervisor.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
