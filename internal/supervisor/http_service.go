// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/trophytrack/internal/api"
	"github.com/tomtom215/trophytrack/internal/logging"
)

// HTTPService adapts the API server's ListenAndServe/Shutdown pair to
// suture's Serve(ctx) contract.
type HTTPService struct {
	server          *api.Server
	addr            string
	shutdownTimeout time.Duration
}

func NewHTTPService(server *api.Server, addr string, shutdownTimeout time.Duration) *HTTPService {
	return &HTTPService{server: server, addr: addr, shutdownTimeout: shutdownTimeout}
}

// Serve runs the HTTP server until ctx is cancelled, then drains
// in-flight requests within the shutdown timeout.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown was not clean")
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-api" }
