// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Command server runs the trophy sync service: the sync engine, its
// background scheduler, and the HTTP API, all under one supervision
// tree.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/trophytrack/internal/api"
	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/config"
	"github.com/tomtom215/trophytrack/internal/engine"
	"github.com/tomtom215/trophytrack/internal/identity"
	"github.com/tomtom215/trophytrack/internal/logging"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/ratelimit"
	"github.com/tomtom215/trophytrack/internal/reconcile"
	"github.com/tomtom215/trophytrack/internal/store"
	"github.com/tomtom215/trophytrack/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "trophytrack: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("database", cfg.Database.Path).
		Bool("scheduled_sync", cfg.Sync.Scheduled).
		Msg("Starting trophytrack")

	dbPath := cfg.Database.Path
	if cfg.Database.InMemory {
		dbPath = ""
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Database close was not clean")
		}
	}()

	var vault *psn.Vault
	if cfg.PSN.VaultKey != "" {
		vault, err = psn.NewVault(cfg.PSN.VaultKey)
		if err != nil {
			return fmt.Errorf("configuring credential vault: %w", err)
		}
	} else {
		logging.Warn().Msg("No vault key configured, credentials will be stored unsealed")
	}

	clk := clock.System()
	limiter := ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window, clk, db)
	client := psn.NewClient(psn.ClientConfig{
		BaseURL:        cfg.PSN.BaseURL,
		Timeout:        cfg.PSN.Timeout,
		MaxRetries:     cfg.PSN.MaxRetries,
		RetryBaseDelay: cfg.PSN.RetryBaseDelay,
	}, limiter, clk)
	adapter := psn.NewAdapter(client, cfg.Sync.PageSize)

	idCache := identity.NewCache(db, adapter, cfg.Identity.MaxAge, clk)
	reconciler := reconcile.New(db, clk)
	eng := engine.New(db, adapter, idCache, reconciler, vault, clk, engine.Config{
		MaxTitles:         cfg.Sync.MaxTitles,
		MinInterval:       cfg.Sync.MinInterval,
		Scheduled:         cfg.Sync.Scheduled,
		ScheduledInterval: cfg.Sync.ScheduledInterval,
	})

	server := api.NewServer(eng, db, limiter, vault, cfg.Server)

	tree := supervisor.NewTree()
	tree.Add(eng)
	tree.Add(supervisor.NewHTTPService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}
