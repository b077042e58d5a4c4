// Tracksync - ClickUp Time Tracking Warehouse Pipeline
// Copyright 2026 Nordlum Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nordlum/tracksync

// Command server runs the Tracksync service: the HTTP trigger surface in
// front of the ClickUp-to-DuckDB sync pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nordlum/tracksync/internal/api"
	"github.com/nordlum/tracksync/internal/backup"
	"github.com/nordlum/tracksync/internal/clickup"
	"github.com/nordlum/tracksync/internal/config"
	"github.com/nordlum/tracksync/internal/logging"
	"github.com/nordlum/tracksync/internal/pipeline"
	"github.com/nordlum/tracksync/internal/supervisor"
	"github.com/nordlum/tracksync/internal/warehouse"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Tracksync failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", api.Version).Msg("Tracksync starting")

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}

	wh, err := warehouse.New(&cfg.Warehouse)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer func() {
		if err := wh.Close(); err != nil {
			logging.Error().Err(err).Msg("Warehouse close failed")
		}
	}()

	client := clickup.NewClient(cfg.ClickUp.BaseURL, cfg.ClickUp.Token,
		clickup.WithHTTPClient(&http.Client{Timeout: cfg.ClickUp.RequestTimeout}),
		clickup.WithMaxRetries(cfg.ClickUp.MaxRetries),
		clickup.WithRetryBaseDelay(cfg.ClickUp.RetryBaseDelay),
		clickup.WithLogger(logging.With().Str("component", "clickup").Logger()),
	)
	apiClient := clickup.NewBreakerClient("clickup", client)

	collector := clickup.NewCollector(apiClient,
		cfg.ClickUp.TeamID, cfg.ClickUp.Assignees,
		cfg.Sync.WindowDays, cfg.ClickUp.EntryPace,
		logging.With().Str("component", "collector").Logger(),
	)
	enumerator := clickup.NewEnumerator(apiClient,
		cfg.ClickUp.TeamID, cfg.ClickUp.SpaceID,
		cfg.Sync.PageSize, cfg.ClickUp.ListPace,
		logging.With().Str("component", "enumerator").Logger(),
	)

	var snapshots pipeline.BackupWriter
	if cfg.Backup.Enabled {
		snapshots = backup.NewWriter(cfg.Backup.Dir)
	}

	manager := pipeline.NewManager(collector, enumerator, wh, snapshots,
		pipeline.Options{
			RefreshDays:       cfg.Sync.RefreshDays,
			StartYear:         cfg.Sync.StartYear,
			ApplicationListID: cfg.ClickUp.ApplicationListID,
			ApplicationFields: cfg.ClickUp.ApplicationFieldIDs,
			Location:          loc,
			BackupEnabled:     cfg.Backup.Enabled,
		},
		logging.With().Str("component", "pipeline").Logger(),
	)

	handlers := api.NewHandlers(manager, wh)
	router := api.NewRouter(handlers, api.RouterConfig{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Sync runs are synchronous and can outlive the read timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Tracksync stopped")
	return nil
}
