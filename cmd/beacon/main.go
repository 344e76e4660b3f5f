// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/beacon/internal/api"
	"github.com/tomtom215/beacon/internal/config"
	"github.com/tomtom215/beacon/internal/dispatchers"
	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/module"
	"github.com/tomtom215/beacon/internal/pipeline"
	"github.com/tomtom215/beacon/internal/storage"
	"github.com/tomtom215/beacon/internal/supervisor"
	"github.com/tomtom215/beacon/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LogConfig())

	logging.Info().
		Str("account", cfg.Instance.Account).
		Str("profile", cfg.Instance.Profile).
		Str("environment", cfg.Instance.Environment).
		Strs("explicit", cfg.ExplicitKeys()).
		Msg("Configuration loaded")

	backend, err := storage.OpenBadger(&cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if !cfg.Storage.InMemory {
		tree.AddStorageService(storage.NewCompactor(backend))
	}

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	inst, err := pipeline.New(ctx, pipeline.Options{
		Config:      cfg,
		Backend:     backend,
		Dispatchers: buildDispatchers(cfg),
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create pipeline")
	}
	registry := pipeline.NewRegistry(tree, cfg.Supervisor.ShutdownTimeout)
	if err := registry.Add(ctx, inst); err != nil {
		// Modules that enabled keep running.
		logging.Warn().Err(err).Msg("Pipeline enabled with errors")
	}

	router := api.NewRouter(
		api.NewHandler(registry, cfg.Server.WriteTimeout/2),
		api.NewMiddleware(api.MiddlewareConfig{
			RateLimitRequests: cfg.Server.RateLimit,
			RateLimitWindow:   time.Minute,
		}),
	)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Supervisor.ShutdownTimeout)
	if err := registry.Close(closeCtx); err != nil {
		logging.Error().Err(err).Msg("Error closing pipeline")
	}
	closeCancel()

	cancel()
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	logging.Info().Msg("Beacon stopped")
}

func buildDispatchers(cfg *config.Config) []module.Dispatcher {
	var ds []module.Dispatcher
	if cfg.Dispatch.CollectURL != "" {
		ds = append(ds, dispatchers.NewCollect(dispatchers.CollectConfig{
			URL:     cfg.Dispatch.CollectURL,
			Timeout: cfg.Dispatch.Timeout,
		}))
	}
	if cfg.Dispatch.LogEvents {
		ds = append(ds, dispatchers.NewLog())
	}
	if len(ds) == 0 {
		logging.Warn().Msg("No dispatchers configured, events will be queued")
	}
	return ds
}
