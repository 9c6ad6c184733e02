// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Command server runs the Pagemark recommendation service: HTTP API,
// event pipeline, and background workers under one supervisor tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pagemark/pagemark/internal/api"
	"github.com/pagemark/pagemark/internal/catalog"
	"github.com/pagemark/pagemark/internal/config"
	"github.com/pagemark/pagemark/internal/events"
	"github.com/pagemark/pagemark/internal/feedback"
	"github.com/pagemark/pagemark/internal/logging"
	"github.com/pagemark/pagemark/internal/preferences"
	"github.com/pagemark/pagemark/internal/reccache"
	"github.com/pagemark/pagemark/internal/recommend"
	"github.com/pagemark/pagemark/internal/recommend/reranking"
	"github.com/pagemark/pagemark/internal/storage"
	"github.com/pagemark/pagemark/internal/supervisor"
	"github.com/pagemark/pagemark/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.DefaultConfig())
		logging.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger := logging.Logger()
	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Str("storage_dir", cfg.Storage.Dir).
		Msg("starting pagemark")

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := logging.Logger()

	// Storage. An empty dir selects the in-memory store, used for
	// local development and tests.
	var (
		store       storage.Store
		badgerStore *storage.BadgerStore
		err         error
	)
	if cfg.Storage.Dir == "" {
		logger.Warn().Msg("no storage dir configured, using in-memory store")
		store = storage.NewMemStore()
	} else {
		badgerStore, err = storage.NewBadgerStore(storage.BadgerConfig{
			Dir:            cfg.Storage.Dir,
			GCInterval:     cfg.Storage.GCInterval,
			GCDiscardRatio: cfg.Storage.GCDiscardRatio,
		}, logger)
		if err != nil {
			return err
		}
		store = badgerStore
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("store close failed")
		}
	}()

	// Domain components.
	prefs := preferences.NewStore(store, cfg.Preferences, logger)
	provider := catalog.NewProvider(store, logger)
	cache := reccache.New(store, cfg.Cache.TTL, logger)
	fb := feedback.NewLog(store, logger)

	scorer, err := recommend.NewScorer(&cfg.Recommend, logger)
	if err != nil {
		return err
	}
	scorer.SetDataProvider(provider)
	scorer.SetTasteProvider(api.TasteAdapter{Prefs: prefs})
	variant := cfg.Recommend.ActiveVariant()
	scorer.SetDiversifier(reranking.NewRepetitionPenalty(
		reranking.ExponentialDecay(variant.DiversityDecay)))

	// Event pipeline: tracker persists and publishes, the refiner
	// consumes to keep preference profiles current.
	bus := events.NewBus(cfg.Events.Router.BufferSize, logger)
	defer func() {
		if cerr := bus.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("event bus close failed")
		}
	}()
	tracker := events.NewTracker(store, bus, cfg.Events.Tracker, logger)
	refiner := events.NewRefiner(prefs, cache, logger)
	eventRouter, err := events.NewRouter(cfg.Events.Router, bus, refiner, logger)
	if err != nil {
		return err
	}

	// Background workers.
	dispatcher := tasks.NewDispatcher(cfg.Tasks, logger)
	breaker := tasks.NewBreaker(tasks.DefaultBreakerConfig("cache_populate"), logger)

	recs := api.NewRecommendationService(scorer, cache, dispatcher, breaker, logger)

	handler := api.NewRouter(api.RouterConfig{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, recs, fb, tracker, prefs, store, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Supervisor tree: storage maintenance, event pipeline, HTTP.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if badgerStore != nil {
		tree.AddDataService(supervisor.NewGCService(
			badgerStore.DB(), cfg.Storage.GCInterval, cfg.Storage.GCDiscardRatio, logger))
	}
	tree.AddPipelineService(eventRouter)
	tree.AddPipelineService(dispatcher)
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
