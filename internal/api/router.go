// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package api exposes the recommendation service over HTTP: personalized
// recommendation lists, feedback reporting, algorithm metrics, event
// ingestion, and preference onboarding.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/events"
	"github.com/pagemark/pagemark/internal/feedback"
	"github.com/pagemark/pagemark/internal/preferences"
	"github.com/pagemark/pagemark/internal/storage"
)

// RouterConfig holds HTTP surface settings.
type RouterConfig struct {
	// RateLimitReqs caps requests per client IP per RateLimitWindow.
	// Zero disables rate limiting.
	RateLimitReqs   int
	RateLimitWindow time.Duration

	CORSOrigins []string
}

// Router holds the handlers' collaborators.
type Router struct {
	recs     *RecommendationService
	feedback *feedback.Log
	tracker  *events.Tracker
	prefs    *preferences.Store
	store    storage.Store
	logger   zerolog.Logger
}

// NewRouter builds the chi router with all routes and middleware.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(
	cfg RouterConfig,
	recs *RecommendationService,
	fb *feedback.Log,
	tracker *events.Tracker,
	prefs *preferences.Store,
	store storage.Store,
	logger zerolog.Logger,
) http.Handler {
	router := &Router{
		recs:     recs,
		feedback: fb,
		tracker:  tracker,
		prefs:    prefs,
		store:    store,
		logger:   logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(chimiddleware.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", router.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			window := cfg.RateLimitWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, window))
		}
		r.Use(metricsMiddleware)

		r.Get("/users/{userID}/recommendations", router.handleGetRecommendations)
		r.Get("/users/{userID}/preferences", router.handleGetPreferences)
		r.Post("/users/{userID}/preferences/onboarding", router.handleOnboarding)

		r.Post("/recommendations/feedback", router.handlePostFeedback)
		r.Get("/recommendations/metrics", router.handleAlgorithmMetrics)

		r.Post("/events", router.handlePostEvent)
		r.Post("/events/batch", router.handlePostEventBatch)
	})

	return r
}
