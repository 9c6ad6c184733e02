// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package metrics provides Prometheus instrumentation for the
// recommendation service: API throughput, cache efficiency, scorer
// latency, event ingestion, and feedback transitions.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Recommendation cache metrics
	RecCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_cache_hits_total",
			Help: "Recommendation cache hits by surface",
		},
		[]string{"surface"},
	)

	RecCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_cache_misses_total",
			Help: "Recommendation cache misses by surface",
		},
		[]string{"surface"},
	)

	RecCacheWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_write_failures_total",
			Help: "Best-effort cache population failures (logged, never surfaced)",
		},
	)

	// Scorer metrics
	ScoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_score_duration_seconds",
			Help:    "Time spent scoring and ranking a candidate pool",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"algorithm"},
	)

	ScoreCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_score_candidates",
			Help:    "Candidate pool size per scoring request",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
		},
	)

	ColdStartRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cold_start_requests_total",
			Help: "Scoring requests served without a preference profile",
		},
	)

	// Event tracker metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_ingested_total",
			Help: "Interaction events ingested by type and result",
		},
		[]string{"type", "result"}, // result: accepted, rejected
	)

	// Feedback log metrics
	FeedbackTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_transitions_total",
			Help: "Recommendation feedback transitions by action and result",
		},
		[]string{"action", "result"}, // result: applied, noop, rejected
	)

	// Background task metrics
	TasksDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Background task dispatch outcomes",
		},
		[]string{"task", "result"}, // result: queued, dropped, ok, failed
	)
)

// ObserveAPIRequest records one completed API request.
func ObserveAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
