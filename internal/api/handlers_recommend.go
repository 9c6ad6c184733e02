// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagemark/pagemark/internal/logging"
	"github.com/pagemark/pagemark/internal/recommend"
)

// RecommendationsData is the recommendations endpoint payload.
type RecommendationsData struct {
	UserID          string                     `json:"user_id"`
	Surface         recommend.Surface          `json:"surface"`
	Items           []recommend.Item           `json:"items"`
	Algorithm       string                     `json:"algorithm"`
	TotalCandidates int                        `json:"total_candidates"`
	Source          string                     `json:"source"` // "cache" or "fresh"
	Metadata        recommend.ResponseMetadata `json:"metadata"`
}

// handleGetRecommendations serves GET /api/v1/users/{userID}/recommendations.
//
// Query parameters:
//   - limit: list length (default and cap from scorer config)
//   - surface: "home" (default) or "discover"
//   - session_id: optional correlation identifier
//   - time_of_day: optional override, otherwise derived from the clock
//   - refresh: "true" bypasses the cache and scores fresh
func (rt *Router) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if limit < 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must not be negative", nil)
		return
	}

	surface := recommend.Surface(r.URL.Query().Get("surface"))
	switch surface {
	case "", recommend.SurfaceHome, recommend.SurfaceDiscover:
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "surface must be home or discover", nil)
		return
	}

	req := recommend.Request{
		UserID:       userID,
		Limit:        limit,
		RequestID:    logging.RequestIDFromContext(ctx),
		ForceRefresh: r.URL.Query().Get("refresh") == "true",
		Context: recommend.Context{
			Surface:   surface,
			SessionID: r.URL.Query().Get("session_id"),
			TimeOfDay: recommend.TimeOfDay(r.URL.Query().Get("time_of_day")),
		},
	}

	resp, cached, err := rt.recs.Get(ctx, req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to generate recommendations", err)
		return
	}

	source := "fresh"
	if cached {
		source = "cache"
	}

	respondData(w, http.StatusOK, &RecommendationsData{
		UserID:          userID,
		Surface:         resp.Metadata.Surface,
		Items:           resp.Items,
		Algorithm:       resp.Algorithm,
		TotalCandidates: resp.TotalCandidates,
		Source:          source,
		Metadata:        resp.Metadata,
	}, start, cached)
}
