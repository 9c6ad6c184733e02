// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagemark/pagemark/internal/preferences"
)

// OnboardingRequest is the POST onboarding body. Genres are in the
// user's ranked order: the first pick seeds the highest weight.
type OnboardingRequest struct {
	Genres  []string `json:"genres" validate:"required,min=1,max=20"`
	Authors []string `json:"authors" validate:"max=50"`
}

// handleOnboarding seeds or re-merges the user's preference profile
// from their onboarding picks.
func (rt *Router) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	var req OnboardingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := rt.prefs.MergeOnboarding(r.Context(), userID, req.Genres, req.Authors)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to merge onboarding preferences", err)
		return
	}
	respondData(w, http.StatusOK, profile, start, false)
}

// handleGetPreferences returns the user's preference profile. A user
// without one gets 404 NOT_FOUND; that is the cold-start case, not a
// server failure.
func (rt *Router) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required", nil)
		return
	}

	profile, err := rt.prefs.Get(r.Context(), userID)
	switch {
	case err == nil:
		respondData(w, http.StatusOK, profile, start, false)
	case errors.Is(err, preferences.ErrNoProfile):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no preference profile for user", nil)
	default:
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load preferences", err)
	}
}
