// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/pagemark/pagemark/internal/feedback"
	"github.com/pagemark/pagemark/internal/recommend"
)

// FeedbackRequest is the POST /recommendations/feedback body.
type FeedbackRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	ItemID    string `json:"item_id" validate:"required"`
	Surface   string `json:"surface" validate:"omitempty,oneof=home discover"`
	Action    string `json:"action" validate:"required,oneof=shown clicked converted dismissed"`
	Algorithm string `json:"algorithm"`
	Position  int    `json:"position" validate:"gte=0"`

	// ConvertedAction optionally names the conversion kind, e.g.
	// "added_to_shelf".
	ConvertedAction string `json:"converted_action"`
}

// handlePostFeedback records one feedback event against the state
// machine. Invalid transitions map to 409, unknown rows to 404.
func (rt *Router) handlePostFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req FeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	action, err := feedback.ParseAction(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	err = rt.feedback.Record(r.Context(), feedback.Event{
		UserID:          req.UserID,
		ItemID:          req.ItemID,
		Surface:         recommend.Surface(req.Surface),
		Action:          action,
		Algorithm:       req.Algorithm,
		Position:        req.Position,
		ConvertedAction: req.ConvertedAction,
	})
	switch {
	case err == nil:
		respondData(w, http.StatusOK, map[string]interface{}{
			"user_id": req.UserID,
			"item_id": req.ItemID,
			"action":  req.Action,
		}, start, false)
	case errors.Is(err, feedback.ErrNotShown):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "recommendation was never shown", err)
	case errors.Is(err, feedback.ErrTerminal), errors.Is(err, feedback.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to record feedback", err)
	}
}

// handleAlgorithmMetrics serves GET /recommendations/metrics.
//
// Query parameters:
//   - algorithm: variant name; omitted aggregates across all variants
//   - window_days: rolling window length (default 7)
func (rt *Router) handleAlgorithmMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	algorithm := r.URL.Query().Get("algorithm")

	windowDays, err := getIntParam(r, "window_days", 7)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if windowDays <= 0 || windowDays > 365 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "window_days must be between 1 and 365", nil)
		return
	}

	m, err := rt.feedback.Metrics(r.Context(), algorithm, windowDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to aggregate metrics", err)
		return
	}
	respondData(w, http.StatusOK, m, start, false)
}
