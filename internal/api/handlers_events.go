// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/pagemark/pagemark/internal/events"
)

// EventRequest is the POST /events body.
type EventRequest struct {
	UserID       string            `json:"user_id" validate:"required"`
	Type         string            `json:"type" validate:"required"`
	ItemID       string            `json:"item_id"`
	Genres       []string          `json:"genres"`
	Author       string            `json:"author"`
	TargetUserID string            `json:"target_user_id"`
	SessionID    string            `json:"session_id"`
	Metadata     map[string]string `json:"metadata"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

func (req *EventRequest) toEvent() *events.Event {
	return &events.Event{
		UserID:       req.UserID,
		Type:         events.Type(req.Type),
		ItemID:       req.ItemID,
		Genres:       req.Genres,
		Author:       req.Author,
		TargetUserID: req.TargetUserID,
		SessionID:    req.SessionID,
		Metadata:     req.Metadata,
		OccurredAt:   req.OccurredAt,
	}
}

// EventBatchRequest is the POST /events/batch body. A top-level user id
// applies to elements that don't carry their own. Elements are
// validated individually by the tracker so one bad element does not
// reject the whole batch.
type EventBatchRequest struct {
	UserID string         `json:"user_id"`
	Events []EventRequest `json:"events" validate:"required,min=1"`
}

// handlePostEvent ingests one interaction event.
func (rt *Router) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req EventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev := req.toEvent()
	err := rt.tracker.Track(r.Context(), ev)
	switch {
	case err == nil:
		respondData(w, http.StatusAccepted, map[string]interface{}{
			"event_id": ev.ID,
			"type":     string(ev.Type),
		}, start, false)
	case errors.Is(err, events.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "event ingestion rate exceeded", nil)
	case errors.Is(err, events.ErrUnknownType):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}
}

// handlePostEventBatch ingests a batch with per-element results. The
// response is 202 even when some elements fail; callers inspect the
// accepted/failed counts.
func (rt *Router) handlePostEventBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req EventBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	batch := make([]*events.Event, len(req.Events))
	for i := range req.Events {
		if req.Events[i].UserID == "" {
			req.Events[i].UserID = req.UserID
		}
		batch[i] = req.Events[i].toEvent()
	}

	result, err := rt.tracker.TrackBatch(r.Context(), batch)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	respondData(w, http.StatusAccepted, result, start, false)
}
