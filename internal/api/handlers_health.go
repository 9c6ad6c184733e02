// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package api

import (
	"net/http"
	"time"
)

// HealthData is the health endpoint payload.
type HealthData struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// handleHealth reports liveness and storage reachability. Degraded
// storage yields 503 so load balancers rotate the instance out.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	data := &HealthData{Status: "ok", Storage: "ok"}
	status := http.StatusOK

	if err := rt.store.Ping(r.Context()); err != nil {
		rt.logger.Warn().Err(err).Msg("storage ping failed")
		data.Status = "degraded"
		data.Storage = "unreachable"
		status = http.StatusServiceUnavailable
	}

	respondData(w, status, data, start, false)
}
