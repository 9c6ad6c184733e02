// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/catalog"
	"github.com/pagemark/pagemark/internal/events"
	"github.com/pagemark/pagemark/internal/feedback"
	"github.com/pagemark/pagemark/internal/models"
	"github.com/pagemark/pagemark/internal/preferences"
	"github.com/pagemark/pagemark/internal/reccache"
	"github.com/pagemark/pagemark/internal/recommend"
	"github.com/pagemark/pagemark/internal/storage"
)

type testServer struct {
	handler http.Handler
	store   *storage.MemStore
	catalog *catalog.Provider
	prefs   *preferences.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	store := storage.NewMemStore()

	prefs := preferences.NewStore(store, preferences.DefaultConfig(), logger)
	provider := catalog.NewProvider(store, logger)

	scorer, err := recommend.NewScorer(recommend.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	scorer.SetDataProvider(provider)
	scorer.SetTasteProvider(TasteAdapter{Prefs: prefs})

	cache := reccache.New(store, time.Hour, logger)
	// Nil dispatcher: cache population runs synchronously, so a follow-up
	// request can assert the cached path.
	recs := NewRecommendationService(scorer, cache, nil, nil, logger)

	fb := feedback.NewLog(store, logger)
	tracker := events.NewTracker(store, nil, events.TrackerConfig{BatchMaxSize: 10}, logger)

	handler := NewRouter(RouterConfig{}, recs, fb, tracker, prefs, store, logger)
	return &testServer{handler: handler, store: store, catalog: provider, prefs: prefs}
}

func (ts *testServer) seedCatalog(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		item := &catalog.Item{
			ID:           fmt.Sprintf("b%02d", i),
			Title:        "Book",
			Genres:       []string{"fiction"},
			Rating:       4.0,
			RatingsCount: 100,
			PublishedAt:  time.Now().AddDate(0, 0, -10),
			Available:    true,
		}
		if err := ts.catalog.PutItem(context.Background(), item); err != nil {
			t.Fatalf("PutItem: %v", err)
		}
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *models.APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope (%d %s): %v\nbody: %s", rec.Code, path, err, rec.Body.String())
	}
	return rec, &envelope
}

func dataMap(t *testing.T, envelope *models.APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := envelope.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", envelope.Data)
	}
	return m
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec, envelope := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if envelope.Status != "success" {
		t.Errorf("envelope status = %q", envelope.Status)
	}
}

func TestHealthDegraded(t *testing.T) {
	ts := newTestServer(t)
	ts.store.FailReads = true

	rec, _ := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestGetRecommendationsColdStart(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCatalog(t, 5)

	rec, envelope := ts.do(t, http.MethodGet, "/api/v1/users/newbie/recommendations?limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	data := dataMap(t, envelope)
	items, ok := data["items"].([]interface{})
	if !ok {
		t.Fatalf("items missing: %v", data)
	}
	if len(items) != 3 {
		t.Errorf("items = %d, want 3", len(items))
	}
	if data["source"] != "fresh" {
		t.Errorf("source = %v, want fresh", data["source"])
	}
	meta, _ := data["metadata"].(map[string]interface{})
	if meta["cold_start"] != true {
		t.Errorf("cold_start = %v, want true", meta["cold_start"])
	}
}

func TestGetRecommendationsServedFromCache(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCatalog(t, 5)

	rec, _ := ts.do(t, http.MethodGet, "/api/v1/users/u1/recommendations?limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}

	rec, envelope := ts.do(t, http.MethodGet, "/api/v1/users/u1/recommendations?limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second request: %d", rec.Code)
	}
	data := dataMap(t, envelope)
	if data["source"] != "cache" {
		t.Errorf("source = %v, want cache", data["source"])
	}
	if !envelope.Metadata.Cached {
		t.Error("metadata.cached should be true")
	}
}

func TestGetRecommendationsForceRefresh(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCatalog(t, 5)

	for i := 0; i < 2; i++ {
		if rec, _ := ts.do(t, http.MethodGet, "/api/v1/users/u1/recommendations?limit=3", nil); rec.Code != http.StatusOK {
			t.Fatalf("warmup request %d: %d", i, rec.Code)
		}
	}

	rec, envelope := ts.do(t, http.MethodGet, "/api/v1/users/u1/recommendations?limit=3&refresh=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh request: %d", rec.Code)
	}
	data := dataMap(t, envelope)
	if data["source"] != "fresh" {
		t.Errorf("source = %v, want fresh despite warm cache", data["source"])
	}
}

func TestGetRecommendationsValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path string
	}{
		{"/api/v1/users/u1/recommendations?limit=abc"},
		{"/api/v1/users/u1/recommendations?limit=-1"},
		{"/api/v1/users/u1/recommendations?surface=sidebar"},
	}
	for _, tt := range tests {
		rec, envelope := ts.do(t, http.MethodGet, tt.path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.path, rec.Code)
		}
		if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("%s: error = %+v, want VALIDATION_ERROR", tt.path, envelope.Error)
		}
	}
}

func TestFeedbackFlow(t *testing.T) {
	ts := newTestServer(t)

	shown := map[string]interface{}{
		"user_id": "u1", "item_id": "b1", "action": "shown", "algorithm": "hybrid",
	}
	rec, _ := ts.do(t, http.MethodPost, "/api/v1/recommendations/feedback", shown)
	if rec.Code != http.StatusOK {
		t.Fatalf("shown: %d", rec.Code)
	}

	clicked := map[string]interface{}{"user_id": "u1", "item_id": "b1", "action": "clicked"}
	rec, _ = ts.do(t, http.MethodPost, "/api/v1/recommendations/feedback", clicked)
	if rec.Code != http.StatusOK {
		t.Fatalf("clicked: %d", rec.Code)
	}

	// dismissed after clicked is an invalid transition.
	dismissed := map[string]interface{}{"user_id": "u1", "item_id": "b1", "action": "dismissed"}
	rec, envelope := ts.do(t, http.MethodPost, "/api/v1/recommendations/feedback", dismissed)
	if rec.Code != http.StatusConflict {
		t.Fatalf("dismissed: %d, want 409", rec.Code)
	}
	if envelope.Error.Code != "INVALID_TRANSITION" {
		t.Errorf("error code = %q", envelope.Error.Code)
	}
}

func TestFeedbackNotShown(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{"user_id": "u1", "item_id": "ghost", "action": "clicked"}
	rec, envelope := ts.do(t, http.MethodPost, "/api/v1/recommendations/feedback", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if envelope.Error.Code != "NOT_FOUND" {
		t.Errorf("error code = %q", envelope.Error.Code)
	}
}

func TestFeedbackValidation(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{"user_id": "u1", "item_id": "b1", "action": "liked"}
	rec, envelope := ts.do(t, http.MethodPost, "/api/v1/recommendations/feedback", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if envelope.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error code = %q", envelope.Error.Code)
	}
}

func TestAlgorithmMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	for _, action := range []string{"shown", "clicked"} {
		body := map[string]interface{}{"user_id": "u1", "item_id": "b1", "action": action, "algorithm": "hybrid"}
		if rec, _ := ts.do(t, http.MethodPost, "/api/v1/recommendations/feedback", body); rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", action, rec.Code)
		}
	}

	rec, envelope := ts.do(t, http.MethodGet, "/api/v1/recommendations/metrics?algorithm=hybrid&window_days=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := dataMap(t, envelope)
	if data["shown"] != float64(1) {
		t.Errorf("shown = %v, want 1", data["shown"])
	}
	if data["click_through_rate"] != float64(1) {
		t.Errorf("ctr = %v, want 1", data["click_through_rate"])
	}
}

func TestPostEvent(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{
		"user_id": "u1", "type": "content_view", "item_id": "b1", "genres": []string{"fiction"},
	}
	rec, envelope := ts.do(t, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\nbody: %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, envelope)
	if data["event_id"] == "" {
		t.Error("event_id missing")
	}
}

func TestPostEventUnknownType(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{"user_id": "u1", "type": "page_turn"}
	rec, _ := ts.do(t, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostEventBatchPartial(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{
		"events": []map[string]interface{}{
			{"user_id": "u1", "type": "content_view", "item_id": "b1"},
			{"user_id": "u1", "type": "page_turn"},
			{"user_id": "u2", "type": "newsletter_open"},
		},
	}
	rec, envelope := ts.do(t, http.MethodPost, "/api/v1/events/batch", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\nbody: %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, envelope)
	if data["accepted"] != float64(2) {
		t.Errorf("accepted = %v, want 2", data["accepted"])
	}
	if data["failed"] != float64(1) {
		t.Errorf("failed = %v, want 1", data["failed"])
	}
}

func TestOnboardingAndGetPreferences(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{
		"genres":  []string{"fiction", "mystery", "fantasy"},
		"authors": []string{"Ursula K. Le Guin"},
	}
	rec, envelope := ts.do(t, http.MethodPost, "/api/v1/users/u1/preferences/onboarding", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("onboarding: %d\nbody: %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, envelope)
	weights, _ := data["genre_weights"].(map[string]interface{})
	if weights["fiction"] != float64(5) {
		t.Errorf("fiction = %v, want 5", weights["fiction"])
	}
	if weights["mystery"] != float64(4.5) {
		t.Errorf("mystery = %v, want 4.5", weights["mystery"])
	}

	rec, envelope = ts.do(t, http.MethodGet, "/api/v1/users/u1/preferences", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get preferences: %d", rec.Code)
	}
	data = dataMap(t, envelope)
	if data["user_id"] != "u1" {
		t.Errorf("user_id = %v", data["user_id"])
	}
}

func TestGetPreferencesNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec, envelope := ts.do(t, http.MethodGet, "/api/v1/users/nobody/preferences", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if envelope.Error.Code != "NOT_FOUND" {
		t.Errorf("error code = %q", envelope.Error.Code)
	}
}

func TestOnboardingValidation(t *testing.T) {
	ts := newTestServer(t)

	rec, envelope := ts.do(t, http.MethodPost, "/api/v1/users/u1/preferences/onboarding", map[string]interface{}{
		"genres": []string{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if envelope.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error code = %q", envelope.Error.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}

func TestOnboardingInvalidatesNothingButChangesScores(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCatalog(t, 3)

	body := map[string]interface{}{"genres": []string{"fiction"}}
	if rec, _ := ts.do(t, http.MethodPost, "/api/v1/users/u1/preferences/onboarding", body); rec.Code != http.StatusOK {
		t.Fatal("onboarding failed")
	}

	rec, envelope := ts.do(t, http.MethodGet, "/api/v1/users/u1/recommendations?limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recommendations: %d", rec.Code)
	}
	data := dataMap(t, envelope)
	meta, _ := data["metadata"].(map[string]interface{})
	if meta["cold_start"] == true {
		t.Error("profile exists, cold_start should be false")
	}
}

func TestGetRecommendationsCacheHitAppliesDefaultLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.seedCatalog(t, 30)

	rec, _ := ts.do(t, http.MethodGet, "/api/v1/users/u1/recommendations?limit=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("warmup request: %d", rec.Code)
	}

	rec, envelope := ts.do(t, http.MethodGet, "/api/v1/users/u1/recommendations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("default-limit request: %d", rec.Code)
	}
	data := dataMap(t, envelope)
	if data["source"] != "cache" {
		t.Fatalf("source = %v, want cache", data["source"])
	}
	items, _ := data["items"].([]interface{})
	if len(items) != 20 {
		t.Errorf("items = %d, want default limit 20 from a larger cached list", len(items))
	}
}

func TestPostEventWithSessionID(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{
		"user_id": "u1", "type": "content_view", "item_id": "b1", "session_id": "sess-1",
	}
	rec, _ := ts.do(t, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\nbody: %s", rec.Code, rec.Body.String())
	}
}

func TestPostEventBatchTopLevelUserID(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{
		"user_id": "u1",
		"events": []map[string]interface{}{
			{"type": "content_view", "item_id": "b1", "session_id": "sess-1"},
			{"type": "newsletter_open"},
			{"user_id": "u2", "type": "diary_entry", "item_id": "b2"},
		},
	}
	rec, envelope := ts.do(t, http.MethodPost, "/api/v1/events/batch", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\nbody: %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, envelope)
	if data["accepted"] != float64(3) {
		t.Errorf("accepted = %v, want 3 (top-level user id fills elements)", data["accepted"])
	}
	if data["failed"] != float64(0) {
		t.Errorf("failed = %v, want 0", data["failed"])
	}
}

func TestAlgorithmMetricsDefaultAggregatesAll(t *testing.T) {
	ts := newTestServer(t)

	hybrid := map[string]interface{}{"user_id": "u1", "item_id": "b1", "action": "shown", "algorithm": "hybrid"}
	if rec, _ := ts.do(t, http.MethodPost, "/api/v1/recommendations/feedback", hybrid); rec.Code != http.StatusOK {
		t.Fatal("hybrid shown failed")
	}
	editorial := map[string]interface{}{"user_id": "u2", "item_id": "b2", "action": "shown", "algorithm": "editorial"}
	if rec, _ := ts.do(t, http.MethodPost, "/api/v1/recommendations/feedback", editorial); rec.Code != http.StatusOK {
		t.Fatal("editorial shown failed")
	}

	rec, envelope := ts.do(t, http.MethodGet, "/api/v1/recommendations/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := dataMap(t, envelope)
	if data["algorithm"] != "all" {
		t.Errorf("algorithm = %v, want all", data["algorithm"])
	}
	if data["shown"] != float64(2) {
		t.Errorf("shown = %v, want rows from every variant", data["shown"])
	}
}
