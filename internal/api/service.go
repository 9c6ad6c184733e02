// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package api

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pagemark/pagemark/internal/preferences"
	"github.com/pagemark/pagemark/internal/reccache"
	"github.com/pagemark/pagemark/internal/recommend"
	"github.com/pagemark/pagemark/internal/tasks"
)

// RecommendationService orchestrates serving: cache lookup first, fresh
// scoring on a miss, then asynchronous cache population so the serving
// path never blocks on a cache write.
type RecommendationService struct {
	scorer     *recommend.Scorer
	cache      *reccache.Cache
	dispatcher *tasks.Dispatcher
	breaker    *gobreaker.CircuitBreaker[interface{}]
	logger     zerolog.Logger
}

// NewRecommendationService wires the serving path. dispatcher and
// breaker may be nil; cache population then happens synchronously or
// unguarded respectively.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRecommendationService(
	scorer *recommend.Scorer,
	cache *reccache.Cache,
	dispatcher *tasks.Dispatcher,
	breaker *gobreaker.CircuitBreaker[interface{}],
	logger zerolog.Logger,
) *RecommendationService {
	return &RecommendationService{
		scorer:     scorer,
		cache:      cache,
		dispatcher: dispatcher,
		breaker:    breaker,
		logger:     logger.With().Str("component", "recservice").Logger(),
	}
}

// Get returns recommendations for the request, preferring a fresh cached
// list. The boolean reports whether the cache served the response.
func (s *RecommendationService) Get(ctx context.Context, req recommend.Request) (*recommend.Response, bool, error) {
	if req.Context.Surface == "" {
		req.Context.Surface = recommend.SurfaceHome
	}
	// Resolve the limit up front so a cache hit applies the same
	// default and cap a fresh score would.
	req.Limit = s.scorer.ResolveLimit(req.Limit)

	if entry, ok := s.lookup(ctx, req); ok {
		return &recommend.Response{
			Items:           entry.Items,
			Algorithm:       entry.Algorithm,
			TotalCandidates: len(entry.Items),
			Metadata: recommend.ResponseMetadata{
				RequestID:   req.RequestID,
				UserID:      req.UserID,
				Surface:     req.Context.Surface,
				GeneratedAt: entry.CreatedAt,
			},
		}, true, nil
	}

	resp, err := s.scorer.Score(ctx, req)
	if err != nil {
		return nil, false, err
	}

	s.populateAsync(req.UserID, req.Context.Surface, resp)
	return resp, false, nil
}

// lookup consults the cache unless the request forces a refresh.
func (s *RecommendationService) lookup(ctx context.Context, req recommend.Request) (*reccache.Entry, bool) {
	if req.ForceRefresh {
		return nil, false
	}
	return s.cache.GetFresh(ctx, req.UserID, req.Context.Surface, req.Limit)
}

// populateAsync schedules the cache write for a freshly scored list.
// The write is best-effort: a full queue or open breaker drops it and
// the next request scores fresh again.
func (s *RecommendationService) populateAsync(userID string, surface recommend.Surface, resp *recommend.Response) {
	if len(resp.Items) == 0 {
		return
	}

	entry := &reccache.Entry{
		UserID:    userID,
		Surface:   surface,
		Items:     resp.Items,
		Algorithm: resp.Algorithm,
	}

	write := func(ctx context.Context) error {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if s.breaker != nil {
			_, err := s.breaker.Execute(func() (interface{}, error) {
				return nil, s.cache.Put(writeCtx, entry)
			})
			return err
		}
		return s.cache.Put(writeCtx, entry)
	}

	if s.dispatcher == nil {
		if err := write(context.Background()); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("cache population failed")
		}
		return
	}

	s.dispatcher.Dispatch(tasks.Task{Name: "cache_populate", Run: write})
}

// TasteAdapter exposes the preference store as the scorer's taste
// source. A missing profile maps to a nil taste, the scorer's cold-start
// signal, never an error.
type TasteAdapter struct {
	Prefs *preferences.Store
}

// Taste implements recommend.TasteProvider.
func (a TasteAdapter) Taste(ctx context.Context, userID string) (*recommend.Taste, error) {
	p, err := a.Prefs.Get(ctx, userID)
	if errors.Is(err, preferences.ErrNoProfile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &recommend.Taste{
		GenreWeights:    p.GenreWeights,
		FavoriteAuthors: p.AuthorSet(),
	}, nil
}
