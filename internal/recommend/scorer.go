// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package recommend implements the hybrid recommendation scorer: a pure
// ranking function over a candidate pool, a user's preference profile,
// and social/trending signals. Scoring produces a fixed 7-dimension
// breakdown per item; diversity is applied in a second pass over the
// sorted list by a pluggable Diversifier.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/metrics"
)

// Scorer ranks candidate items for a user. It holds no mutable ranking
// state between calls: a request's result is a pure function of the
// stored preference profile, the candidate pool, and the context at call
// time. Safe for concurrent use.
type Scorer struct {
	config *Config
	logger zerolog.Logger
	clock  func() time.Time

	data        DataProvider
	tastes      TasteProvider
	diversifier Diversifier
}

// NewScorer creates a scorer with the given configuration.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewScorer(cfg *Config, logger zerolog.Logger) (*Scorer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Scorer{
		config: cfg,
		logger: logger.With().Str("component", "scorer").Logger(),
		clock:  time.Now,
	}, nil
}

// SetDataProvider sets the candidate pool and social signal source.
func (s *Scorer) SetDataProvider(dp DataProvider) {
	s.data = dp
}

// SetTasteProvider sets the preference profile source.
func (s *Scorer) SetTasteProvider(tp TasteProvider) {
	s.tastes = tp
}

// SetDiversifier sets the diversity second-pass implementation. Without
// one, every item keeps its full diversity contribution.
func (s *Scorer) SetDiversifier(d Diversifier) {
	s.diversifier = d
}

// SetClock overrides the time source. Tests only.
func (s *Scorer) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Algorithm returns the active algorithm variant name.
func (s *Scorer) Algorithm() string {
	return s.config.Algorithm
}

// Score generates up to req.Limit ranked recommendations.
//
// Cold-start users (no preference profile) are scored on the
// item-intrinsic dimensions only; an empty candidate pool yields an
// empty response. Neither is an error.
func (s *Scorer) Score(ctx context.Context, req Request) (*Response, error) {
	start := s.clock()

	req, err := s.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	logger := s.requestLogger(req)
	logger.Debug().Msg("scoring recommendation request")

	taste, candidates, friends, err := s.fetchInputs(ctx, req)
	if err != nil {
		return nil, err
	}

	coldStart := taste == nil
	if coldStart {
		metrics.ColdStartRequests.Inc()
	}
	metrics.ScoreCandidates.Observe(float64(len(candidates)))

	if len(candidates) == 0 {
		logger.Debug().Msg("no eligible candidates")
		return s.emptyResponse(req, coldStart, start), nil
	}

	ranked := s.scoreCandidates(candidates, taste, friends, req.Context.TimeOfDay)
	sortRanked(ranked)

	if s.diversifier != nil {
		ranked = s.diversifier.Apply(ctx, ranked, req.Limit)
	}
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	items := s.finalize(ranked)
	latency := s.clock().Sub(start)
	metrics.ScoreDuration.WithLabelValues(s.config.Algorithm).Observe(latency.Seconds())

	logger.Debug().
		Int("candidates", len(candidates)).
		Int("returned", len(items)).
		Bool("cold_start", coldStart).
		Int64("latency_ms", latency.Milliseconds()).
		Msg("scoring complete")

	return &Response{
		Items:           items,
		Algorithm:       s.config.Algorithm,
		TotalCandidates: len(candidates),
		Metadata: ResponseMetadata{
			RequestID:   req.RequestID,
			UserID:      req.UserID,
			Surface:     req.Context.Surface,
			TimeOfDay:   req.Context.TimeOfDay,
			ColdStart:   coldStart,
			LatencyMS:   latency.Milliseconds(),
			GeneratedAt: s.clock(),
		},
	}, nil
}

// ResolveLimit clamps a caller-supplied limit to the configured default
// and cap. Zero or negative selects the default.
func (s *Scorer) ResolveLimit(limit int) int {
	if limit <= 0 {
		limit = s.config.Limits.DefaultLimit
	}
	if limit > s.config.Limits.MaxLimit {
		limit = s.config.Limits.MaxLimit
	}
	return limit
}

// prepareRequest applies defaults and validates the request.
func (s *Scorer) prepareRequest(req Request) (Request, error) {
	if req.UserID == "" {
		return req, fmt.Errorf("user id required")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	req.Limit = s.ResolveLimit(req.Limit)
	if req.Context.Surface == "" {
		req.Context.Surface = SurfaceHome
	}
	if req.Context.TimeOfDay == "" {
		req.Context.TimeOfDay = TimeOfDayFromHour(s.clock().Hour())
	}
	return req, nil
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *Scorer) requestLogger(req Request) zerolog.Logger {
	return s.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Str("surface", string(req.Context.Surface)).
		Logger()
}

// fetchInputs loads the taste profile, candidate pool, and friend
// engagement. Candidates and friend signals are fetched concurrently;
// any provider failure fails the request (persistence unavailability is
// fatal for fresh scoring).
func (s *Scorer) fetchInputs(ctx context.Context, req Request) (*Taste, []Candidate, map[string]int, error) {
	if s.data == nil {
		return nil, nil, nil, fmt.Errorf("data provider not set")
	}

	fetchCtx := ctx
	if s.config.Limits.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.config.Limits.FetchTimeout)
		defer cancel()
	}

	var (
		wg         sync.WaitGroup
		taste      *Taste
		candidates []Candidate
		friends    map[string]int
		tasteErr   error
		candErr    error
		friendErr  error
	)

	if s.tastes != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taste, tasteErr = s.tastes.Taste(fetchCtx, req.UserID)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		candidates, candErr = s.data.GetCandidates(fetchCtx, req.UserID, s.config.Limits.MaxCandidates)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		friends, friendErr = s.data.GetFriendEngagement(fetchCtx, req.UserID)
	}()

	wg.Wait()

	if tasteErr != nil {
		return nil, nil, nil, fmt.Errorf("get taste: %w", tasteErr)
	}
	if candErr != nil {
		return nil, nil, nil, fmt.Errorf("get candidates: %w", candErr)
	}
	if friendErr != nil {
		return nil, nil, nil, fmt.Errorf("get friend engagement: %w", friendErr)
	}
	return taste, candidates, friends, nil
}

// scoreCandidates computes the weighted breakdown for every candidate.
func (s *Scorer) scoreCandidates(candidates []Candidate, taste *Taste, friends map[string]int, tod TimeOfDay) []Ranked {
	variant := s.config.ActiveVariant()
	weights := variant.Weights.Normalize()

	trendingWeight := weights.Trending
	if boost, ok := variant.TrendingBoost[tod]; ok {
		trendingWeight *= boost
	}

	now := s.clock()
	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		b := Breakdown{
			Genre:    weights.Genre * genreSignal(c.Genres, taste, 5.0),
			Author:   weights.Author * authorSignal(c.Authors, taste),
			Quality:  weights.Quality * qualitySignal(c.Rating, c.RatingsCount, s.config.Quality.MinRatings),
			Friends:  weights.Friends * friendsSignal(friends[c.ID], s.config.Friends.Saturation),
			Trending: trendingWeight * clamp01(c.TrendingScore),
			Recency:  weights.Recency * recencySignal(c.PublishedAt, now, s.config.Recency.HalfLifeDays),
			// Full diversity contribution; the second pass decays it for
			// items over-represented in the result set.
			Diversity: weights.Diversity,
		}

		ranked = append(ranked, Ranked{
			Rec: Item{
				ItemID:    c.ID,
				Score:     b.Total(),
				Algorithm: s.config.Algorithm,
				Breakdown: b,
			},
			Meta: c,
		})
	}
	return ranked
}

// sortRanked orders by score descending, breaking ties by item recency
// (newer first) and then stable identifier order so pagination is
// reproducible.
func sortRanked(ranked []Ranked) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rec.Score != ranked[j].Rec.Score {
			return ranked[i].Rec.Score > ranked[j].Rec.Score
		}
		if !ranked[i].Meta.PublishedAt.Equal(ranked[j].Meta.PublishedAt) {
			return ranked[i].Meta.PublishedAt.After(ranked[j].Meta.PublishedAt)
		}
		return ranked[i].Meta.ID < ranked[j].Meta.ID
	})
}

// finalize assigns positions and reasons after the diversity pass.
func (s *Scorer) finalize(ranked []Ranked) []Item {
	items := make([]Item, len(ranked))
	for i, r := range ranked {
		item := r.Rec
		item.Position = i
		item.Reason = reasonFor(item.Breakdown)
		items[i] = item
	}
	return items
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *Scorer) emptyResponse(req Request, coldStart bool, start time.Time) *Response {
	return &Response{
		Items:           []Item{},
		Algorithm:       s.config.Algorithm,
		TotalCandidates: 0,
		Metadata: ResponseMetadata{
			RequestID:   req.RequestID,
			UserID:      req.UserID,
			Surface:     req.Context.Surface,
			TimeOfDay:   req.Context.TimeOfDay,
			ColdStart:   coldStart,
			LatencyMS:   s.clock().Sub(start).Milliseconds(),
			GeneratedAt: s.clock(),
		},
	}
}
