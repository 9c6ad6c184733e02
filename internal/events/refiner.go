// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/preferences"
	"github.com/pagemark/pagemark/internal/reccache"
	"github.com/pagemark/pagemark/internal/recommend"
)

// Refiner derives preference profile updates from interaction events:
// viewing or journaling content bumps its genre weights, following an
// author adds them to the favored set. A profile change invalidates the
// user's cached recommendation lists so the next request rescore picks
// the change up.
//
// Refinement is best-effort: the handler acks every message. A failed
// update is logged and dropped rather than retried forever, since the
// next matching interaction carries the same signal again.
type Refiner struct {
	prefs  *preferences.Store
	cache  *reccache.Cache
	logger zerolog.Logger
}

// NewRefiner creates a refiner. cache may be nil to skip invalidation.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRefiner(prefs *preferences.Store, cache *reccache.Cache, logger zerolog.Logger) *Refiner {
	return &Refiner{
		prefs:  prefs,
		cache:  cache,
		logger: logger.With().Str("component", "refiner").Logger(),
	}
}

// Handle processes one bus message. It always returns nil so the router
// never retries or poisons refinement traffic.
func (r *Refiner) Handle(msg *message.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		r.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable event")
		return nil
	}

	if err := r.refine(msg.Context(), &ev); err != nil {
		r.logger.Warn().Err(err).
			Str("user_id", ev.UserID).
			Str("type", string(ev.Type)).
			Msg("preference refinement failed")
	}
	return nil
}

func (r *Refiner) refine(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case TypeContentView, TypeDiaryEntry:
		if len(ev.Genres) == 0 {
			return nil
		}
		for _, genre := range ev.Genres {
			if err := r.prefs.BumpGenre(ctx, ev.UserID, genre); err != nil {
				return err
			}
		}

	case TypeFollow:
		if ev.Author == "" {
			return nil
		}
		if err := r.prefs.AddAuthor(ctx, ev.UserID, ev.Author); err != nil {
			return err
		}

	default:
		// unfollow, onboarding_completed, and newsletter_open carry no
		// refinement signal.
		return nil
	}

	r.invalidateCache(ctx, ev.UserID)
	return nil
}

// invalidateCache drops the user's cached lists after a profile change.
func (r *Refiner) invalidateCache(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	for _, surface := range []recommend.Surface{recommend.SurfaceHome, recommend.SurfaceDiscover} {
		if err := r.cache.Invalidate(ctx, userID, surface); err != nil {
			r.logger.Warn().Err(err).
				Str("user_id", userID).
				Str("surface", string(surface)).
				Msg("cache invalidation failed")
		}
	}
}
