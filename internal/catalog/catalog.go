// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package catalog supplies the recommendation scorer's candidate pool
// and social signals from the document store. Eligibility filtering
// happens here: items the user already shelved and unavailable items
// never reach the scorer.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/recommend"
	"github.com/pagemark/pagemark/internal/storage"
)

const (
	itemPrefix   = "catalog:"
	shelfPrefix  = "shelf:"
	followPrefix = "follow:"
)

// Item is one catalog entry.
type Item struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Authors       []string  `json:"authors"`
	Genres        []string  `json:"genres"`
	Rating        float64   `json:"rating"`
	RatingsCount  int       `json:"ratings_count"`
	PublishedAt   time.Time `json:"published_at"`
	TrendingScore float64   `json:"trending_score"`
	Available     bool      `json:"available"`
}

// ShelfEntry records that a user holds an item.
type ShelfEntry struct {
	UserID  string    `json:"user_id"`
	ItemID  string    `json:"item_id"`
	AddedAt time.Time `json:"added_at"`
}

// FollowEntry records a social connection.
type FollowEntry struct {
	UserID       string    `json:"user_id"`
	TargetUserID string    `json:"target_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Provider implements recommend.DataProvider over the document store.
// Safe for concurrent use.
type Provider struct {
	store  storage.Store
	logger zerolog.Logger
	clock  func() time.Time
}

// NewProvider creates a catalog provider.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewProvider(store storage.Store, logger zerolog.Logger) *Provider {
	return &Provider{
		store:  store,
		logger: logger.With().Str("component", "catalog").Logger(),
		clock:  time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (p *Provider) SetClock(clock func() time.Time) {
	p.clock = clock
}

func itemKey(itemID string) string {
	return itemPrefix + itemID
}

func shelfKey(userID, itemID string) string {
	return fmt.Sprintf("%s%s:%s", shelfPrefix, userID, itemID)
}

func followKey(userID, targetID string) string {
	return fmt.Sprintf("%s%s:%s", followPrefix, userID, targetID)
}

// PutItem upserts a catalog entry.
func (p *Provider) PutItem(ctx context.Context, item *Item) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("catalog: item with id required")
	}
	return p.store.Upsert(ctx, itemKey(item.ID), item)
}

// AddToShelf records that the user holds the item. Shelved items are
// excluded from the user's candidate pool.
func (p *Provider) AddToShelf(ctx context.Context, userID, itemID string) error {
	if userID == "" || itemID == "" {
		return fmt.Errorf("catalog: user id and item id required")
	}
	return p.store.Upsert(ctx, shelfKey(userID, itemID), &ShelfEntry{
		UserID:  userID,
		ItemID:  itemID,
		AddedAt: p.clock(),
	})
}

// Follow records a social connection from userID to targetID.
func (p *Provider) Follow(ctx context.Context, userID, targetID string) error {
	if userID == "" || targetID == "" {
		return fmt.Errorf("catalog: user id and target id required")
	}
	return p.store.Upsert(ctx, followKey(userID, targetID), &FollowEntry{
		UserID:       userID,
		TargetUserID: targetID,
		CreatedAt:    p.clock(),
	})
}

// Unfollow removes a social connection.
func (p *Provider) Unfollow(ctx context.Context, userID, targetID string) error {
	return p.store.Delete(ctx, followKey(userID, targetID))
}

// GetCandidates returns up to limit eligible candidates: available
// catalog items the user has not shelved.
func (p *Provider) GetCandidates(ctx context.Context, userID string, limit int) ([]recommend.Candidate, error) {
	held, err := p.shelvedItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load shelf: %w", err)
	}

	candidates := make([]recommend.Candidate, 0, limit)
	err = p.store.List(ctx, itemPrefix, func(key string, value []byte) error {
		if limit > 0 && len(candidates) >= limit {
			return errStopIteration
		}

		var item Item
		if err := json.Unmarshal(value, &item); err != nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("skipping undecodable catalog item")
			return nil
		}
		if !item.Available {
			return nil
		}
		if _, ok := held[item.ID]; ok {
			return nil
		}

		candidates = append(candidates, recommend.Candidate{
			ID:            item.ID,
			Title:         item.Title,
			Authors:       item.Authors,
			Genres:        item.Genres,
			Rating:        item.Rating,
			RatingsCount:  item.RatingsCount,
			PublishedAt:   item.PublishedAt,
			TrendingScore: item.TrendingScore,
		})
		return nil
	})
	if err != nil && err != errStopIteration {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return candidates, nil
}

// GetFriendEngagement counts, per item, how many of the user's followed
// readers hold the item on their shelf.
func (p *Provider) GetFriendEngagement(ctx context.Context, userID string) (map[string]int, error) {
	friends := make([]string, 0, 8)
	err := p.store.List(ctx, followPrefix+userID+":", func(key string, value []byte) error {
		var f FollowEntry
		if err := json.Unmarshal(value, &f); err != nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("skipping undecodable follow entry")
			return nil
		}
		if f.TargetUserID != "" {
			friends = append(friends, f.TargetUserID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan follows: %w", err)
	}

	engagement := make(map[string]int)
	for _, friend := range friends {
		held, err := p.shelvedItems(ctx, friend)
		if err != nil {
			return nil, fmt.Errorf("scan friend shelf: %w", err)
		}
		for itemID := range held {
			engagement[itemID]++
		}
	}
	return engagement, nil
}

func (p *Provider) shelvedItems(ctx context.Context, userID string) (map[string]struct{}, error) {
	held := make(map[string]struct{})
	prefix := shelfPrefix + userID + ":"
	err := p.store.List(ctx, prefix, func(key string, _ []byte) error {
		held[strings.TrimPrefix(key, prefix)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return held, nil
}

var errStopIteration = fmt.Errorf("catalog: stop iteration")
