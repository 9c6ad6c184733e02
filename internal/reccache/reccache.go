// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package reccache caches generated recommendation lists per user and
// surface. Entries are replaced whole: a write installs a complete new
// list, never a partial mutation, so readers observe either the old list
// or the new one. A cache miss is not an error, and read failures
// degrade to a miss so serving can always fall back to fresh scoring.
package reccache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/metrics"
	"github.com/pagemark/pagemark/internal/recommend"
	"github.com/pagemark/pagemark/internal/storage"
)

// DefaultTTL is the entry lifetime when the configuration omits one.
const DefaultTTL = time.Hour

const keyPrefix = "reccache:"

// Entry is one cached recommendation list. Items keep the positions and
// score breakdowns they had at generation time.
type Entry struct {
	UserID    string                      `json:"user_id"`
	Surface   recommend.Surface           `json:"surface"`
	Items     []recommend.Item            `json:"items"`
	Related   map[string][]recommend.Item `json:"related,omitempty"`
	Algorithm string                      `json:"algorithm"`
	CreatedAt time.Time                   `json:"created_at"`
	TTL       time.Duration               `json:"ttl"`
}

// Cache stores recommendation lists keyed by user and surface.
// Safe for concurrent use.
type Cache struct {
	store  storage.Store
	logger zerolog.Logger
	ttl    time.Duration
	clock  func() time.Time
}

// New creates a cache over the given store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(store storage.Store, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:  store,
		logger: logger.With().Str("component", "reccache").Logger(),
		ttl:    ttl,
		clock:  time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (c *Cache) SetClock(clock func() time.Time) {
	c.clock = clock
}

// Key returns the storage key for a user/surface pair.
func Key(userID string, surface recommend.Surface) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, userID, surface)
}

// GetFresh returns the cached entry for the user and surface when it is
// still within its TTL and holds at least limit items, truncated to
// limit. Expired, short, or unreadable entries report a miss.
func (c *Cache) GetFresh(ctx context.Context, userID string, surface recommend.Surface, limit int) (*Entry, bool) {
	var entry Entry
	err := c.store.Find(ctx, Key(userID, surface), &entry)
	if err != nil {
		if err != storage.ErrNotFound {
			// A broken read serves as a miss; fresh scoring covers it.
			c.logger.Warn().Err(err).
				Str("user_id", userID).
				Str("surface", string(surface)).
				Msg("cache read failed, treating as miss")
		}
		metrics.RecCacheMisses.WithLabelValues(string(surface)).Inc()
		return nil, false
	}

	ttl := entry.TTL
	if ttl <= 0 {
		ttl = c.ttl
	}
	if c.clock().Sub(entry.CreatedAt) >= ttl {
		metrics.RecCacheMisses.WithLabelValues(string(surface)).Inc()
		return nil, false
	}
	if limit > 0 && len(entry.Items) < limit {
		// Cached list is shorter than requested; rescore rather than
		// serve a truncated result as if it were complete.
		metrics.RecCacheMisses.WithLabelValues(string(surface)).Inc()
		return nil, false
	}
	if limit > 0 && len(entry.Items) > limit {
		entry.Items = entry.Items[:limit]
	}

	metrics.RecCacheHits.WithLabelValues(string(surface)).Inc()
	return &entry, true
}

// Put replaces the entry for the user and surface with a complete new
// list. CreatedAt and TTL are stamped here.
func (c *Cache) Put(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.UserID == "" {
		return fmt.Errorf("reccache: entry with user id required")
	}
	if entry.Surface == "" {
		entry.Surface = recommend.SurfaceHome
	}
	entry.CreatedAt = c.clock()
	if entry.TTL <= 0 {
		entry.TTL = c.ttl
	}

	if err := c.store.Upsert(ctx, Key(entry.UserID, entry.Surface), entry); err != nil {
		metrics.RecCacheWriteFailures.Inc()
		return fmt.Errorf("reccache: put %s/%s: %w", entry.UserID, entry.Surface, err)
	}
	return nil
}

// Invalidate removes the entry for the user and surface. Used when a
// preference change should force fresh scoring before the TTL elapses.
func (c *Cache) Invalidate(ctx context.Context, userID string, surface recommend.Surface) error {
	return c.store.Delete(ctx, Key(userID, surface))
}
