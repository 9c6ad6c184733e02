// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package recommend

import (
	"context"
	"time"
)

// Note: this package depends on no internal packages besides metrics.
// The DataProvider and TasteProvider interfaces let the catalog and
// preference layers plug in without circular imports.

// Surface is a named context a recommendation list is shown in.
// It is part of the cache key, so lists for different surfaces are
// cached independently.
type Surface string

const (
	// SurfaceHome is the home feed.
	SurfaceHome Surface = "home"
	// SurfaceDiscover is the discovery page.
	SurfaceDiscover Surface = "discover"
)

// TimeOfDay is a coarse wall-clock bucket for time-aware scoring.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// TimeOfDayFromHour buckets an hour (0-23) into a TimeOfDay.
func TimeOfDayFromHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// Breakdown is the fixed 7-dimension score decomposition. Every field is
// a non-negative weighted contribution; Total is the item's score.
type Breakdown struct {
	Genre     float64 `json:"genre"`
	Author    float64 `json:"author"`
	Quality   float64 `json:"quality"`
	Friends   float64 `json:"friends"`
	Trending  float64 `json:"trending"`
	Recency   float64 `json:"recency"`
	Diversity float64 `json:"diversity"`
}

// Total returns the aggregate score: the sum of all seven contributions.
func (b Breakdown) Total() float64 {
	return b.Genre + b.Author + b.Quality + b.Friends + b.Trending + b.Recency + b.Diversity
}

// Item is one scored recommendation as served to a caller. Position is
// the 0-based rank at serve time and is never recomputed after caching.
type Item struct {
	ItemID    string    `json:"item_id"`
	Score     float64   `json:"score"`
	Reason    string    `json:"reason"`
	Algorithm string    `json:"algorithm"`
	Position  int       `json:"position"`
	Breakdown Breakdown `json:"score_breakdown"`
}

// Candidate is a catalog item eligible for recommendation. The data
// provider excludes items the user already holds and unavailable items
// before candidates reach the scorer.
type Candidate struct {
	// ID is the unique content identifier.
	ID string `json:"id"`

	// Title is the content title.
	Title string `json:"title"`

	// Authors lists the item's authors.
	Authors []string `json:"authors"`

	// Genres is a slice of genre tags.
	Genres []string `json:"genres"`

	// Rating is the community rating (0-5).
	Rating float64 `json:"rating"`

	// RatingsCount is the number of community ratings behind Rating.
	RatingsCount int `json:"ratings_count"`

	// PublishedAt is the release date.
	PublishedAt time.Time `json:"published_at"`

	// TrendingScore is the recent platform-wide engagement velocity,
	// normalized to [0, 1] by the provider.
	TrendingScore float64 `json:"trending_score"`
}

// Taste is the scorer's read-only view of a user's preference profile.
type Taste struct {
	GenreWeights    map[string]float64
	FavoriteAuthors map[string]struct{}
}

// Context carries the serving context options recognized by the scorer.
type Context struct {
	// Surface is the surface tag the list will be shown on.
	Surface Surface `json:"surface"`

	// SessionID is an optional correlation identifier.
	SessionID string `json:"session_id,omitempty"`

	// TimeOfDay is derived from the wall clock when empty.
	TimeOfDay TimeOfDay `json:"time_of_day,omitempty"`
}

// Request is a scoring request for one user.
type Request struct {
	UserID    string  `json:"user_id"`
	Limit     int     `json:"limit,omitempty"`
	Context   Context `json:"context"`
	RequestID string  `json:"request_id,omitempty"`

	// ForceRefresh bypasses the cache and scores fresh.
	ForceRefresh bool `json:"force_refresh,omitempty"`
}

// Response is the scored, ranked result.
type Response struct {
	Items           []Item           `json:"items"`
	Algorithm       string           `json:"algorithm"`
	TotalCandidates int              `json:"total_candidates"`
	Metadata        ResponseMetadata `json:"metadata"`
}

// ResponseMetadata carries timing and diagnostic information.
type ResponseMetadata struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Surface     Surface   `json:"surface"`
	TimeOfDay   TimeOfDay `json:"time_of_day"`
	ColdStart   bool      `json:"cold_start"`
	LatencyMS   int64     `json:"latency_ms"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DataProvider supplies the candidate pool and social signals.
// Implementations must apply eligibility filtering (held items,
// availability) before returning candidates.
type DataProvider interface {
	// GetCandidates returns up to limit eligible candidates for the user.
	GetCandidates(ctx context.Context, userID string, limit int) ([]Candidate, error)

	// GetFriendEngagement returns, per item ID, how many of the user's
	// social connections engaged positively with the item.
	GetFriendEngagement(ctx context.Context, userID string) (map[string]int, error)
}

// TasteProvider supplies the user's preference view. A cold-start user
// yields (nil, nil), never an error.
type TasteProvider interface {
	Taste(ctx context.Context, userID string) (*Taste, error)
}

// Ranked pairs a scored item with the candidate metadata ranking needs.
type Ranked struct {
	Rec  Item
	Meta Candidate
}

// Diversifier adjusts the diversity contribution of a sorted list to
// avoid a homogeneous top-N. Implementations may reorder items but must
// preserve the non-negativity of every breakdown dimension.
type Diversifier interface {
	// Name returns the diversifier identifier.
	Name() string

	// Apply processes the relevance-sorted list and returns up to limit
	// items with Diversity contributions and Scores adjusted.
	Apply(ctx context.Context, ranked []Ranked, limit int) []Ranked
}
