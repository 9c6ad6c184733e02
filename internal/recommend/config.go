// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package recommend

import (
	"fmt"
	"time"
)

// Config contains all configuration for the recommendation scorer.
type Config struct {
	// Algorithm is the active algorithm variant name.
	Algorithm string `koanf:"algorithm"`

	// Variants maps variant names to their weight configurations.
	Variants map[string]Variant `koanf:"variants"`

	// Limits contains operational limits.
	Limits LimitsConfig `koanf:"limits"`

	// Quality contains community-rating normalization parameters.
	Quality QualityConfig `koanf:"quality"`

	// Recency contains release-recency decay parameters.
	Recency RecencyConfig `koanf:"recency"`

	// Friends contains social-signal saturation parameters.
	Friends FriendsConfig `koanf:"friends"`
}

// Variant is a named configuration of scoring weights and diversity
// behavior. The variant name is recorded on every served item so the
// feedback log can compare variants.
type Variant struct {
	// Weights defines the relative contribution of each dimension.
	// Weights are normalized at runtime, so they don't need to sum to 1.
	Weights Weights `koanf:"weights"`

	// DiversityDecay is the per-repetition decay base for the diversity
	// second pass (0 < decay <= 1; lower suppresses repeats harder).
	DiversityDecay float64 `koanf:"diversity_decay"`

	// TrendingBoost multiplies the trending weight per time of day.
	// Missing entries default to 1.0.
	TrendingBoost map[TimeOfDay]float64 `koanf:"trending_boost"`
}

// Weights defines the relative contribution of each scoring dimension.
type Weights struct {
	Genre     float64 `koanf:"genre"`
	Author    float64 `koanf:"author"`
	Quality   float64 `koanf:"quality"`
	Friends   float64 `koanf:"friends"`
	Trending  float64 `koanf:"trending"`
	Recency   float64 `koanf:"recency"`
	Diversity float64 `koanf:"diversity"`
}

// Normalize returns a copy with weights scaled to sum to 1.0.
// All-zero weights normalize to equal shares.
func (w Weights) Normalize() Weights {
	sum := w.Genre + w.Author + w.Quality + w.Friends + w.Trending + w.Recency + w.Diversity
	if sum == 0 {
		const equal = 1.0 / 7.0
		return Weights{
			Genre: equal, Author: equal, Quality: equal, Friends: equal,
			Trending: equal, Recency: equal, Diversity: equal,
		}
	}
	return Weights{
		Genre:     w.Genre / sum,
		Author:    w.Author / sum,
		Quality:   w.Quality / sum,
		Friends:   w.Friends / sum,
		Trending:  w.Trending / sum,
		Recency:   w.Recency / sum,
		Diversity: w.Diversity / sum,
	}
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultLimit is the list length when the request omits one.
	DefaultLimit int `koanf:"default_limit"`

	// MaxLimit caps the requested list length.
	MaxLimit int `koanf:"max_limit"`

	// MaxCandidates bounds the candidate pool fetched per request.
	MaxCandidates int `koanf:"max_candidates"`

	// FetchTimeout bounds the candidate and signal fetches.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// QualityConfig controls community-rating normalization.
type QualityConfig struct {
	// MinRatings dampens ratings backed by few reviews: the quality
	// signal is scaled by count/(count+MinRatings).
	MinRatings int `koanf:"min_ratings"`
}

// RecencyConfig controls the release-recency decay.
type RecencyConfig struct {
	// HalfLifeDays is the age at which the recency signal halves.
	HalfLifeDays float64 `koanf:"half_life_days"`
}

// FriendsConfig controls the social-signal saturation.
type FriendsConfig struct {
	// Saturation is the engaged-friend count at which the friends
	// signal reaches its maximum.
	Saturation int `koanf:"saturation"`
}

// DefaultConfig returns the standard configuration with the "hybrid"
// variant active.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: "hybrid",
		Variants: map[string]Variant{
			"hybrid": {
				Weights: Weights{
					Genre:     0.25,
					Author:    0.10,
					Quality:   0.15,
					Friends:   0.15,
					Trending:  0.15,
					Recency:   0.10,
					Diversity: 0.10,
				},
				DiversityDecay: 0.5,
				TrendingBoost: map[TimeOfDay]float64{
					Evening: 1.15,
					Night:   1.1,
				},
			},
		},
		Limits: LimitsConfig{
			DefaultLimit:  20,
			MaxLimit:      100,
			MaxCandidates: 500,
			FetchTimeout:  5 * time.Second,
		},
		Quality: QualityConfig{MinRatings: 10},
		Recency: RecencyConfig{HalfLifeDays: 30},
		Friends: FriendsConfig{Saturation: 5},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Algorithm == "" {
		return fmt.Errorf("algorithm name required")
	}
	v, ok := c.Variants[c.Algorithm]
	if !ok {
		return fmt.Errorf("unknown algorithm variant %q", c.Algorithm)
	}
	if v.DiversityDecay <= 0 || v.DiversityDecay > 1 {
		return fmt.Errorf("variant %q: diversity decay must be in (0, 1], got %v", c.Algorithm, v.DiversityDecay)
	}
	if w := v.Weights; w.Genre < 0 || w.Author < 0 || w.Quality < 0 || w.Friends < 0 ||
		w.Trending < 0 || w.Recency < 0 || w.Diversity < 0 {
		return fmt.Errorf("variant %q: weights must be non-negative", c.Algorithm)
	}
	if c.Limits.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("max limit %d below default limit %d", c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}
	if c.Limits.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive, got %d", c.Limits.MaxCandidates)
	}
	if c.Recency.HalfLifeDays <= 0 {
		return fmt.Errorf("recency half-life must be positive, got %v", c.Recency.HalfLifeDays)
	}
	if c.Friends.Saturation <= 0 {
		return fmt.Errorf("friends saturation must be positive, got %d", c.Friends.Saturation)
	}
	return nil
}

// ActiveVariant returns the configured algorithm variant.
func (c *Config) ActiveVariant() Variant {
	return c.Variants[c.Algorithm]
}
