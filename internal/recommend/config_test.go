// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package recommend

import (
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"empty algorithm", func(c *Config) { c.Algorithm = "" }, true},
		{"unknown variant", func(c *Config) { c.Algorithm = "nope" }, true},
		{"zero decay", func(c *Config) {
			v := c.Variants["hybrid"]
			v.DiversityDecay = 0
			c.Variants["hybrid"] = v
		}, true},
		{"decay above one", func(c *Config) {
			v := c.Variants["hybrid"]
			v.DiversityDecay = 1.5
			c.Variants["hybrid"] = v
		}, true},
		{"negative weight", func(c *Config) {
			v := c.Variants["hybrid"]
			v.Weights.Genre = -0.1
			c.Variants["hybrid"] = v
		}, true},
		{"zero default limit", func(c *Config) { c.Limits.DefaultLimit = 0 }, true},
		{"max below default", func(c *Config) { c.Limits.MaxLimit = 5 }, true},
		{"zero max candidates", func(c *Config) { c.Limits.MaxCandidates = 0 }, true},
		{"zero half-life", func(c *Config) { c.Recency.HalfLifeDays = 0 }, true},
		{"zero saturation", func(c *Config) { c.Friends.Saturation = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWeightsNormalize(t *testing.T) {
	w := Weights{Genre: 2, Quality: 1, Diversity: 1}
	n := w.Normalize()

	if !almostEqual(n.Genre, 0.5) {
		t.Errorf("Genre = %v, want 0.5", n.Genre)
	}
	if !almostEqual(n.Quality, 0.25) {
		t.Errorf("Quality = %v, want 0.25", n.Quality)
	}
	if !almostEqual(n.Author, 0) {
		t.Errorf("Author = %v, want 0", n.Author)
	}

	sum := n.Genre + n.Author + n.Quality + n.Friends + n.Trending + n.Recency + n.Diversity
	if !almostEqual(sum, 1.0) {
		t.Errorf("normalized sum = %v, want 1.0", sum)
	}
}

func TestWeightsNormalizeAllZero(t *testing.T) {
	n := Weights{}.Normalize()
	sum := n.Genre + n.Author + n.Quality + n.Friends + n.Trending + n.Recency + n.Diversity
	if !almostEqual(sum, 1.0) {
		t.Errorf("normalized sum = %v, want 1.0", sum)
	}
	if !almostEqual(n.Genre, n.Diversity) {
		t.Errorf("all-zero weights should normalize to equal shares, got genre=%v diversity=%v", n.Genre, n.Diversity)
	}
}

func TestActiveVariant(t *testing.T) {
	cfg := DefaultConfig()
	v := cfg.ActiveVariant()
	if v.DiversityDecay != 0.5 {
		t.Errorf("DiversityDecay = %v, want 0.5", v.DiversityDecay)
	}
	if v.TrendingBoost[Evening] != 1.15 {
		t.Errorf("TrendingBoost[evening] = %v, want 1.15", v.TrendingBoost[Evening])
	}
}
