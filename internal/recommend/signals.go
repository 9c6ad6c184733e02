// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package recommend

import (
	"math"
	"strings"
	"time"
)

// Raw signal values are all in [0, 1] before weighting. Each function is
// pure: the same inputs always produce the same value.

// genreSignal measures overlap between the item's genre tags and the
// user's genre weights, averaged over the item's genres so many-genre
// items are not favored.
func genreSignal(genres []string, taste *Taste, maxWeight float64) float64 {
	if taste == nil || len(genres) == 0 || len(taste.GenreWeights) == 0 {
		return 0
	}

	var sum float64
	for _, g := range genres {
		w := taste.GenreWeights[strings.ToLower(strings.TrimSpace(g))]
		if w > maxWeight {
			w = maxWeight
		}
		sum += w / maxWeight
	}
	return clamp01(sum / float64(len(genres)))
}

// authorSignal is 1 when any of the item's authors is in the user's
// favored set.
func authorSignal(authors []string, taste *Taste) float64 {
	if taste == nil || len(taste.FavoriteAuthors) == 0 {
		return 0
	}
	for _, a := range authors {
		if _, ok := taste.FavoriteAuthors[a]; ok {
			return 1
		}
	}
	return 0
}

// qualitySignal normalizes the community rating, dampened for items
// backed by few ratings so a single 5-star review does not dominate.
func qualitySignal(rating float64, count, minRatings int) float64 {
	if count <= 0 {
		return 0
	}
	confidence := float64(count) / float64(count+minRatings)
	return clamp01(rating/5.0) * confidence
}

// friendsSignal saturates at the configured engaged-friend count.
func friendsSignal(engaged, saturation int) float64 {
	if engaged <= 0 {
		return 0
	}
	if engaged >= saturation {
		return 1
	}
	return float64(engaged) / float64(saturation)
}

// recencySignal decays exponentially with item age; an item at the
// half-life age scores 0.5. Future-dated items score the full 1.
func recencySignal(publishedAt, now time.Time, halfLifeDays float64) float64 {
	if publishedAt.IsZero() {
		return 0
	}
	ageDays := now.Sub(publishedAt).Hours() / 24
	if ageDays <= 0 {
		return 1
	}
	return clamp01(math.Exp(-math.Ln2 * ageDays / halfLifeDays))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// reasonFor derives the human-readable label from the dominant
// non-diversity contribution. An all-zero breakdown falls back to a
// generic label so a reason is always present.
func reasonFor(b Breakdown) string {
	type dim struct {
		value float64
		label string
	}
	dims := []dim{
		{b.Genre, "Because you liked similar genres"},
		{b.Author, "From an author you love"},
		{b.Quality, "Highly rated by the community"},
		{b.Friends, "Popular with readers you follow"},
		{b.Trending, "Trending on Pagemark"},
		{b.Recency, "New and noteworthy"},
	}

	best := ""
	bestValue := 0.0
	for _, d := range dims {
		if d.value > bestValue {
			best = d.label
			bestValue = d.value
		}
	}
	if best == "" {
		return "Recommended for you"
	}
	return best
}
