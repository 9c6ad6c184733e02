// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package reranking implements the diversity second pass over a
// relevance-sorted recommendation list.
//
// The pass is a greedy selection: at each step the candidate with the
// highest diversity-adjusted score is taken, where the adjustment decays
// an item's diversity contribution by how many already-selected items
// share a genre or author with it:
//
//	diversity(i) = full(i) * decay(repeats(i, selected))
//
// The decay function is swappable per algorithm variant; the default is
// exponential. Contributions never go negative, so every breakdown
// dimension stays a non-negative float.
package reranking

import (
	"context"
	"strings"

	"github.com/pagemark/pagemark/internal/recommend"
)

// maxSelectionSize bounds slice allocations; limit is also bounded by
// the scorer's MaxLimit.
const maxSelectionSize = 1000

// DecayFunc maps a repetition count to a multiplier in [0, 1].
// repeats == 0 must return 1 so unprecedented items keep their full
// diversity contribution.
type DecayFunc func(repeats int) float64

// ExponentialDecay halves (for base 0.5) the diversity contribution per
// repetition. Base is clamped to (0, 1].
func ExponentialDecay(base float64) DecayFunc {
	if base <= 0 {
		base = 0.5
	}
	if base > 1 {
		base = 1
	}
	return func(repeats int) float64 {
		m := 1.0
		for i := 0; i < repeats; i++ {
			m *= base
		}
		return m
	}
}

// LinearDecay subtracts step per repetition, bottoming out at zero.
func LinearDecay(step float64) DecayFunc {
	if step < 0 {
		step = 0
	}
	return func(repeats int) float64 {
		m := 1.0 - step*float64(repeats)
		if m < 0 {
			return 0
		}
		return m
	}
}

// RepetitionPenalty implements recommend.Diversifier with a decay over
// genre/author repetition.
type RepetitionPenalty struct {
	decay DecayFunc
}

// NewRepetitionPenalty creates the diversifier with the given decay.
func NewRepetitionPenalty(decay DecayFunc) *RepetitionPenalty {
	if decay == nil {
		decay = ExponentialDecay(0.5)
	}
	return &RepetitionPenalty{decay: decay}
}

// Name returns the diversifier identifier.
func (p *RepetitionPenalty) Name() string {
	return "repetition_penalty"
}

// Apply greedily reorders the sorted list, decaying each item's
// diversity contribution by the number of already-selected items that
// share a genre or author with it. Scores and Diversity contributions
// of the returned items reflect the adjustment.
func (p *RepetitionPenalty) Apply(ctx context.Context, ranked []recommend.Ranked, limit int) []recommend.Ranked {
	if len(ranked) == 0 || limit <= 0 {
		return ranked
	}
	if limit > maxSelectionSize {
		limit = maxSelectionSize
	}
	if limit > len(ranked) {
		limit = len(ranked)
	}

	selected := make([]recommend.Ranked, 0, limit)
	used := make([]bool, len(ranked))
	genreCounts := make(map[string]int)
	authorCounts := make(map[string]int)

	for len(selected) < limit {
		if ctx.Err() != nil {
			break
		}

		bestIdx := -1
		bestScore := -1.0
		var bestAdjusted recommend.Ranked

		for i, r := range ranked {
			if used[i] {
				continue
			}

			repeats := repetitions(r.Meta, genreCounts, authorCounts)
			adjDiversity := r.Rec.Breakdown.Diversity * p.decay(repeats)
			adjScore := r.Rec.Score - r.Rec.Breakdown.Diversity + adjDiversity

			if adjScore > bestScore {
				adjusted := r
				adjusted.Rec.Breakdown.Diversity = adjDiversity
				adjusted.Rec.Score = adjScore
				bestIdx = i
				bestScore = adjScore
				bestAdjusted = adjusted
			}
		}

		if bestIdx < 0 {
			break
		}

		used[bestIdx] = true
		selected = append(selected, bestAdjusted)
		countTraits(bestAdjusted.Meta, genreCounts, authorCounts)
	}

	return selected
}

// repetitions counts already-selected items sharing a genre or author
// with the candidate. Each selected item counts at most once.
func repetitions(c recommend.Candidate, genreCounts, authorCounts map[string]int) int {
	max := 0
	for _, g := range c.Genres {
		if n := genreCounts[normalize(g)]; n > max {
			max = n
		}
	}
	for _, a := range c.Authors {
		if n := authorCounts[a]; n > max {
			max = n
		}
	}
	return max
}

func countTraits(c recommend.Candidate, genreCounts, authorCounts map[string]int) {
	for _, g := range c.Genres {
		genreCounts[normalize(g)]++
	}
	for _, a := range c.Authors {
		authorCounts[a]++
	}
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
