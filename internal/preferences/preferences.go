// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package preferences maintains the per-user preference profile: a map of
// genre weights and a set of favored authors. Profiles are seeded at
// onboarding with descending weights and refined additively by interaction
// events. A merge never lowers a weight the user already earned.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/storage"
)

// ErrNoProfile is returned when a user has no preference profile yet.
// Callers treat this as a cold start, not a failure.
var ErrNoProfile = errors.New("preferences: no profile")

// ErrEmptyUserID is returned for requests without a user identifier.
var ErrEmptyUserID = errors.New("preferences: empty user id")

const keyPrefix = "pref:"

// Profile is one user's accumulated preference signal.
type Profile struct {
	UserID          string             `json:"user_id"`
	GenreWeights    map[string]float64 `json:"genre_weights"`
	FavoriteAuthors []string           `json:"favorite_authors"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// AuthorSet returns the favored authors as a lookup set.
func (p *Profile) AuthorSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.FavoriteAuthors))
	for _, a := range p.FavoriteAuthors {
		set[a] = struct{}{}
	}
	return set
}

// Config holds onboarding seed parameters.
type Config struct {
	// SeedBase is the weight assigned to the user's first genre pick.
	SeedBase float64 `koanf:"seed_base"`

	// SeedStep is the amount each subsequent pick's weight is reduced by.
	SeedStep float64 `koanf:"seed_step"`

	// MaxWeight caps weights accumulated from interaction-derived bumps.
	// Onboarding seeds are not capped.
	MaxWeight float64 `koanf:"max_weight"`

	// BumpStep is the weight added per derived interaction signal.
	BumpStep float64 `koanf:"bump_step"`
}

// DefaultConfig returns the standard seed parameters: first pick 5.0,
// each later pick 0.5 lighter.
func DefaultConfig() Config {
	return Config{
		SeedBase:  5.0,
		SeedStep:  0.5,
		MaxWeight: 5.0,
		BumpStep:  0.1,
	}
}

// Store reads and mutates preference profiles in the document store.
type Store struct {
	store  storage.Store
	cfg    Config
	logger zerolog.Logger
	clock  func() time.Time
}

// NewStore creates a preference store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(store storage.Store, cfg Config, logger zerolog.Logger) *Store {
	if cfg.SeedBase == 0 {
		cfg = DefaultConfig()
	}
	return &Store{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "preferences").Logger(),
		clock:  time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(clock func() time.Time) {
	s.clock = clock
}

func profileKey(userID string) string {
	return keyPrefix + userID
}

// Get returns the user's profile, or ErrNoProfile for a cold-start user.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	var p Profile
	err := s.store.Find(ctx, profileKey(userID), &p)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

// MergeOnboarding seeds the profile from the user's ranked genre picks and
// chosen authors. The first pick gets SeedBase, each later pick SeedStep
// less. Merging is additive: an existing weight is kept when it is higher
// than the new seed, and authors are unioned. Calling twice with the same
// picks is a no-op.
func (s *Store) MergeOnboarding(ctx context.Context, userID string, rankedGenres, authors []string) (*Profile, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	now := s.clock()
	var merged *Profile

	err := s.store.Update(ctx, profileKey(userID), func(current []byte) ([]byte, error) {
		p := s.decodeOrNew(current, userID, now)

		for i, genre := range rankedGenres {
			genre = normalizeTag(genre)
			if genre == "" {
				continue
			}
			weight := s.cfg.SeedBase - float64(i)*s.cfg.SeedStep
			if weight < 0 {
				weight = 0
			}
			if weight > p.GenreWeights[genre] {
				p.GenreWeights[genre] = weight
			}
		}

		p.FavoriteAuthors = unionAuthors(p.FavoriteAuthors, authors)
		p.UpdatedAt = now

		merged = p
		return json.Marshal(p)
	})
	if err != nil {
		return nil, fmt.Errorf("merge onboarding: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Int("genres", len(rankedGenres)).
		Int("authors", len(authors)).
		Msg("onboarding preferences merged")

	return merged, nil
}

// BumpGenre adds a derived interaction signal to one genre weight,
// capped at MaxWeight. Creates the profile if absent.
func (s *Store) BumpGenre(ctx context.Context, userID, genre string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	genre = normalizeTag(genre)
	if genre == "" {
		return nil
	}

	now := s.clock()
	return s.store.Update(ctx, profileKey(userID), func(current []byte) ([]byte, error) {
		p := s.decodeOrNew(current, userID, now)

		w := p.GenreWeights[genre] + s.cfg.BumpStep
		if w > s.cfg.MaxWeight && p.GenreWeights[genre] <= s.cfg.MaxWeight {
			w = s.cfg.MaxWeight
		}
		if w > p.GenreWeights[genre] {
			p.GenreWeights[genre] = w
		}
		p.UpdatedAt = now
		return json.Marshal(p)
	})
}

// AddAuthor adds an author to the favored set. Creates the profile if
// absent. Idempotent.
func (s *Store) AddAuthor(ctx context.Context, userID, author string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return nil
	}

	now := s.clock()
	return s.store.Update(ctx, profileKey(userID), func(current []byte) ([]byte, error) {
		p := s.decodeOrNew(current, userID, now)
		p.FavoriteAuthors = unionAuthors(p.FavoriteAuthors, []string{author})
		p.UpdatedAt = now
		return json.Marshal(p)
	})
}

func (s *Store) decodeOrNew(current []byte, userID string, now time.Time) *Profile {
	p := &Profile{
		UserID:       userID,
		GenreWeights: make(map[string]float64),
		CreatedAt:    now,
	}
	if current != nil {
		if err := json.Unmarshal(current, p); err != nil {
			// A corrupt profile is replaced rather than blocking the user forever.
			s.logger.Warn().Str("user_id", userID).Err(err).Msg("discarding unreadable profile")
			p = &Profile{UserID: userID, GenreWeights: make(map[string]float64), CreatedAt: now}
		}
		if p.GenreWeights == nil {
			p.GenreWeights = make(map[string]float64)
		}
	}
	return p
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func unionAuthors(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, a := range existing {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	for _, a := range incoming {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
