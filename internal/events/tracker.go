// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pagemark/pagemark/internal/metrics"
	"github.com/pagemark/pagemark/internal/storage"
)

const keyPrefix = "event:"

// TrackerConfig holds ingestion limits.
type TrackerConfig struct {
	// RatePerSecond caps accepted events per second across all callers.
	// Zero disables the limiter.
	RatePerSecond float64 `koanf:"rate_per_second"`

	// Burst is the limiter burst size.
	Burst int `koanf:"burst"`

	// BatchMaxSize caps the number of elements in one batch request.
	BatchMaxSize int `koanf:"batch_max_size"`
}

// DefaultTrackerConfig returns production ingestion limits.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		RatePerSecond: 500,
		Burst:         1000,
		BatchMaxSize:  100,
	}
}

// Tracker ingests interaction events: persist first, then publish on the
// bus for refinement. Safe for concurrent use.
type Tracker struct {
	store     storage.Store
	publisher Publisher
	limiter   *rate.Limiter
	cfg       TrackerConfig
	logger    zerolog.Logger
	clock     func() time.Time
}

// NewTracker creates an event tracker. publisher may be nil, in which
// case accepted events are persisted but not refined.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTracker(store storage.Store, publisher Publisher, cfg TrackerConfig, logger zerolog.Logger) *Tracker {
	if cfg.BatchMaxSize <= 0 {
		cfg.BatchMaxSize = DefaultTrackerConfig().BatchMaxSize
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RatePerSecond)
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Tracker{
		store:     store,
		publisher: publisher,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger.With().Str("component", "events").Logger(),
		clock:     time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (t *Tracker) SetClock(clock func() time.Time) {
	t.clock = clock
}

// BatchMaxSize returns the configured batch element cap.
func (t *Tracker) BatchMaxSize() int {
	return t.cfg.BatchMaxSize
}

// Key returns the storage key for an event.
func Key(ev *Event) string {
	return fmt.Sprintf("%s%s:%020d:%s", keyPrefix, ev.UserID, ev.OccurredAt.UnixNano(), ev.ID)
}

// Track ingests one event.
func (t *Tracker) Track(ctx context.Context, ev *Event) error {
	err := t.track(ctx, ev)

	result := "ok"
	if err != nil {
		result = "rejected"
	}
	// Only types from the closed set may become label values; anything
	// else would let callers grow the metric's cardinality unbounded.
	typeLabel := string(ev.Type)
	if _, terr := ParseType(typeLabel); terr != nil {
		typeLabel = "invalid"
	}
	metrics.EventsIngested.WithLabelValues(typeLabel, result).Inc()
	return err
}

func (t *Tracker) track(ctx context.Context, ev *Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if t.limiter != nil && !t.limiter.Allow() {
		return ErrRateLimited
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = t.clock()
	}

	if err := t.store.Upsert(ctx, Key(ev), ev); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, ev); err != nil {
			// The event is persisted; refinement is best-effort.
			t.logger.Warn().Err(err).
				Str("user_id", ev.UserID).
				Str("type", string(ev.Type)).
				Msg("event publish failed")
		}
	}
	return nil
}

// TrackBatch ingests a batch with per-element validation. Valid elements
// are accepted even when others fail; the result reports both counts and
// the failures by index.
func (t *Tracker) TrackBatch(ctx context.Context, batch []*Event) (*BatchResult, error) {
	if len(batch) == 0 {
		return &BatchResult{}, nil
	}
	if len(batch) > t.cfg.BatchMaxSize {
		return nil, fmt.Errorf("events: batch size %d exceeds limit %d", len(batch), t.cfg.BatchMaxSize)
	}

	result := &BatchResult{}
	for i, ev := range batch {
		if ev == nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{Index: i, Message: "null event"})
			continue
		}
		if err := t.Track(ctx, ev); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{Index: i, Message: err.Error()})
			continue
		}
		result.Accepted++
	}

	t.logger.Debug().
		Int("accepted", result.Accepted).
		Int("failed", result.Failed).
		Msg("batch ingested")
	return result, nil
}
