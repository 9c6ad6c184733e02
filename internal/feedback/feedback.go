// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package feedback records how users respond to served recommendations
// and aggregates per-algorithm effectiveness metrics.
//
// Each (user, item, surface) triple carries one row that moves through a
// strict state machine:
//
//	shown -> clicked -> converted
//	shown -> converted
//	shown -> dismissed
//
// converted and dismissed are terminal. Recording the row's current
// status again is an idempotent no-op; any other transition is rejected.
// The whole transition runs inside the store's serialized single-key
// Update, so concurrent reports cannot interleave.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pagemark/pagemark/internal/metrics"
	"github.com/pagemark/pagemark/internal/recommend"
	"github.com/pagemark/pagemark/internal/storage"
)

// Action is a feedback event reported against a served recommendation.
type Action string

const (
	ActionShown     Action = "shown"
	ActionClicked   Action = "clicked"
	ActionConverted Action = "converted"
	ActionDismissed Action = "dismissed"
)

// ParseAction validates a wire-level action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionShown, ActionClicked, ActionConverted, ActionDismissed:
		return Action(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

var (
	// ErrUnknownAction is returned for an action outside the closed set.
	ErrUnknownAction = errors.New("feedback: unknown action")

	// ErrNotShown is returned when an engagement action arrives for a
	// recommendation that was never recorded as shown.
	ErrNotShown = errors.New("feedback: recommendation not recorded as shown")

	// ErrTerminal is returned when the row is already converted or
	// dismissed.
	ErrTerminal = errors.New("feedback: recommendation in terminal state")

	// ErrInvalidTransition is returned for a disallowed state change.
	ErrInvalidTransition = errors.New("feedback: invalid transition")
)

const keyPrefix = "feedback:"

// Row is the stored interaction record for one served recommendation.
type Row struct {
	UserID    string            `json:"user_id"`
	ItemID    string            `json:"item_id"`
	Surface   recommend.Surface `json:"surface"`
	Status    Action            `json:"status"`
	Algorithm string            `json:"algorithm"`
	Position  int               `json:"position"`

	// ConvertedAction names what the conversion was (e.g. "added_to_shelf").
	// Set only when Status is converted and the reporter supplied one.
	ConvertedAction string `json:"converted_action,omitempty"`

	ShownAt     time.Time  `json:"shown_at"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Event is one feedback report.
type Event struct {
	UserID  string            `json:"user_id" validate:"required"`
	ItemID  string            `json:"item_id" validate:"required"`
	Surface recommend.Surface `json:"surface"`
	Action  Action            `json:"action" validate:"required"`

	// Algorithm and Position describe the serving context. They are
	// recorded on the shown event and ignored afterwards.
	Algorithm string `json:"algorithm,omitempty"`
	Position  int    `json:"position,omitempty"`

	// ConvertedAction optionally names the conversion kind on a
	// converted event.
	ConvertedAction string `json:"converted_action,omitempty"`
}

// Log persists feedback rows and computes algorithm metrics.
// Safe for concurrent use.
type Log struct {
	store  storage.Store
	logger zerolog.Logger
	clock  func() time.Time
}

// NewLog creates a feedback log over the given store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLog(store storage.Store, logger zerolog.Logger) *Log {
	return &Log{
		store:  store,
		logger: logger.With().Str("component", "feedback").Logger(),
		clock:  time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (l *Log) SetClock(clock func() time.Time) {
	l.clock = clock
}

// Key returns the storage key for a (user, item, surface) triple.
func Key(userID, itemID string, surface recommend.Surface) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, userID, itemID, surface)
}

// Record applies one feedback event to the row's state machine.
func (l *Log) Record(ctx context.Context, ev Event) error {
	if ev.UserID == "" || ev.ItemID == "" {
		return fmt.Errorf("feedback: user id and item id required")
	}
	if _, err := ParseAction(string(ev.Action)); err != nil {
		return err
	}
	if ev.Surface == "" {
		ev.Surface = recommend.SurfaceHome
	}

	now := l.clock()
	err := l.store.Update(ctx, Key(ev.UserID, ev.ItemID, ev.Surface), func(current []byte) ([]byte, error) {
		row, err := l.transition(current, ev, now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(row)
	})

	result := "ok"
	if err != nil {
		result = "rejected"
	}
	metrics.FeedbackTransitions.WithLabelValues(string(ev.Action), result).Inc()
	return err
}

// transition computes the replacement row for one event against the
// current stored bytes. It is pure: the store may re-run it on conflict.
func (l *Log) transition(current []byte, ev Event, now time.Time) (*Row, error) {
	if current == nil {
		if ev.Action != ActionShown {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotShown, ev.UserID, ev.ItemID)
		}
		return &Row{
			UserID:    ev.UserID,
			ItemID:    ev.ItemID,
			Surface:   ev.Surface,
			Status:    ActionShown,
			Algorithm: ev.Algorithm,
			Position:  ev.Position,
			ShownAt:   now,
			UpdatedAt: now,
		}, nil
	}

	var row Row
	if err := json.Unmarshal(current, &row); err != nil {
		return nil, fmt.Errorf("decode feedback row: %w", err)
	}

	// Repeating the current status is an idempotent no-op.
	if row.Status == ev.Action {
		return &row, nil
	}

	switch row.Status {
	case ActionShown:
		switch ev.Action {
		case ActionClicked:
			row.Status = ActionClicked
			row.ClickedAt = &now
		case ActionConverted:
			row.Status = ActionConverted
			row.ConvertedAt = &now
			row.ConvertedAction = ev.ConvertedAction
		case ActionDismissed:
			row.Status = ActionDismissed
			row.DismissedAt = &now
		default:
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, ev.Action)
		}
	case ActionClicked:
		if ev.Action != ActionConverted {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, ev.Action)
		}
		row.Status = ActionConverted
		row.ConvertedAt = &now
		row.ConvertedAction = ev.ConvertedAction
	case ActionConverted, ActionDismissed:
		return nil, fmt.Errorf("%w: %s", ErrTerminal, row.Status)
	default:
		return nil, fmt.Errorf("%w: stored status %q", ErrInvalidTransition, row.Status)
	}

	row.UpdatedAt = now
	return &row, nil
}

// AlgorithmMetrics aggregates outcomes for one algorithm variant over a
// rolling window.
type AlgorithmMetrics struct {
	Algorithm  string `json:"algorithm"`
	WindowDays int    `json:"window_days"`

	Shown     int `json:"shown"`
	Clicked   int `json:"clicked"`
	Converted int `json:"converted"`
	Dismissed int `json:"dismissed"`

	// Rates are fractions of Shown; all zero when nothing was shown.
	ClickThroughRate float64 `json:"click_through_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	DismissalRate    float64 `json:"dismissal_rate"`
}

// Metrics scans the feedback log and aggregates outcomes for rows of the
// given algorithm shown within the last windowDays days. An empty
// algorithm aggregates across every variant seen in the window.
func (l *Log) Metrics(ctx context.Context, algorithm string, windowDays int) (*AlgorithmMetrics, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	cutoff := l.clock().AddDate(0, 0, -windowDays)

	m := &AlgorithmMetrics{Algorithm: algorithm, WindowDays: windowDays}
	if algorithm == "" {
		m.Algorithm = "all"
	}
	err := l.store.List(ctx, keyPrefix, func(key string, value []byte) error {
		var row Row
		if err := json.Unmarshal(value, &row); err != nil {
			// A corrupt row should not block the aggregate.
			l.logger.Warn().Err(err).Str("key", key).Msg("skipping undecodable feedback row")
			return nil
		}
		if algorithm != "" && row.Algorithm != algorithm {
			return nil
		}
		if row.ShownAt.Before(cutoff) {
			return nil
		}

		// Every row was shown; later statuses imply it.
		m.Shown++
		switch row.Status {
		case ActionClicked:
			m.Clicked++
		case ActionConverted:
			m.Converted++
			if row.ClickedAt != nil {
				m.Clicked++
			}
		case ActionDismissed:
			m.Dismissed++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan feedback log: %w", err)
	}

	if m.Shown > 0 {
		m.ClickThroughRate = float64(m.Clicked) / float64(m.Shown)
		m.ConversionRate = float64(m.Converted) / float64(m.Shown)
		m.DismissalRate = float64(m.Dismissed) / float64(m.Shown)
	}
	return m, nil
}
