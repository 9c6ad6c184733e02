// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package events ingests user interaction events and refines preference
// profiles from them. Ingestion persists every accepted event and
// publishes it on the in-process bus; the refiner consumes the bus and
// derives preference bumps. Publishing is best-effort: a bus failure
// never fails an ingest that was persisted.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type is an interaction event type from the closed platform set.
type Type string

const (
	TypeFollow              Type = "follow"
	TypeUnfollow            Type = "unfollow"
	TypeOnboardingCompleted Type = "onboarding_completed"
	TypeContentView         Type = "content_view"
	TypeDiaryEntry          Type = "diary_entry"
	TypeNewsletterOpen      Type = "newsletter_open"
)

// ErrUnknownType is returned for an event type outside the closed set.
var ErrUnknownType = errors.New("events: unknown event type")

// ErrRateLimited is returned when ingestion exceeds the configured rate.
var ErrRateLimited = errors.New("events: rate limited")

// ParseType validates a wire-level event type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeFollow, TypeUnfollow, TypeOnboardingCompleted,
		TypeContentView, TypeDiaryEntry, TypeNewsletterOpen:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Event is one user interaction.
type Event struct {
	ID     string `json:"id,omitempty"`
	UserID string `json:"user_id" validate:"required"`
	Type   Type   `json:"type" validate:"required"`

	// ItemID identifies the content for content-scoped events.
	ItemID string `json:"item_id,omitempty"`

	// Genres carries the viewed content's genre tags for events that
	// refine genre weights.
	Genres []string `json:"genres,omitempty"`

	// Author is the followed author for follow/unfollow events.
	Author string `json:"author,omitempty"`

	// TargetUserID is the other party for social events.
	TargetUserID string `json:"target_user_id,omitempty"`

	// SessionID correlates events reported from one client session.
	SessionID string `json:"session_id,omitempty"`

	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at,omitempty"`
}

// Validate checks the event's structural requirements per type.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("events: user id required")
	}
	t, err := ParseType(string(e.Type))
	if err != nil {
		return err
	}

	switch t {
	case TypeContentView, TypeDiaryEntry:
		if strings.TrimSpace(e.ItemID) == "" {
			return fmt.Errorf("events: item id required for %s", t)
		}
	case TypeFollow, TypeUnfollow:
		if strings.TrimSpace(e.Author) == "" && strings.TrimSpace(e.TargetUserID) == "" {
			return fmt.Errorf("events: follow target required for %s", t)
		}
	}
	return nil
}

// BatchError locates one rejected element of a batch.
type BatchError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BatchResult reports a batch ingest. A batch with failures is still a
// partial success: accepted elements are persisted and published.
type BatchResult struct {
	Accepted int          `json:"accepted"`
	Failed   int          `json:"failed"`
	Errors   []BatchError `json:"errors,omitempty"`
}

// Publisher is the bus side the tracker publishes to.
type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
}
