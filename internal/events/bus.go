// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// TopicInteractions is the bus topic accepted events are published on.
const TopicInteractions = "events.interactions"

// Bus is the in-process event bus between ingestion and refinement,
// backed by watermill's gochannel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates the in-process bus.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBus(bufferSize int64, logger zerolog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            bufferSize,
				Persistent:                     false,
				BlockPublishUntilSubscriberAck: false,
			},
			NewWatermillLogger(logger),
		),
	}
}

// Publish marshals the event and publishes it on the interactions topic.
func (b *Bus) Publish(_ context.Context, ev *Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	if msg.UUID == "" {
		msg.UUID = watermill.NewUUID()
	}
	msg.Metadata.Set("event_type", string(ev.Type))
	msg.Metadata.Set("user_id", ev.UserID)

	if err := b.pubsub.Publish(TopicInteractions, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicInteractions, err)
	}
	return nil
}

// Subscriber returns the subscriber side for the router.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// Close shuts the bus down; in-flight messages are dropped.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// WatermillLogger adapts watermill's logging interface to zerolog.
type WatermillLogger struct {
	logger zerolog.Logger
}

// NewWatermillLogger creates the adapter.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWatermillLogger(logger zerolog.Logger) *WatermillLogger {
	return &WatermillLogger{logger: logger.With().Str("component", "bus").Logger()}
}

func (l *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), msg, fields)
}

func (l *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), msg, fields)
}

func (l *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), msg, fields)
}

func (l *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), msg, fields)
}

func (l *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &WatermillLogger{logger: ctx.Logger()}
}

func (l *WatermillLogger) event(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
