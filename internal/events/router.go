// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig holds bus consumer settings.
type RouterConfig struct {
	// CloseTimeout is how long to wait for in-flight handlers on close.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// BufferSize is the gochannel output buffer per subscriber.
	BufferSize int64 `koanf:"buffer_size"`
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout: 30 * time.Second,
		BufferSize:   1024,
	}
}

// Router runs the bus consumers. It implements suture.Service via Serve.
type Router struct {
	router *message.Router
	logger zerolog.Logger
}

// NewRouter creates the consumer router and registers the refiner on the
// interactions topic.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(cfg RouterConfig, bus *Bus, refiner *Refiner, logger zerolog.Logger) (*Router, error) {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultRouterConfig().CloseTimeout
	}

	wmLogger := NewWatermillLogger(logger)
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	wmRouter.AddConsumerHandler(
		"preference_refiner",
		TopicInteractions,
		bus.Subscriber(),
		refiner.Handle,
	)

	return &Router{
		router: wmRouter,
		logger: logger.With().Str("component", "event-router").Logger(),
	}, nil
}

// Serve runs the router until the context is canceled.
func (r *Router) Serve(ctx context.Context) error {
	r.logger.Info().Msg("event router starting")
	return r.router.Run(ctx)
}

// Running returns a channel that closes once handlers are consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

func (r *Router) String() string {
	return "event-router"
}
