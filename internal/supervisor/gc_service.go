// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package supervisor

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// ValueLogGC matches badger.DB's value-log garbage collection method.
type ValueLogGC interface {
	RunValueLogGC(discardRatio float64) error
}

// GCService periodically reclaims badger value-log space. Badger never
// runs value-log GC on its own, so a store without this loop grows
// without bound.
type GCService struct {
	db       ValueLogGC
	interval time.Duration
	ratio    float64
	logger   zerolog.Logger
}

// NewGCService creates the GC loop service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewGCService(db ValueLogGC, interval time.Duration, ratio float64, logger zerolog.Logger) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	return &GCService{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger.With().Str("component", "badger-gc").Logger(),
	}
}

// Serve implements suture.Service.
func (g *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.collect()
		}
	}
}

// collect runs GC rounds until badger reports nothing left to rewrite.
func (g *GCService) collect() {
	start := time.Now()
	rounds := 0
	for {
		err := g.db.RunValueLogGC(g.ratio)
		if err == nil {
			rounds++
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			g.logger.Warn().Err(err).Msg("value log GC failed")
		}
		break
	}
	if rounds > 0 {
		g.logger.Debug().
			Int("rounds", rounds).
			Dur("elapsed", time.Since(start)).
			Msg("value log GC completed")
	}
}

// String implements fmt.Stringer for suture's event log.
func (g *GCService) String() string {
	return "badger-gc"
}
