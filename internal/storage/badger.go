// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// BadgerStore implements Store on BadgerDB. Badger transactions give the
// serialized single-key Update the feedback state machine requires, and
// writes are atomic at the key level which satisfies the cache's
// whole-entry replace invariant.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

// BadgerConfig holds BadgerDB options.
type BadgerConfig struct {
	// Dir is the data directory. Empty means in-memory (for development).
	Dir string

	// GCInterval is how often the value log garbage collector runs.
	GCInterval time.Duration

	// GCDiscardRatio is the ratio passed to RunValueLogGC.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns production defaults.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		Dir:            "/data/pagemark",
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// NewBadgerStore opens a BadgerDB-backed store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBadgerStore(cfg BadgerConfig, logger zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	// Badger's default logger writes unstructured lines; route through zerolog instead.
	opts = opts.WithLogger(badgerLogger{logger: logger.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// DB exposes the underlying handle for maintenance loops (value log GC).
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// Find unmarshals the document at key into out.
func (s *BadgerStore) Find(ctx context.Context, key string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// Upsert marshals doc and replaces the document at key.
func (s *BadgerStore) Upsert(ctx context.Context, key string, doc interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Update performs a serialized read-modify-write on a single key. Badger
// retries the transaction on conflict, so fn may run more than once and
// must be side-effect free.
func (s *BadgerStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		var current []byte
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			current = nil
		case err != nil:
			return fmt.Errorf("get %s: %w", key, err)
		default:
			current, err = item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		return txn.Set([]byte(key), next)
	})
}

// Delete removes the document at key.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// List iterates all documents whose key has the given prefix.
func (s *BadgerStore) List(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Ping verifies the store is usable.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("storage: badger closed")
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts badger's logger interface to zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}
