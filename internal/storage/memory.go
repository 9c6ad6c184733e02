// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// MemStore is an in-memory Store for tests and local development.
// A single mutex serializes Update calls, matching the per-key
// serialization guarantee of the Badger implementation.
type MemStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	closed bool

	// FailWrites forces Upsert/Update to fail. Tests use it to exercise
	// the logged-and-swallowed error paths.
	FailWrites bool

	// FailReads forces Find/List to fail.
	FailReads bool
}

var errStoreUnavailable = errors.New("storage: unavailable")

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string][]byte)}
}

// Find unmarshals the document at key into out.
func (s *MemStore) Find(ctx context.Context, key string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailReads {
		return errStoreUnavailable
	}

	data, ok := s.docs[key]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, out)
}

// Upsert marshals doc and replaces the document at key.
func (s *MemStore) Upsert(ctx context.Context, key string, doc interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errStoreUnavailable
	}

	s.docs[key] = data
	return nil
}

// Update performs a serialized read-modify-write on a single key.
func (s *MemStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errStoreUnavailable
	}

	var current []byte
	if data, ok := s.docs[key]; ok {
		current = make([]byte, len(data))
		copy(current, data)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	s.docs[key] = next
	return nil
}

// Delete removes the document at key.
func (s *MemStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errStoreUnavailable
	}

	delete(s.docs, key)
	return nil
}

// List iterates documents by key prefix in lexicographic key order.
func (s *MemStore) List(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	s.mu.RLock()
	if s.FailReads {
		s.mu.RUnlock()
		return errStoreUnavailable
	}

	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = s.docs[k]
	}
	s.mu.RUnlock()

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether the store is open.
func (s *MemStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.FailReads {
		return errStoreUnavailable
	}
	return nil
}

// Close marks the store closed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored documents.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
