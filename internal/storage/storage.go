// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package storage defines the document-store collaborator the
// recommendation core is built on. The core only needs four primitives:
// find-by-key, upsert-by-key, a serialized read-modify-write on a single
// key, and a prefix scan. Correctness of the feedback state machine and
// the atomic cache replace depends on Update being serialized per key.
//
// Two implementations are provided: BadgerStore for deployments and
// MemStore for tests and development.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Find when no document exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// Store is the persistence collaborator interface.
type Store interface {
	// Find unmarshals the document at key into out.
	// Returns ErrNotFound when the key does not exist.
	Find(ctx context.Context, key string, out interface{}) error

	// Upsert marshals doc and replaces the document at key atomically.
	Upsert(ctx context.Context, key string, doc interface{}) error

	// Update performs a serialized read-modify-write on a single key.
	// fn receives the current document bytes (nil when the key is absent)
	// and returns the replacement bytes. Returning an error aborts the
	// update without writing. Concurrent Updates on the same key are
	// serialized by the implementation.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error

	// Delete removes the document at key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// List calls fn for every document whose key has the given prefix.
	// Iteration stops at the first error returned by fn.
	List(ctx context.Context, prefix string, fn func(key string, value []byte) error) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
