// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type badgerDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore(BadgerConfig{Dir: ""}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestBadgerRoundTrip(t *testing.T) {
	s := newTestBadger(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "doc:1", &badgerDoc{Name: "a", Count: 1}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	var got badgerDoc
	if err := s.Find(ctx, "doc:1", &got); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Name != "a" || got.Count != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestBadgerFindMissing(t *testing.T) {
	s := newTestBadger(t)

	var got badgerDoc
	err := s.Find(context.Background(), "doc:missing", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Find returned %v, want ErrNotFound", err)
	}
}

func TestBadgerUpdate(t *testing.T) {
	s := newTestBadger(t)
	ctx := context.Background()

	err := s.Update(ctx, "doc:1", func(current []byte) ([]byte, error) {
		if current != nil {
			t.Error("expected nil current on first update")
		}
		return json.Marshal(&badgerDoc{Name: "a", Count: 1})
	})
	if err != nil {
		t.Fatalf("first Update: %v", err)
	}

	err = s.Update(ctx, "doc:1", func(current []byte) ([]byte, error) {
		var doc badgerDoc
		if err := json.Unmarshal(current, &doc); err != nil {
			return nil, err
		}
		doc.Count++
		return json.Marshal(&doc)
	})
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}

	var got badgerDoc
	if err := s.Find(ctx, "doc:1", &got); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}
}

func TestBadgerUpdateFnErrorAborts(t *testing.T) {
	s := newTestBadger(t)
	ctx := context.Background()

	sentinel := errors.New("rejected")
	err := s.Update(ctx, "doc:1", func(current []byte) ([]byte, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Update returned %v, want sentinel", err)
	}

	var got badgerDoc
	if err := s.Find(ctx, "doc:1", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("key was written despite fn error: %v", err)
	}
}

func TestBadgerDelete(t *testing.T) {
	s := newTestBadger(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, "doc:1", &badgerDoc{Name: "a"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Delete(ctx, "doc:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var got badgerDoc
	if err := s.Find(ctx, "doc:1", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find after delete returned %v, want ErrNotFound", err)
	}

	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, "doc:missing"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestBadgerListPrefix(t *testing.T) {
	s := newTestBadger(t)
	ctx := context.Background()

	docs := map[string]badgerDoc{
		"pref:u1": {Name: "u1"},
		"pref:u2": {Name: "u2"},
		"event:x": {Name: "x"},
	}
	for key, doc := range docs {
		if err := s.Upsert(ctx, key, &doc); err != nil {
			t.Fatalf("Upsert %s: %v", key, err)
		}
	}

	seen := map[string]bool{}
	err := s.List(ctx, "pref:", func(key string, value []byte) error {
		seen[key] = true
		return nil
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(seen) != 2 || !seen["pref:u1"] || !seen["pref:u2"] {
		t.Errorf("seen = %v", seen)
	}
}

func TestBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBadgerStore(BadgerConfig{Dir: dir}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}

	ctx := context.Background()
	if err := s.Upsert(ctx, "doc:1", &badgerDoc{Name: "persisted"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = NewBadgerStore(BadgerConfig{Dir: dir}, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	var got badgerDoc
	if err := s.Find(ctx, "doc:1", &got); err != nil {
		t.Fatalf("Find after reopen: %v", err)
	}
	if got.Name != "persisted" {
		t.Errorf("Name = %q", got.Name)
	}
}

func TestBadgerPingClosed(t *testing.T) {
	s, err := NewBadgerStore(BadgerConfig{Dir: ""}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping closed store should fail")
	}
}
