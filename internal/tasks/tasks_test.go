// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDispatchAndRun(t *testing.T) {
	d := NewDispatcher(Config{QueueSize: 10, Workers: 2}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = d.Serve(ctx)
		close(done)
	}()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := d.Dispatch(Task{
			Name: "test",
			Run: func(context.Context) error {
				defer wg.Done()
				ran.Add(1)
				return nil
			},
		})
		if !ok {
			wg.Done()
			t.Errorf("Dispatch %d returned false", i)
		}
	}

	wg.Wait()
	if got := ran.Load(); got != 5 {
		t.Errorf("ran = %d, want 5", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestDispatchDropsWhenFull(t *testing.T) {
	// No running workers, so the queue never drains.
	d := NewDispatcher(Config{QueueSize: 2, Workers: 1}, zerolog.Nop())

	noop := Task{Name: "noop", Run: func(context.Context) error { return nil }}
	if !d.Dispatch(noop) || !d.Dispatch(noop) {
		t.Fatal("first two dispatches should fit")
	}
	if d.Dispatch(noop) {
		t.Error("third dispatch should be dropped")
	}
}

func TestFailingTaskDoesNotStopWorkers(t *testing.T) {
	d := NewDispatcher(Config{QueueSize: 10, Workers: 1}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Serve(ctx) }()

	ran := make(chan struct{})
	d.Dispatch(Task{Name: "fails", Run: func(context.Context) error { return errors.New("boom") }})
	d.Dispatch(Task{Name: "after", Run: func(context.Context) error {
		close(ran)
		return nil
	}})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not continue after a failed task")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultBreakerConfig("test")
	cfg.FailureThreshold = 3
	cb := NewBreaker(cfg, zerolog.Nop())

	boom := errors.New("store down")
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (interface{}, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want boom", i, err)
		}
	}

	// Breaker is now open; calls fail fast without running the function.
	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected open-circuit error")
	}
	if called {
		t.Error("function ran while breaker open")
	}
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	cb := NewBreaker(DefaultBreakerConfig("test"), zerolog.Nop())

	got, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %v, want ok", got)
	}
}
