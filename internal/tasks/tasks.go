// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package tasks runs best-effort background work, primarily asynchronous
// recommendation cache population after a fresh scoring pass. The queue
// is bounded: when it is full new tasks are dropped with a log line
// rather than blocking the request path.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pagemark/pagemark/internal/metrics"
)

// Task is one unit of background work.
type Task struct {
	// Name labels the task in logs and metrics.
	Name string

	// Run does the work. The context is the dispatcher's serve context,
	// not the originating request's, so a finished request does not
	// cancel its follow-up work.
	Run func(ctx context.Context) error
}

// Config holds dispatcher sizing.
type Config struct {
	// QueueSize bounds the pending task queue.
	QueueSize int `koanf:"queue_size"`

	// Workers is the number of concurrent task runners.
	Workers int `koanf:"workers"`
}

// DefaultConfig returns production dispatcher sizing.
func DefaultConfig() Config {
	return Config{
		QueueSize: 1024,
		Workers:   4,
	}
}

// Dispatcher runs queued tasks on a fixed worker pool. It implements
// suture.Service via Serve. Safe for concurrent use.
type Dispatcher struct {
	queue  chan Task
	cfg    Config
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher; it does no work until Serve runs.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewDispatcher(cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Dispatcher{
		queue:  make(chan Task, cfg.QueueSize),
		cfg:    cfg,
		logger: logger.With().Str("component", "tasks").Logger(),
	}
}

// Dispatch enqueues a task. Returns false when the queue is full; the
// task is dropped, not blocked on.
func (d *Dispatcher) Dispatch(task Task) bool {
	select {
	case d.queue <- task:
		return true
	default:
		metrics.TasksDispatched.WithLabelValues(task.Name, "dropped").Inc()
		d.logger.Warn().Str("task", task.Name).Msg("task queue full, dropping")
		return false
	}
}

// Serve runs the worker pool until the context is canceled, then drains
// nothing further and returns.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.logger.Info().
		Int("workers", d.cfg.Workers).
		Int("queue_size", d.cfg.QueueSize).
		Msg("task dispatcher starting")

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-d.queue:
			d.run(ctx, task)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	start := time.Now()
	err := task.Run(ctx)

	result := "ok"
	if err != nil {
		result = "error"
		d.logger.Warn().Err(err).
			Str("task", task.Name).
			Dur("elapsed", time.Since(start)).
			Msg("task failed")
	}
	metrics.TasksDispatched.WithLabelValues(task.Name, result).Inc()
}

func (d *Dispatcher) String() string {
	return "task-dispatcher"
}

// BreakerConfig holds circuit breaker thresholds for best-effort writes.
type BreakerConfig struct {
	Name             string        `koanf:"name"`
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// DefaultBreakerConfig returns thresholds for the cache write breaker.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// NewBreaker creates a circuit breaker. Wrapping best-effort storage
// writes in one stops a degraded store from tying up the worker pool.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreaker(cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[interface{}] {
	log := logger.With().Str("component", "breaker").Str("breaker", cfg.Name).Logger()

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}
