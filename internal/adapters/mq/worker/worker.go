// Package worker defines worker contracts for asynchronous rating refreshes.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/Sczr0/Phi-Backend/internal/adapters/mq/queue"
	"github.com/Sczr0/Phi-Backend/internal/domain/model"
	"github.com/Sczr0/Phi-Backend/internal/domain/rating"
	"github.com/Sczr0/Phi-Backend/pkg/logger"
	"github.com/Sczr0/Phi-Backend/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Task abstracts what workers read off the queue.
type Task = model.RefreshTask

// Updater replaces a player's overall rating on the leaderboard.
type Updater interface {
	Set(ctx context.Context, playerID string, overall float64, charts int) error
}

// Warmer precomputes push accuracy rows for a player's charts. Warming is
// best-effort; a failed warm does not fail the refresh.
type Warmer interface {
	Warm(ctx context.Context, playerID string, scores []rating.ChartScore) error
}

// Tracker releases the player's pending-refresh mark once a task settles.
type Tracker interface {
	Clear(ctx context.Context, playerID string)
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker processes refresh tasks until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker. It processes any in-flight
	// task before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing refresh tasks.
type InMemoryWorker struct {
	queue   Queue
	updater Updater
	warmer  Warmer
	tracker Tracker
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		updater:  updater,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	taskChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-taskChan:
			if !ok {
				return
			}
			if err := w.processTask(ctx, task); err != nil {
				w.logger.Error(ctx, "error processing refresh task", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTask handles a single refresh: replace the leaderboard row, then
// warm the prediction cache. The pending mark is cleared whatever the
// outcome so the player stays refreshable.
func (w *InMemoryWorker) processTask(ctx context.Context, task queue.Task) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()
	if w.tracker != nil {
		defer w.tracker.Clear(ctx, task.PlayerID)
	}

	overall := rating.Overall(task.Scores)
	if err := w.updater.Set(ctx, task.PlayerID, overall, len(task.Scores)); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "leaderboard_error")
		w.logger.Error(ctx, "leaderboard update failed",
			logger.String("taskID", task.TaskID),
			logger.String("playerID", task.PlayerID),
			logger.Error(err),
		)
		return fmt.Errorf("leaderboard update for task %s: %w", task.TaskID, err)
	}

	if w.warmer != nil {
		if err := w.warmer.Warm(ctx, task.PlayerID, task.Scores); err != nil {
			metrics.RecordErrorByComponent("worker", "prediction_warm_error")
			w.logger.Warn(ctx, "prediction warm failed",
				logger.String("taskID", task.TaskID),
				logger.String("playerID", task.PlayerID),
				logger.Error(err),
			)
		}
	}

	metrics.RecordRefreshProcessed()
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, updater, workerOpts...)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Shutdown gracefully shuts down the entire worker pool: the queue stops
// accepting tasks, then every worker drains.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
