// Package worker runs the broadcast workers that recompute leaderboards and
// push them to subscribed sessions.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/pace/internal/adapters/mq/queue"
	"github.com/okian/pace/internal/domain/rank"
	"github.com/okian/pace/pkg/logger"
	"github.com/okian/pace/pkg/metrics"
	"github.com/okian/pace/pkg/protocol"
)

// Default worker configuration constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Viewer supplies the course state a broadcast is computed from.
type Viewer interface {
	CourseView(ctx context.Context, courseID string) []rank.UserCourse
}

// Publisher delivers a computed leaderboard to interested sessions.
type Publisher interface {
	Publish(ctx context.Context, courseID string, entries []protocol.LeaderboardEntry)
}

// Pending clears the coalescing mark before a recompute begins.
type Pending interface {
	ClearPending(ctx context.Context, courseID string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes broadcast jobs until stopped.
type Worker struct {
	queue     Queue
	viewer    Viewer
	engine    rank.Engine
	publisher Publisher
	pending   Pending
	name      string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a broadcast worker with configuration options.
func NewWorker(q Queue, viewer Viewer, engine rank.Engine, publisher Publisher, pending Pending, opts ...Option) *Worker {
	w := &Worker{
		queue:     q,
		viewer:    viewer,
		engine:    engine,
		publisher: publisher,
		pending:   pending,
		name:      "broadcast-worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop until ctx is canceled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker, waiting for the in-flight job.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "worker shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process recomputes and publishes one course's leaderboard. The pending
// mark is cleared before the view is read: a sync landing after the clear
// queues a fresh job rather than being lost.
func (w *Worker) process(ctx context.Context, job queue.Job) {
	start := time.Now()
	defer func() {
		latency := float64(time.Since(start).Milliseconds())
		metrics.RecordWorkerProcessingLatency(latency)
		metrics.RecordBroadcastLatency(latency)
	}()

	w.pending.ClearPending(ctx, job.CourseID)

	states := w.viewer.CourseView(ctx, job.CourseID)
	entries := w.engine.Compute(ctx, job.CourseID, states)
	w.publisher.Publish(ctx, job.CourseID, entries)

	w.logger.Debug(ctx, "broadcast delivered",
		logger.String("courseId", job.CourseID),
		logger.Int("entries", len(entries)),
	)
}

// Pool manages the broadcast workers.
type Pool struct {
	workers []*Worker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a pool of broadcast workers.
func NewPool(workerCount int, q Queue, viewer Viewer, engine rank.Engine, publisher Publisher, pending Pending, log logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	if log == nil {
		log = logger.Nop()
	}

	pool := &Pool{
		workers: make([]*Worker, workerCount),
		queue:   q,
		logger:  log.Named("broadcast-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewWorker(q, viewer, engine, publisher, pending,
			WithName("broadcast-worker-"+strconv.Itoa(i)),
			WithLogger(log),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop stops all workers, bounded by a per-worker timeout.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.stopOnce.Do(func() { close(w.shutdown) })
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and drains the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for _, w := range p.workers {
		w.stopOnce.Do(func() { close(w.shutdown) })
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
