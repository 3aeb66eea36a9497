package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of background work. Payload is opaque to the queue; the
// handler owns its interpretation.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A non-nil error triggers a retry until the
// attempt limit is reached.
type Handler func(context.Context, Job) error

// QueueConfig tunes the worker pool. Zero values fall back to safe defaults.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is an in-process dispatcher: a buffered channel consumed by a fixed
// pool of goroutines. Enqueue before Start is an error so callers cannot
// silently fill a channel nobody drains.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue around the handler. Call Start before Enqueue.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the worker pool. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.drain()
	}
	q.started = true
	q.cfg.Logger.Info("queue started",
		zap.String("queue", q.name),
		zap.Int("workers", q.cfg.Workers),
		zap.Int("buffer", q.cfg.BufferSize))
}

// Stop cancels the workers and blocks until they exit. Jobs still buffered
// are abandoned; callers that need durability track state outside the queue.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue submits a job. It blocks while the buffer is full and fails once
// the queue is stopped or was never started.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx, started := q.ctx, q.started
	q.mu.Unlock()
	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}

	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

// Depth reports how many jobs are waiting in the buffer.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err)
			}
		}
	}
}

// retry re-submits a failed job after a linear backoff, giving up past the
// attempt limit.
func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.cfg.Logger.Error("job dropped after retries",
			zap.String("queue", q.name),
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Error(cause))
		return
	}
	q.cfg.Logger.Warn("job failed, scheduling retry",
		zap.String("queue", q.name),
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Error(cause))

	delay := q.cfg.RetryDelay * time.Duration(job.Attempt)
	go func(j Job) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.cfg.Logger.Error("failed to requeue job",
					zap.String("queue", q.name),
					zap.String("job_id", j.ID),
					zap.Error(err))
			}
		}
	}(job)
}
