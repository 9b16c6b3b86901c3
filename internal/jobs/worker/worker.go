// Package worker runs fire-and-forget background jobs on a fixed set of goroutines fed
// by a bounded queue. Jobs are never retried; a panicking job is logged and dropped.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

var (
	ErrQueueFull   = errors.New("worker: queue is full")
	ErrPoolStopped = errors.New("worker: pool is stopped")
)

type Job struct {
	ID   uuid.UUID
	Type string
	// Key identifies the job's subject in logs, e.g. a participant. It is logged as
	// job_key, which the logger digests like any participant ID.
	Key string
	Run func(ctx context.Context) error
}

type Config struct {
	Concurrency int
	QueueSize   int
}

type Pool struct {
	log         *logger.Logger
	concurrency int
	queue       chan Job

	mu      sync.RWMutex
	started bool
	stopped bool
	group   *errgroup.Group
}

func NewPool(baseLog *logger.Logger, cfg Config) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	return &Pool{
		log:         baseLog.With("component", "JobWorker"),
		concurrency: cfg.Concurrency,
		queue:       make(chan Job, cfg.QueueSize),
	}
}

// Start launches the worker loops. Jobs run detached from ctx's cancellation so a
// shutdown lets in-flight work reach its terminal state.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.log.Info("Starting job worker pool", "concurrency", p.concurrency, "queue_size", cap(p.queue))

	jobCtx := context.WithoutCancel(ctx)
	p.group = &errgroup.Group{}
	for i := 0; i < p.concurrency; i++ {
		workerID := i + 1
		p.group.Go(func() error {
			p.runLoop(jobCtx, workerID)
			return nil
		})
	}
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("worker: job %q has no run func", job.Type)
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs and waits for queued and running jobs, or for ctx.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	g := p.group
	p.mu.Unlock()

	if g == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("Job worker pool drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker: stop: %w", ctx.Err())
	}
}

func (p *Pool) runLoop(ctx context.Context, workerID int) {
	for job := range p.queue {
		p.runJob(ctx, workerID, job)
	}
	p.log.Debug("Worker loop stopped", "worker_id", workerID)
}

func (p *Pool) runJob(ctx context.Context, workerID int, job Job) {
	start := time.Now()
	fields := []interface{}{
		"worker_id", workerID,
		"job_id", job.ID,
		"job_type", job.Type,
	}
	if job.Key != "" {
		fields = append(fields, "job_key", job.Key)
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Job handler panic", append(fields, "error", errFromRecover(r).Error())...)
		}
	}()

	if err := job.Run(ctx); err != nil {
		p.log.Warn("Job failed", append(fields, "duration", time.Since(start).String(), "error", err.Error())...)
		return
	}
	p.log.Debug("Job done", append(fields, "duration", time.Since(start).String())...)
}

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
