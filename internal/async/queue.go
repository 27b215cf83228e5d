// Package async runs pipeline jobs on a bounded worker pool fed by
// trigger sources (directory watcher, batch CLI).
package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// Job is one queued trigger plus submission metadata.
type Job struct {
	Trigger     entity.JobTrigger
	SubmittedAt time.Time
	TraceID     string
}

func NewJob(trigger entity.JobTrigger) Job {
	return Job{
		Trigger:     trigger,
		SubmittedAt: time.Now().UTC(),
		TraceID:     uuid.NewString(),
	}
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs one trigger to completion. Satisfied by
// pipeline.Orchestrator.
type Processor interface {
	Process(ctx context.Context, trigger entity.JobTrigger) (*entity.JobRecord, error)
}

// JobQueue fans queued triggers out to a fixed worker pool. Each job runs
// under its own timeout; a slow provider call cannot wedge a worker forever.
type JobQueue struct {
	orch    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*JobQueue)

func WithWorkers(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *JobQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithJobTimeout(d time.Duration) Option {
	return func(q *JobQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewJobQueue(orch Processor, logger *slog.Logger, opts ...Option) *JobQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &JobQueue{
		orch:    orch,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *JobQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					ctx = common.WithRequestID(ctx, job.TraceID)
					_, err := q.orch.Process(ctx, job.Trigger)
					cancel()

					if err != nil {
						q.logger.Error("job failed", "worker_id", workerID, "job_id", job.Trigger.JobID, "error", err)
					} else {
						q.logger.Info("job processed", "worker_id", workerID, "job_id", job.Trigger.JobID)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *JobQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.Trigger.JobID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued job", "job_id", job.Trigger.JobID)
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", job.Trigger.JobID)
		q.ch <- job
	}
	return nil
}

func (q *JobQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
