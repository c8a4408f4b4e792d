package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/pipeline"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")

// Job is one file to run through the pipeline. Index is the caller's position for ordering.
type Job struct {
	Index       int
	Path        string
	SubmittedAt time.Time
}

// Outcome is the result of one Job.
type Outcome struct {
	Job    Job
	Result entity.ExtractionResult
	Err    error
}

// PathProcessor is the part of *pipeline.Processor the queue drives.
type PathProcessor interface {
	ProcessPath(ctx context.Context, path string, opts pipeline.Options) (entity.ExtractionResult, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// ProcessorQueue runs jobs on a fixed set of workers.
type ProcessorQueue struct {
	proc    PathProcessor
	opts    pipeline.Options
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onDone  func(Outcome)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHandler is called from worker goroutines once per finished job.
func WithResultHandler(fn func(Outcome)) Option {
	return func(q *ProcessorQueue) { q.onDone = fn }
}

func NewProcessorQueue(proc PathProcessor, opts pipeline.Options, logger *slog.Logger, options ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		opts:    opts,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range options {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.start", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					res, err := q.proc.ProcessPath(ctx, job.Path, q.opts)
					cancel()

					if err != nil {
						q.logger.Error("async.job.failed", "worker_id", workerID, "index", job.Index, "error", err)
					} else {
						q.logger.Info("async.job.ok",
							"worker_id", workerID,
							"index", job.Index,
							"method", res.Method,
							"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
						)
					}
					if q.onDone != nil {
						q.onDone(Outcome{Job: job, Result: res, Err: err})
					}
				}

				q.logger.Debug("async.worker.stop", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
		q.logger.Debug("async.queue.full", "index", job.Index)
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
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
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Debug("async.shutdown.drained")
	}
}

// ProcessAll runs every path through a fresh queue and returns outcomes in input order.
func ProcessAll(ctx context.Context, proc PathProcessor, paths []string, opts pipeline.Options, logger *slog.Logger, options ...Option) []Outcome {
	out := make([]Outcome, len(paths))
	var mu sync.Mutex
	options = append(options, WithResultHandler(func(o Outcome) {
		mu.Lock()
		out[o.Job.Index] = o
		mu.Unlock()
	}))

	q := NewProcessorQueue(proc, opts, logger, options...)
	for i, p := range paths {
		if err := q.Enqueue(ctx, Job{Index: i, Path: p}); err != nil {
			mu.Lock()
			out[i] = Outcome{Job: Job{Index: i, Path: p}, Err: err}
			mu.Unlock()
		}
	}
	// Drain fully; ctx only bounds enqueueing.
	q.Shutdown(context.Background())
	return out
}
