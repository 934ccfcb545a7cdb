package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy/backend/models"
)

// Handler runs one job. A returned error counts as a failed attempt.
type Handler func(ctx context.Context, job models.Job) error

// Worker polls the queue for due jobs and runs them. A job gets one attempt
// plus up to MaxRetries retries; after that it is marked failed for good.
type Worker struct {
	logger    *slog.Logger
	queue     Queue
	handlers  map[string]Handler
	interval  time.Duration
	batchSize int
	claimTTL  time.Duration
	backoff   time.Duration
	now       func() time.Time
}

func NewWorker(logger *slog.Logger, queue Queue, handlers map[string]Handler, interval time.Duration, batchSize int) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Worker{
		logger:    logger,
		queue:     queue,
		handlers:  handlers,
		interval:  interval,
		batchSize: batchSize,
		claimTTL:  2 * time.Minute,
		backoff:   30 * time.Second,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "job poll failed",
				"module", "notify.worker",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims one batch of due jobs and runs it. It returns the number
// of jobs claimed.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	token := uuid.NewString()
	now := w.now().UTC()
	jobs, err := w.queue.Claim(ctx, now, w.batchSize, token, now.Add(w.claimTTL))
	if err != nil {
		return 0, err
	}

	var succeeded, retried, failed int
	for _, job := range jobs {
		switch w.run(ctx, job, token) {
		case models.JobSucceeded:
			succeeded++
		case models.JobQueued:
			retried++
		default:
			failed++
		}
	}
	if len(jobs) > 0 {
		w.logger.InfoContext(ctx, "job batch processed",
			"module", "notify.worker",
			"operation", "process_once",
			"outcome", "success",
			"batch_size", len(jobs),
			"succeeded_count", succeeded,
			"retried_count", retried,
			"failed_count", failed,
		)
	}
	return len(jobs), nil
}

// run executes job and records the result. Attempts already counts this run.
func (w *Worker) run(ctx context.Context, job models.Job, token string) models.JobStatus {
	handler, ok := w.handlers[job.Task]
	if !ok {
		w.fail(ctx, job, token, fmt.Errorf("no handler for task %q", job.Task))
		return models.JobFailed
	}

	err := w.safeCall(ctx, handler, job)
	now := w.now().UTC()
	if err == nil {
		if cerr := w.queue.Complete(ctx, job.ID, token, now); cerr != nil {
			w.logger.ErrorContext(ctx, "job completion not recorded", "job_id", job.ID, "error", cerr)
		}
		return models.JobSucceeded
	}

	if job.Attempts > job.MaxRetries {
		w.fail(ctx, job, token, err)
		return models.JobFailed
	}

	w.logger.WarnContext(ctx, "job failed; retry scheduled",
		"module", "notify.worker",
		"operation", "run_job",
		"outcome", "failure",
		"job_id", job.ID,
		"task", job.Task,
		"attempt", job.Attempts,
		"error", err,
	)
	next := now.Add(w.backoff * time.Duration(job.Attempts))
	if rerr := w.queue.Retry(ctx, job.ID, token, err.Error(), next); rerr != nil {
		w.logger.ErrorContext(ctx, "job retry not recorded", "job_id", job.ID, "error", rerr)
	}
	return models.JobQueued
}

func (w *Worker) fail(ctx context.Context, job models.Job, token string, err error) {
	w.logger.ErrorContext(ctx, "job failed permanently",
		"module", "notify.worker",
		"operation", "run_job",
		"outcome", "failure",
		"job_id", job.ID,
		"task", job.Task,
		"attempt", job.Attempts,
		"error", err,
	)
	if ferr := w.queue.Fail(ctx, job.ID, token, err.Error(), w.now().UTC()); ferr != nil {
		w.logger.ErrorContext(ctx, "job failure not recorded", "job_id", job.ID, "error", ferr)
	}
}

func (w *Worker) safeCall(ctx context.Context, h Handler, job models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}
