package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/itsannaw/word-complexity-api/internal/domain"
	"github.com/itsannaw/word-complexity-api/internal/queue"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine. It runs
// until jobsChan is closed so that a dispatched job is never abandoned.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	// jobs already taken off the queue run to completion on shutdown
	jobCtx := context.WithoutCancel(ctx)

	for delivery := range w.jobsChan {
		task := delivery.Task()

		w.logger.Info("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", task.JobID),
			slog.Int("attempt", task.Attempt),
		)

		err := w.processor.Process(jobCtx, task)
		w.settle(workerName, delivery, err)
	}

	w.logger.Debug("Worker goroutine stopping - jobsChan closed",
		slog.String("worker_name", workerName),
	)
}

// settle acks or nacks a delivery based on the processing result
func (w *Worker) settle(workerName string, delivery queue.Delivery, err error) {
	task := delivery.Task()

	var scheduled *RetryScheduledError
	switch {
	case err == nil:
		if ackErr := delivery.Ack(); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", task.JobID),
				slog.String("error", ackErr.Error()),
			)
			return
		}
		w.logger.Debug("Message ACKed",
			slog.String("worker_name", workerName),
			slog.String("job_id", task.JobID),
		)

	case errors.As(err, &scheduled):
		// the next attempt is already queued; this delivery is done
		w.logger.Warn("Job attempt failed, retry scheduled",
			slog.String("worker_name", workerName),
			slog.String("job_id", task.JobID),
			slog.Int("attempt", task.Attempt),
			slog.Duration("retry_in", scheduled.Delay),
			slog.String("error", scheduled.Err.Error()),
		)
		if ackErr := delivery.Ack(); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", task.JobID),
				slog.String("error", ackErr.Error()),
			)
		}

	default:
		requeue := shouldRequeueJob(err)
		w.logger.Error("Job processing failed",
			slog.String("worker_name", workerName),
			slog.String("job_id", task.JobID),
			slog.Bool("requeue", requeue),
			slog.String("error", err.Error()),
		)
		if nackErr := delivery.Nack(requeue); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", task.JobID),
				slog.String("error", nackErr.Error()),
			)
		}
	}
}

// shouldRequeueJob determines if a delivery should be requeued based on the
// error type. Anything not explicitly retryable is dead-lettered.
func shouldRequeueJob(err error) bool {
	if errors.Is(err, domain.ErrMaxAttemptsExceeded) || errors.Is(err, domain.ErrPermanentFailure) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
