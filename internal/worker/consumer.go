package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/itsannaw/word-complexity-api/internal/queue"
)

// ErrDeliveriesClosed is returned by Start when the queue stops delivering
// while the worker is still supposed to run
var ErrDeliveriesClosed = errors.New("delivery channel closed unexpectedly")

// startMessageDispatcher listens to queue deliveries and dispatches them to
// the worker pool. It returns when ctx is canceled or the delivery channel
// closes, and reports ErrDeliveriesClosed for a close that ctx did not cause.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan queue.Delivery) error {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					w.logger.Info("Delivery channel closed on shutdown")
					return nil
				}
				w.logger.Error("Delivery channel closed")
				return ErrDeliveriesClosed
			}

			task := delivery.Task()

			// Send to worker pool via jobsChan
			select {
			case w.jobsChan <- delivery:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", task.JobID),
					slog.Int("attempt", task.Attempt),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				// NACK the message so it can be reprocessed
				if nackErr := delivery.Nack(true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("job_id", task.JobID),
						slog.String("error", nackErr.Error()),
					)
				}
				return nil
			}
		}
	}
}
