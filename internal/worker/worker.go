// Package worker executes complexity scoring jobs taken off the queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itsannaw/word-complexity-api/internal/dictionary"
	"github.com/itsannaw/word-complexity-api/internal/queue"
	"github.com/itsannaw/word-complexity-api/internal/storage"
)

// Defaults applied by NewWorker for zero config values
const (
	DefaultConcurrency       = 4
	DefaultLookupConcurrency = 4
	DefaultJobTimeout        = 2 * time.Minute
	DefaultRetryDelay        = 5 * time.Minute
)

// Lookuper fetches the meanings of a single word
type Lookuper interface {
	Lookup(ctx context.Context, word string) ([]dictionary.Meaning, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             storage.Store
	Queue             queue.Queue
	Dictionary        Lookuper
	WorkerID          string
	Concurrency       int
	LookupConcurrency int
	JobTimeout        time.Duration
	RetryDelay        time.Duration
	// MaxAttempts caps attempts per job on transient failures; 0 is unbounded
	MaxAttempts int
}

// Worker represents the background job worker
type Worker struct {
	logger      *slog.Logger
	queue       queue.Queue
	processor   *Processor
	workerID    string
	concurrency int
	jobsChan    chan queue.Delivery
	wg          sync.WaitGroup
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()[:8]
	}

	scorer := NewScorer(cfg.Dictionary, cfg.LookupConcurrency, cfg.Logger)

	return &Worker{
		logger: cfg.Logger,
		queue:  cfg.Queue,
		processor: NewProcessor(&ProcessorConfig{
			Logger:      cfg.Logger,
			Store:       cfg.Store,
			Publisher:   cfg.Queue,
			Scorer:      scorer,
			JobTimeout:  cfg.JobTimeout,
			RetryDelay:  cfg.RetryDelay,
			MaxAttempts: cfg.MaxAttempts,
		}),
		workerID:    cfg.WorkerID,
		concurrency: cfg.Concurrency,
		jobsChan:    make(chan queue.Delivery),
		stopChan:    make(chan struct{}),
	}
}

// Start consumes tasks and processes them until ctx is canceled or Stop is
// called. In-flight jobs are allowed to finish before Start returns. If the
// queue closes its delivery channel on its own, Start drains the pool and
// returns ErrDeliveriesClosed.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deliveries, err := w.queue.Consume(consumeCtx, w.workerID)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.spawnWorkerPool(ctx)

	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-consumeCtx.Done():
		}
	}()

	dispatchErr := w.startMessageDispatcher(consumeCtx, deliveries)

	close(w.jobsChan)
	w.wg.Wait()

	if dispatchErr != nil {
		return fmt.Errorf("worker %s: %w", w.workerID, dispatchErr)
	}

	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
	return nil
}

// Stop signals Start to stop consuming and wait for in-flight jobs
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
	})
}
