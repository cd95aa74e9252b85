package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itsannaw/word-complexity-api/internal/dictionary"
	"github.com/itsannaw/word-complexity-api/internal/domain"
	"github.com/itsannaw/word-complexity-api/internal/queue"
	"github.com/itsannaw/word-complexity-api/internal/storage"
)

// RetryScheduledError reports a failed attempt whose successor has already
// been enqueued
type RetryScheduledError struct {
	JobID   string
	Attempt int
	Delay   time.Duration
	Err     error
}

func (e *RetryScheduledError) Error() string {
	return fmt.Sprintf("job %s attempt %d failed, retrying in %s: %v", e.JobID, e.Attempt, e.Delay, e.Err)
}

func (e *RetryScheduledError) Unwrap() error {
	return e.Err
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Logger      *slog.Logger
	Store       storage.Store
	Publisher   queue.Publisher
	Scorer      *Scorer
	JobTimeout  time.Duration
	RetryDelay  time.Duration
	MaxAttempts int
}

// Processor runs one attempt of a job and drives its status transitions
type Processor struct {
	logger      *slog.Logger
	store       storage.Store
	publisher   queue.Publisher
	scorer      *Scorer
	jobTimeout  time.Duration
	retryDelay  time.Duration
	maxAttempts int
}

// NewProcessor creates a new Processor
func NewProcessor(cfg *ProcessorConfig) *Processor {
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 0 {
		maxAttempts = 0
	}

	return &Processor{
		logger:      cfg.Logger,
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		scorer:      cfg.Scorer,
		jobTimeout:  jobTimeout,
		retryDelay:  retryDelay,
		maxAttempts: maxAttempts,
	}
}

// Process runs a single attempt of the task's job.
//
// It returns nil when the delivery is fully handled (including silently
// skipped tasks), a *RetryScheduledError when the attempt failed transiently
// and the next attempt is queued, a *domain.RetryableError when the store
// could not be reached, domain.ErrMaxAttemptsExceeded when no further attempt
// is allowed, and domain.ErrPermanentFailure when the job failed with an
// error that is not worth retrying.
func (p *Processor) Process(ctx context.Context, task queue.Task) error {
	logger := p.logger.With(
		slog.String("job_id", task.JobID),
		slog.Int("attempt", task.Attempt),
	)

	// Step 1: Load job record
	job, err := p.store.Get(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			logger.Warn("Job not found, skipping")
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}

	// Step 2: Decide whether this delivery should run
	switch job.Status {
	case domain.JobStatusCompleted:
		logger.Info("Job already completed, skipping")
		return nil

	}

	if task.AttemptNumber() < job.Attempt {
		logger.Info("Job owned by a later attempt, skipping stale delivery",
			slog.Int("current_attempt", job.Attempt),
		)
		return nil
	}

	if job.Status == domain.JobStatusFailed {
		if task.AttemptNumber() <= job.Attempt {
			logger.Info("Job already failed, skipping duplicate delivery")
			return nil
		}
		if err := p.store.TransitionToPending(ctx, job.ID, task.AttemptNumber()); err != nil {
			return p.transitionError(logger, "pending", err)
		}
	}

	// Step 3: Claim job (pending → in_progress)
	if err := p.store.TransitionToInProgress(ctx, job.ID); err != nil {
		return p.transitionError(logger, "in_progress", err)
	}

	logger.Info("Processing job", slog.Int("word_count", len(job.Words)))

	// Step 4: Score all words within the job timeout
	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	start := time.Now()
	scores, scoreErr := p.scorer.ScoreWords(jobCtx, job.Words)

	// Step 5: Record the outcome
	if scoreErr == nil {
		if err := p.store.TransitionToCompleted(ctx, job.ID, scores); err != nil {
			return p.transitionError(logger, "completed", err)
		}
		logger.Info("Job completed successfully",
			slog.Int("word_count", len(scores)),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}

	return p.fail(ctx, logger, task, scoreErr)
}

// fail records a failed attempt and schedules the next one for transient
// errors
func (p *Processor) fail(ctx context.Context, logger *slog.Logger, task queue.Task, cause error) error {
	if err := p.store.TransitionToFailed(ctx, task.JobID, cause.Error()); err != nil {
		return p.transitionError(logger, "failed", err)
	}

	if !isTransient(cause) {
		logger.Error("Job failed permanently", slog.String("error", cause.Error()))
		return fmt.Errorf("%w: %w", domain.ErrPermanentFailure, cause)
	}

	if p.maxAttempts > 0 && task.AttemptNumber() >= p.maxAttempts {
		logger.Error("Job exceeded max attempts",
			slog.Int("max_attempts", p.maxAttempts),
			slog.String("error", cause.Error()),
		)
		return fmt.Errorf("%w: %v", domain.ErrMaxAttemptsExceeded, cause)
	}

	next := task.Next()
	if err := p.publisher.EnqueueAfter(ctx, next, p.retryDelay); err != nil {
		// a requeued delivery would be skipped as a duplicate of this failed
		// attempt, so this one is dead-lettered instead
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	logger.Info("Job retry scheduled",
		slog.Int("next_attempt", next.Attempt),
		slog.Duration("delay", p.retryDelay),
	)

	return &RetryScheduledError{
		JobID:   task.JobID,
		Attempt: task.AttemptNumber(),
		Delay:   p.retryDelay,
		Err:     cause,
	}
}

// transitionError maps a store transition failure to a processing result.
// Records that vanished or were moved on by another delivery are skipped.
func (p *Processor) transitionError(logger *slog.Logger, target string, err error) error {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		logger.Warn("Job disappeared during processing, skipping",
			slog.String("target_status", target),
		)
		return nil
	case errors.Is(err, domain.ErrInvalidTransition):
		logger.Warn("Job status changed concurrently, skipping",
			slog.String("target_status", target),
			slog.String("error", err.Error()),
		)
		return nil
	default:
		return domain.NewRetryableError(fmt.Errorf("failed to transition job to %s: %w", target, err))
	}
}

// isTransient reports whether a job-level failure is worth retrying
func isTransient(err error) bool {
	if dictionary.IsTransient(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
