// Package service holds the submission and query side of complexity-score
// jobs. It validates input, creates job records and hands them to the queue;
// execution lives in the worker.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/itsannaw/word-complexity-api/internal/domain"
	"github.com/itsannaw/word-complexity-api/internal/queue"
	"github.com/itsannaw/word-complexity-api/internal/storage"
)

// maxIDAttempts bounds regeneration of colliding job ids
const maxIDAttempts = 3

// InternalError wraps store or queue failures during submission or query.
// It is never a validation problem of the caller's input.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// JobView is the client-facing projection of a job
type JobView struct {
	JobID  string             `json:"-"`
	Status domain.Status      `json:"status"`
	Result map[string]float64 `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// JobService implements job submission and status queries
type JobService struct {
	store     storage.Store
	publisher queue.Publisher
	logger    *slog.Logger
	newID     func() string
}

// NewJobService creates a new JobService
func NewJobService(store storage.Store, publisher queue.Publisher, logger *slog.Logger) *JobService {
	return &JobService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		newID:     NewJobID,
	}
}

// NewJobID returns a random 12 character hex identifier
func NewJobID() string {
	u := uuid.New()
	// bytes 0-5 of a v4 uuid carry no version or variant bits
	return hex.EncodeToString(u[:6])
}

// Submit validates input, creates a pending job and enqueues its first
// attempt. input is the decoded "words" value of the request body.
//
// Validation problems are returned as *domain.ValidationError; everything
// else is an *InternalError.
func (s *JobService) Submit(ctx context.Context, input any) (string, error) {
	words, err := domain.ParseWords(input)
	if err != nil {
		return "", err
	}

	job, err := s.create(ctx, words)
	if err != nil {
		s.logger.Error("Failed to create job",
			slog.Int("word_count", len(words)),
			slog.Any("error", err),
		)
		return "", &InternalError{Op: "create job", Err: err}
	}

	if err := s.publisher.Enqueue(ctx, queue.NewTask(job.ID)); err != nil {
		// the record stays pending; nothing will pick it up
		s.logger.Error("Failed to enqueue job",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return "", &InternalError{Op: "enqueue job", Err: err}
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.Int("word_count", len(words)),
	)

	return job.ID, nil
}

func (s *JobService) create(ctx context.Context, words []string) (*domain.Job, error) {
	var lastErr error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := s.newID()
		job, err := s.store.Create(ctx, id, words)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, domain.ErrDuplicateID) {
			return nil, err
		}

		s.logger.Warn("Job id collision, regenerating",
			slog.String("job_id", id),
			slog.Int("attempt", attempt),
		)
		lastErr = err
	}
	return nil, lastErr
}

// Query returns the view of a job, or domain.ErrJobNotFound
func (s *JobService) Query(ctx context.Context, jobID string) (*JobView, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, domain.ErrJobNotFound
		}
		s.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		return nil, &InternalError{Op: "get job", Err: err}
	}

	return Project(job), nil
}

// Project maps a job record to its client view
func Project(job *domain.Job) *JobView {
	view := &JobView{JobID: job.ID, Status: job.Status}
	switch job.Status {
	case domain.JobStatusCompleted:
		view.Result = make(map[string]float64, len(job.Scores))
		for w, s := range job.Scores {
			view.Result[w] = s
		}
	case domain.JobStatusFailed:
		view.Error = job.Error
	}
	return view
}
