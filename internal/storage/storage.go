// Package storage persists complexity scoring jobs and guards their status
// transitions.
package storage

import (
	"context"

	"github.com/itsannaw/word-complexity-api/internal/domain"
)

// Store is the single writer gate for job records.
//
// Transitions fail with domain.ErrJobNotFound for unknown ids and with
// domain.ErrInvalidTransition when the record is not in an allowed source
// status (see domain.AllowedSources). Repeating a transition is a no-op.
type Store interface {
	// Create inserts a new pending job. It fails with domain.ErrDuplicateID
	// when id is taken and with a domain.ValidationError when words is empty.
	Create(ctx context.Context, id string, words []string) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	TransitionToInProgress(ctx context.Context, id string) error
	TransitionToCompleted(ctx context.Context, id string, scores map[string]float64) error
	TransitionToFailed(ctx context.Context, id string, message string) error
	// TransitionToPending moves a failed job back to pending for a retry and
	// records attempt as its owner. It fails with domain.ErrInvalidTransition
	// unless the job can reopen for that attempt (see domain.Job.CanReopen).
	TransitionToPending(ctx context.Context, id string, attempt int) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}
