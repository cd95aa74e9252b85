package storage

import (
	"context"
	"sync"
	"time"

	"github.com/itsannaw/word-complexity-api/internal/domain"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store. Safe for concurrent access.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Create(_ context.Context, id string, words []string) (*domain.Job, error) {
	if len(words) == 0 {
		return nil, domain.NewValidationError(domain.EmptyInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[id]; exists {
		return nil, domain.ErrDuplicateID
	}

	now := m.now()
	job := &domain.Job{
		ID:        id,
		Status:    domain.JobStatusPending,
		Words:     append([]string(nil), words...),
		Attempt:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs[id] = job

	return job.Clone(), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (m *MemoryStore) TransitionToInProgress(_ context.Context, id string) error {
	return m.transition(id, domain.JobStatusInProgress, func(j *domain.Job) {
		j.Scores = nil
		j.Error = ""
	})
}

func (m *MemoryStore) TransitionToCompleted(_ context.Context, id string, scores map[string]float64) error {
	copied := make(map[string]float64, len(scores))
	for k, v := range scores {
		copied[k] = v
	}
	return m.transition(id, domain.JobStatusCompleted, func(j *domain.Job) {
		j.Scores = copied
		j.Error = ""
	})
}

func (m *MemoryStore) TransitionToFailed(_ context.Context, id string, message string) error {
	return m.transition(id, domain.JobStatusFailed, func(j *domain.Job) {
		j.Scores = nil
		j.Error = message
	})
}

func (m *MemoryStore) TransitionToPending(_ context.Context, id string, attempt int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !job.CanReopen(attempt) {
		return domain.ErrInvalidTransition
	}

	job.Status = domain.JobStatusPending
	job.Attempt = attempt
	job.Scores = nil
	job.Error = ""
	job.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs), nil
}

// Ping always succeeds for the memory store
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) transition(id string, to domain.Status, apply func(*domain.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !domain.CanTransition(job.Status, to) {
		return domain.ErrInvalidTransition
	}

	job.Status = to
	apply(job)
	job.UpdatedAt = m.now()
	return nil
}
