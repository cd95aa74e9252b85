package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/itsannaw/word-complexity-api/internal/domain"
	"github.com/itsannaw/word-complexity-api/internal/queue"
	"github.com/itsannaw/word-complexity-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Enqueue(ctx context.Context, task queue.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockPublisher) EnqueueAfter(ctx context.Context, task queue.Task, delay time.Duration) error {
	args := m.Called(ctx, task, delay)
	return args.Error(0)
}

// failingStore overrides Create on top of a working MemoryStore
type failingStore struct {
	*storage.MemoryStore
	createErrs []error
	calls      int
}

func (s *failingStore) Create(ctx context.Context, id string, words []string) (*domain.Job, error) {
	s.calls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.MemoryStore.Create(ctx, id, words)
}

func newTestService(store storage.Store, pub queue.Publisher) *JobService {
	return NewJobService(store, pub, slog.New(slog.DiscardHandler))
}

func TestNewJobID(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{12}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewJobID()
		assert.Regexp(t, re, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestJobService_Submit(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.NewMemoryQueue(10)
	svc := newTestService(store, q)

	id, err := svc.Submit(ctx, []any{"happy", "sad"})
	require.NoError(t, err)
	assert.Len(t, id, 12)

	job, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, []string{"happy", "sad"}, job.Words)
	assert.Equal(t, 1, q.Len())

	other, err := svc.Submit(ctx, []string{"happy", "sad"})
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestJobService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input any
		kind  domain.ValidationKind
		msg   string
	}{
		{name: "nil", input: nil, kind: domain.EmptyInput, msg: "Words array cannot be empty"},
		{name: "empty", input: []any{}, kind: domain.EmptyInput, msg: "Words array cannot be empty"},
		{name: "not a list", input: "happy", kind: domain.EmptyInput, msg: "Words array cannot be empty"},
		{name: "number", input: []any{"a", "b", float64(3)}, kind: domain.NonStringElement, msg: "All words must be strings"},
		{name: "null element", input: []any{"ok", nil}, kind: domain.NonStringElement, msg: "All words must be strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			q := queue.NewMemoryQueue(10)
			svc := newTestService(store, q)

			id, err := svc.Submit(ctx, tt.input)
			require.Error(t, err)
			assert.Empty(t, id)
			assert.True(t, domain.IsValidationError(err, tt.kind))
			assert.Equal(t, tt.msg, err.Error())

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Zero(t, q.Len())
		})
	}
}

func TestJobService_Submit_RegeneratesDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{
		MemoryStore: storage.NewMemoryStore(),
		createErrs:  []error{domain.ErrDuplicateID, nil},
	}
	q := queue.NewMemoryQueue(10)
	svc := newTestService(store, q)

	id, err := svc.Submit(ctx, []string{"happy"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 2, store.calls)
}

func TestJobService_Submit_DuplicateIDExhausted(t *testing.T) {
	store := &failingStore{
		MemoryStore: storage.NewMemoryStore(),
		createErrs:  []error{domain.ErrDuplicateID, domain.ErrDuplicateID, domain.ErrDuplicateID},
	}
	svc := newTestService(store, queue.NewMemoryQueue(10))

	_, err := svc.Submit(context.Background(), []string{"happy"})
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
	assert.Equal(t, maxIDAttempts, store.calls)
}

func TestJobService_Submit_StoreError(t *testing.T) {
	store := &failingStore{
		MemoryStore: storage.NewMemoryStore(),
		createErrs:  []error{errors.New("connection refused")},
	}
	pub := new(mockPublisher)
	svc := newTestService(store, pub)

	_, err := svc.Submit(context.Background(), []string{"happy"})
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "failed to create job: connection refused", err.Error())
	assert.False(t, domain.IsValidationError(err, 0))
	pub.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestJobService_Submit_EnqueueError(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	pub := new(mockPublisher)
	pub.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
		return task.Attempt == 1 && len(task.JobID) == 12
	})).Return(errors.New("broker down"))

	svc := newTestService(store, pub)
	_, err := svc.Submit(ctx, []string{"happy"})

	var internal *InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "enqueue job", internal.Op)
	pub.AssertExpectations(t)
}

func TestJobService_Query(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newTestService(store, queue.NewMemoryQueue(10))

	_, err := store.Create(ctx, "pending", []string{"a"})
	require.NoError(t, err)

	_, err = store.Create(ctx, "running", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, store.TransitionToInProgress(ctx, "running"))

	_, err = store.Create(ctx, "done", []string{"happy", "sad"})
	require.NoError(t, err)
	require.NoError(t, store.TransitionToInProgress(ctx, "done"))
	require.NoError(t, store.TransitionToCompleted(ctx, "done", map[string]float64{"happy": 1, "sad": 0.5}))

	_, err = store.Create(ctx, "broken", []string{"x"})
	require.NoError(t, err)
	require.NoError(t, store.TransitionToInProgress(ctx, "broken"))
	require.NoError(t, store.TransitionToFailed(ctx, "broken", "read timeout"))

	tests := []struct {
		id   string
		want JobView
	}{
		{id: "pending", want: JobView{JobID: "pending", Status: domain.JobStatusPending}},
		{id: "running", want: JobView{JobID: "running", Status: domain.JobStatusInProgress}},
		{id: "done", want: JobView{JobID: "done", Status: domain.JobStatusCompleted, Result: map[string]float64{"happy": 1, "sad": 0.5}}},
		{id: "broken", want: JobView{JobID: "broken", Status: domain.JobStatusFailed, Error: "read timeout"}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			view, err := svc.Query(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *view)
		})
	}
}

func TestJobService_Query_NotFound(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newTestService(store, queue.NewMemoryQueue(10))

	view, err := svc.Query(ctx, "deadbeef0000")
	assert.Nil(t, view)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
