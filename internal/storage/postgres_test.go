package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/itsannaw/word-complexity-api/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobColumns = []string{"job_id", "status", "words", "result", "attempt", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresStore(sqlx.NewDb(db, "postgres"), slog.New(slog.DiscardHandler)), mock
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO complexity_scores").
		WithArgs("abc123def456", "pending", `["happy","sad"]`, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job, err := store.Create(context.Background(), "abc123def456", []string{"happy", "sad"})
	require.NoError(t, err)
	assert.Equal(t, "abc123def456", job.ID)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, []string{"happy", "sad"}, job.Words)
	assert.Equal(t, 1, job.Attempt)
}

func TestPostgresStore_Create_Duplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO complexity_scores").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := store.Create(context.Background(), "abc123def456", []string{"happy"})
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
}

func TestPostgresStore_Create_Errors(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Create(context.Background(), "id", []string{})
	assert.True(t, domain.IsValidationError(err, domain.EmptyInput))

	mock.ExpectExec("INSERT INTO complexity_scores").WillReturnError(errors.New("connection reset"))
	_, err = store.Create(context.Background(), "id", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create job")
	assert.NotErrorIs(t, err, domain.ErrDuplicateID)
}

func TestPostgresStore_Get(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name       string
		status     string
		result     any
		wantScores map[string]float64
		wantError  string
	}{
		{
			name:   "pending",
			status: "pending",
			result: nil,
		},
		{
			name:       "completed",
			status:     "completed",
			result:     `{"happy":1,"sad":0.5}`,
			wantScores: map[string]float64{"happy": 1, "sad": 0.5},
		},
		{
			name:      "failed",
			status:    "failed",
			result:    "Net::ReadTimeout",
			wantError: "Net::ReadTimeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			rows := sqlmock.NewRows(jobColumns).
				AddRow("abc123def456", tt.status, `["happy","sad"]`, tt.result, 2, now, now)
			mock.ExpectQuery("SELECT job_id, status, words, result").
				WithArgs("abc123def456").
				WillReturnRows(rows)

			job, err := store.Get(context.Background(), "abc123def456")
			require.NoError(t, err)
			assert.Equal(t, domain.Status(tt.status), job.Status)
			assert.Equal(t, []string{"happy", "sad"}, job.Words)
			assert.Equal(t, tt.wantScores, job.Scores)
			assert.Equal(t, tt.wantError, job.Error)
			assert.Equal(t, 2, job.Attempt)
		})
	}
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT job_id, status, words, result").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(jobColumns))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestPostgresStore_Get_CorruptWords(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT job_id, status, words, result").
		WillReturnRows(sqlmock.NewRows(jobColumns).AddRow("id", "pending", `not json`, nil, 1, now, now))

	_, err := store.Get(context.Background(), "id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode words")
}

func TestPostgresStore_TransitionToCompleted(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE complexity_scores").
		WithArgs("completed", `{"happy":1}`, "abc123def456", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.TransitionToCompleted(context.Background(), "abc123def456", map[string]float64{"happy": 1})
	require.NoError(t, err)
}

func TestPostgresStore_TransitionToFailed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE complexity_scores").
		WithArgs("failed", "read timeout", "abc123def456", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.TransitionToFailed(context.Background(), "abc123def456", "read timeout"))
}

func TestPostgresStore_TransitionToInProgress_ClearsResult(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE complexity_scores").
		WithArgs("in_progress", nil, "abc123def456", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.TransitionToInProgress(context.Background(), "abc123def456"))
}

func TestPostgresStore_Transition_Rejected(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE complexity_scores").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM complexity_scores").
		WithArgs("abc123def456").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

	err := store.TransitionToInProgress(context.Background(), "abc123def456")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPostgresStore_Transition_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE complexity_scores").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM complexity_scores").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := store.TransitionToPending(context.Background(), "missing", 2)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestPostgresStore_TransitionToPending(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		current  string
		wantErr  error
	}{
		{name: "reopened", affected: 1},
		{name: "attempt already reopened", affected: 0, current: "in_progress", wantErr: domain.ErrInvalidTransition},
		{name: "duplicate of failed attempt", affected: 0, current: "failed", wantErr: domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			mock.ExpectExec("UPDATE complexity_scores").
				WithArgs("pending", 2, "abc123def456", "failed").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				mock.ExpectQuery("SELECT status FROM complexity_scores").
					WithArgs("abc123def456").
					WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(tt.current))
			}

			err := store.TransitionToPending(context.Background(), "abc123def456", 2)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPostgresStore_Migrate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS complexity_scores").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
}
