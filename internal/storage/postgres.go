package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/itsannaw/word-complexity-api/internal/domain"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var _ Store = (*PostgresStore)(nil)

// jobRow mirrors the complexity_scores table. Words and result are stored as
// text: words as a JSON array, result as a JSON object for completed jobs and
// as the raw error message for failed ones.
type jobRow struct {
	JobID     string         `db:"job_id"`
	Status    string         `db:"status"`
	Words     string         `db:"words"`
	Result    sql.NullString `db:"result"`
	Attempt   int            `db:"attempt"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// PostgresStore handles all job persistence in PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// Migrate applies the embedded schema migrations in file name order
func (s *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		stmt, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		s.logger.Info("Migration applied", slog.String("migration", name))
	}

	return nil
}

// Create inserts a new pending job
func (s *PostgresStore) Create(ctx context.Context, id string, words []string) (*domain.Job, error) {
	if len(words) == 0 {
		return nil, domain.NewValidationError(domain.EmptyInput)
	}

	wordsJSON, err := encodeWords(words)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO complexity_scores (
			job_id, status, words, attempt, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query, id, string(domain.JobStatusPending), wordsJSON, 1, now, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
			return nil, domain.ErrDuplicateID
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug("Job created",
		slog.String("job_id", id),
		slog.Int("words", len(words)),
	)

	return &domain.Job{
		ID:        id,
		Status:    domain.JobStatusPending,
		Words:     append([]string(nil), words...),
		Attempt:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get retrieves a job by its ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	query := `
		SELECT job_id, status, words, result, attempt, created_at, updated_at
		FROM complexity_scores
		WHERE job_id = $1
	`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

func (s *PostgresStore) TransitionToInProgress(ctx context.Context, id string) error {
	return s.transition(ctx, id, domain.JobStatusInProgress, nil)
}

func (s *PostgresStore) TransitionToCompleted(ctx context.Context, id string, scores map[string]float64) error {
	if scores == nil {
		scores = map[string]float64{}
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}
	result := string(data)
	return s.transition(ctx, id, domain.JobStatusCompleted, &result)
}

func (s *PostgresStore) TransitionToFailed(ctx context.Context, id string, message string) error {
	return s.transition(ctx, id, domain.JobStatusFailed, &message)
}

// TransitionToPending reopens a job for attempt. The attempt guard mirrors
// domain.Job.CanReopen so that only one delivery of a retry task wins.
func (s *PostgresStore) TransitionToPending(ctx context.Context, id string, attempt int) error {
	query := `
		UPDATE complexity_scores
		SET status = $1,
			result = NULL,
			attempt = $2,
			updated_at = NOW()
		WHERE job_id = $3
		  AND ((status = $4 AND attempt < $2) OR (status = $1 AND attempt <= $2))
	`

	res, err := s.db.ExecContext(ctx, query,
		string(domain.JobStatusPending), attempt, id, string(domain.JobStatusFailed))
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return s.checkUpdated(ctx, res, id, domain.JobStatusPending)
}

// Count returns the number of stored jobs
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM complexity_scores`); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// transition moves a job to status `to` in a single conditional update,
// setting result to the given value (NULL when nil)
func (s *PostgresStore) transition(ctx context.Context, id string, to domain.Status, result *string) error {
	query := `
		UPDATE complexity_scores
		SET status = $1,
			result = $2,
			updated_at = NOW()
		WHERE job_id = $3
		  AND status = ANY($4)
	`

	var resultArg sql.NullString
	if result != nil {
		resultArg = sql.NullString{String: *result, Valid: true}
	}

	sources := domain.AllowedSources(to)
	from := make([]string, len(sources))
	for i, st := range sources {
		from[i] = string(st)
	}

	res, err := s.db.ExecContext(ctx, query, string(to), resultArg, id, pq.Array(from))
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return s.checkUpdated(ctx, res, id, to)
}

// checkUpdated maps an update that matched no row to ErrJobNotFound or
// ErrInvalidTransition
func (s *PostgresStore) checkUpdated(ctx context.Context, res sql.Result, id string, to domain.Status) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var current string
		err := s.db.GetContext(ctx, &current, `SELECT status FROM complexity_scores WHERE job_id = $1`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrJobNotFound
			}
			return fmt.Errorf("failed to get job status: %w", err)
		}

		s.logger.Warn("Rejected job status transition",
			slog.String("job_id", id),
			slog.String("from", current),
			slog.String("to", string(to)),
		)
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, to)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", id),
		slog.String("status", string(to)),
	)

	return nil
}

func (r *jobRow) toDomain() (*domain.Job, error) {
	words, err := decodeWords(r.Words)
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:        r.JobID,
		Status:    domain.Status(r.Status),
		Words:     words,
		Attempt:   r.Attempt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if !r.Result.Valid {
		return job, nil
	}

	switch job.Status {
	case domain.JobStatusCompleted:
		scores := map[string]float64{}
		if r.Result.String != "" {
			if err := json.Unmarshal([]byte(r.Result.String), &scores); err != nil {
				return nil, fmt.Errorf("failed to decode result of job %s: %w", r.JobID, err)
			}
		}
		job.Scores = scores
	case domain.JobStatusFailed:
		job.Error = r.Result.String
	}

	return job, nil
}

func encodeWords(words []string) (string, error) {
	data, err := json.Marshal(words)
	if err != nil {
		return "", fmt.Errorf("failed to marshal words: %w", err)
	}
	return string(data), nil
}

func decodeWords(raw string) ([]string, error) {
	var words []string
	if err := json.Unmarshal([]byte(raw), &words); err != nil {
		return nil, fmt.Errorf("failed to decode words: %w", err)
	}
	return words, nil
}
