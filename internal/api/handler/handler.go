package handler

import (
	"context"
	"log/slog"

	"github.com/itsannaw/word-complexity-api/internal/service"
)

// JobService submits and queries complexity score jobs
type JobService interface {
	Submit(ctx context.Context, input any) (string, error)
	Query(ctx context.Context, jobID string) (*service.JobView, error)
}

// Pinger is a dependency checked by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	JobService  JobService
	// HealthChecks are pinged by GET /health, keyed by name
	HealthChecks map[string]Pinger
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	jobService JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		jobService: deps.JobService,
	}
}
