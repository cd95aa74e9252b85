package dto

import "github.com/itsannaw/word-complexity-api/internal/domain"

type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse is the status view of a job. Result is set for completed jobs
// and Error for failed ones.
type JobResponse struct {
	Status domain.Status      `json:"status"`
	Result map[string]float64 `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

type ErrorsResponse struct {
	Errors []string `json:"errors"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
