package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/itsannaw/word-complexity-api/internal/domain"
	"github.com/itsannaw/word-complexity-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockJobService struct {
	mock.Mock
}

func (m *mockJobService) Submit(ctx context.Context, input any) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *mockJobService) Query(ctx context.Context, jobID string) (*service.JobView, error) {
	args := m.Called(ctx, jobID)
	view, _ := args.Get(0).(*service.JobView)
	return view, args.Error(1)
}

type mockPinger struct {
	err error
}

func (p mockPinger) Ping(context.Context) error { return p.err }

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(svc JobService, checks map[string]Pinger) *gin.Engine {
	deps := &Dependencies{
		Logger:       slog.New(slog.DiscardHandler),
		ServiceName:  "test",
		JobService:   svc,
		HealthChecks: checks,
	}
	jobs := NewJobHandler(deps)
	health := NewHealthHandler(deps)

	r := gin.New()
	r.POST("/complexity-score", jobs.SubmitJob)
	r.GET("/complexity-score/:job_id", jobs.GetJob)
	r.GET("/health", health.Health)
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitJob(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		input      any
		jobID      string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "accepted",
			body:       `{"words":["happy","sad"]}`,
			input:      []any{"happy", "sad"},
			jobID:      "abc123def456",
			wantStatus: http.StatusAccepted,
			wantBody:   `{"job_id":"abc123def456"}`,
		},
		{
			name:       "bare array",
			body:       `["happy"]`,
			input:      []any{"happy"},
			jobID:      "abc123def456",
			wantStatus: http.StatusAccepted,
			wantBody:   `{"job_id":"abc123def456"}`,
		},
		{
			name:       "non string element",
			body:       `{"words":["a","b",3]}`,
			input:      []any{"a", "b", float64(3)},
			err:        domain.NewValidationError(domain.NonStringElement),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"errors":["All words must be strings"]}`,
		},
		{
			name:       "missing words",
			body:       `{}`,
			input:      nil,
			err:        domain.NewValidationError(domain.EmptyInput),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"errors":["Words array cannot be empty"]}`,
		},
		{
			name:       "empty body",
			body:       ``,
			input:      nil,
			err:        domain.NewValidationError(domain.EmptyInput),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"errors":["Words array cannot be empty"]}`,
		},
		{
			name:       "internal error",
			body:       `{"words":["happy"]}`,
			input:      []any{"happy"},
			err:        &service.InternalError{Op: "create job", Err: errors.New("connection refused")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"errors":["failed to create job: connection refused"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockJobService)
			svc.On("Submit", mock.Anything, tt.input).Return(tt.jobID, tt.err).Once()

			w := doRequest(newTestEngine(svc, nil), http.MethodPost, "/complexity-score", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestSubmitJob_RejectedBody(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "malformed json",
			body:       `{"words": [`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"errors":["Invalid request body"]}`,
		},
		{
			name:       "body too large",
			body:       `{"words":["` + strings.Repeat("a", maxRequestBodySize) + `"]}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   `{"errors":["Request body too large"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockJobService)

			w := doRequest(newTestEngine(svc, nil), http.MethodPost, "/complexity-score", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}
}

func TestGetJob(t *testing.T) {
	tests := []struct {
		name       string
		view       *service.JobView
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "pending",
			view:       &service.JobView{Status: domain.JobStatusPending},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"pending"}`,
		},
		{
			name:       "in progress",
			view:       &service.JobView{Status: domain.JobStatusInProgress},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"in_progress"}`,
		},
		{
			name:       "completed",
			view:       &service.JobView{Status: domain.JobStatusCompleted, Result: map[string]float64{"happy": 1, "sad": 0.5}},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"completed","result":{"happy":1,"sad":0.5}}`,
		},
		{
			name:       "failed",
			view:       &service.JobView{Status: domain.JobStatusFailed, Error: "read timeout"},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"failed","error":"read timeout"}`,
		},
		{
			name:       "not found",
			err:        domain.ErrJobNotFound,
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"Job not found"}`,
		},
		{
			name:       "store error",
			err:        &service.InternalError{Op: "get job", Err: errors.New("timeout")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Failed to get job"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockJobService)
			svc.On("Query", mock.Anything, "abc123def456").Return(tt.view, tt.err).Once()

			w := doRequest(newTestEngine(svc, nil), http.MethodGet, "/complexity-score/abc123def456", "")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantState  string
		wantChecks map[string]any
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantState:  "ok",
		},
		{
			name:       "all healthy",
			checks:     map[string]Pinger{"database": mockPinger{}, "queue": mockPinger{}},
			wantStatus: http.StatusOK,
			wantState:  "ok",
			wantChecks: map[string]any{"database": "ok", "queue": "ok"},
		},
		{
			name:       "queue down",
			checks:     map[string]Pinger{"database": mockPinger{}, "queue": mockPinger{err: errors.New("closed")}},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unavailable",
			wantChecks: map[string]any{"database": "ok", "queue": "unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(newTestEngine(new(mockJobService), tt.checks), http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, "test", body["service"])
			assert.NotEmpty(t, body["timestamp"])
			if tt.wantChecks != nil {
				assert.Equal(t, tt.wantChecks, body["checks"])
			}
		})
	}
}
