package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/itsannaw/word-complexity-api/internal/api/dto"
	"github.com/itsannaw/word-complexity-api/internal/domain"
)

// maxRequestBodySize caps the submit payload
const maxRequestBodySize = 1 << 20

// SubmitJob handles POST /complexity-score
// Validates the words and creates a scoring job
func (h *JobHandler) SubmitJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)

	input, err := decodeWords(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Request body too large", slog.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorsResponse{
				Errors: []string{"Request body too large"},
			})
			return
		}

		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorsResponse{
			Errors: []string{"Invalid request body"},
		})
		return
	}

	jobID, err := h.jobService.Submit(c.Request.Context(), input)
	if err != nil {
		if domain.IsValidationError(err, 0) {
			c.JSON(http.StatusBadRequest, dto.ErrorsResponse{
				Errors: []string{err.Error()},
			})
			return
		}

		h.logger.Error("Failed to submit job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorsResponse{
			Errors: []string{err.Error()},
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitResponse{JobID: jobID})
}

// decodeWords extracts the words value from a request body. Both
// {"words": [...]} and a bare array are accepted; an empty body yields nil.
func decodeWords(c *gin.Context) (any, error) {
	var raw any
	if err := c.ShouldBindJSON(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	switch v := raw.(type) {
	case map[string]any:
		return v["words"], nil
	case []any:
		return v, nil
	default:
		return nil, nil
	}
}

// GetJob handles GET /complexity-score/:job_id
// Returns the status of a job, with scores or error once finished
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	view, err := h.jobService.Query(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found"})
			return
		}

		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get job"})
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		Status: view.Status,
		Result: view.Result,
		Error:  view.Error,
	})
}
