package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.trai.ch/zerr"

	"github.com/OpenNSW/taskrunner/internal/task/service"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp"`
}

func writeError(c *gin.Context, status int, message, details string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		StatusCode: status,
		Message:    message,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	})
}

// writeServiceError maps service errors onto HTTP statuses.
func (tr *TaskRouter) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		writeError(c, http.StatusNotFound, "Task not found", err.Error())
	case errors.Is(err, service.ErrExecutionNotFound):
		writeError(c, http.StatusNotFound, "Execution not found", err.Error())
	case errors.Is(err, service.ErrUnsafeCommand):
		writeError(c, http.StatusBadRequest, "Unsafe command", err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(c, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		zerr.Log(c.Request.Context(), tr.logger, err)
		writeError(c, http.StatusInternalServerError, "Internal server error", "an unexpected error occurred")
	}
}
