package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deepread-ai/deepread/pkg/task"
)

// ErrorResponse carries a classified error to the client.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody mirrors task.Error on the wire.
type ErrorBody struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// writeError maps a service or manager error to an HTTP error response.
func (s *Server) writeError(c *gin.Context, err error) {
	if te, ok := task.AsError(err); ok {
		c.JSON(statusForKind(te.Kind), &ErrorResponse{Error: ErrorBody{
			Kind:        string(te.Kind),
			Message:     te.Message,
			Suggestions: te.Suggestions,
		}})
		return
	}

	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, &ErrorResponse{Error: ErrorBody{
			Kind:    "not_found",
			Message: "task not found",
		}})
	case errors.Is(err, task.ErrNotAwaitingConfirmation):
		c.JSON(http.StatusConflict, &ErrorResponse{Error: ErrorBody{
			Kind:    "invalid_input",
			Message: "task is not awaiting confirmation",
		}})
	default:
		s.log.Error("Unexpected handler error", "error", err)
		c.JSON(http.StatusInternalServerError, &ErrorResponse{Error: ErrorBody{
			Kind:    string(task.ErrKindUnknown),
			Message: "internal server error",
		}})
	}
}

// statusForKind maps error kinds to HTTP statuses. Submission-time
// errors are invalid_input or queue_full; everything else only reaches
// clients through the task error state, not as an HTTP error.
func statusForKind(kind task.ErrorKind) int {
	switch kind {
	case task.ErrKindInvalidInput:
		return http.StatusBadRequest
	case task.ErrKindQueueFull:
		return http.StatusServiceUnavailable
	case task.ErrKindConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
