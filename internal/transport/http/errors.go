package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"timed-quiz-service/internal/domain"
)

type errorResponse struct {
	Error     string `json:"error"`
	Finalized bool   `json:"finalized,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError maps domain errors onto status codes. Unknown errors are logged and
// reported as 500 without leaking their text.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: domain.ErrUnauthorized.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAlreadyFinalized):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Finalized: true})
	case errors.Is(err, domain.ErrStorage):
		slog.Error("storage fault", "path", c.FullPath(), "request_id", requestID(c), "err", err)
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: domain.ErrStorage.Error(), Retryable: true})
	default:
		slog.Error("unhandled error", "path", c.FullPath(), "request_id", requestID(c), "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// bindJSON decodes the body into dst and reports malformed input as a validation error.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, domain.Invalid("body", err.Error()))
		return false
	}
	return true
}
