package handler

import (
	"errors"
	"net/http"

	"benchhub/internal/core"
	"benchhub/pkg/logger"

	"github.com/gin-gonic/gin"
)

// respondError maps core errors onto HTTP status codes: unknown records are
// 404, illegal transitions 409, exhausted transaction retries 503.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "state store busy, retry"})
	default:
		logger.ErrorCtx(c.Request.Context(), "request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
