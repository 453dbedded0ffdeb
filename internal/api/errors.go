package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quillspace/engage/internal/models"
	"github.com/quillspace/engage/pkg/logging"
)

// StatusFor maps a domain error onto its HTTP status code. Anything
// outside the taxonomy is an internal error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a domain error as a JSON response. Internal errors
// are logged and masked; taxonomy errors pass their message through.
func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.GetLogger().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
