package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
	"github.com/mamadbah2/amutrack/internal/service/administration"
)

// respondError maps service errors onto HTTP statuses. Ineligibility carries
// the full animal list so the caller can fix the whole request at once.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var ineligible *administration.IneligibleAnimalsError
	if errors.As(err, &ineligible) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":             "ineligible animals",
			"ineligibleAnimals": ineligible.Animals,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, administration.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, administration.ErrValidation), errors.Is(err, administration.ErrMissingReason):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInsufficientStock), errors.Is(err, administration.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
