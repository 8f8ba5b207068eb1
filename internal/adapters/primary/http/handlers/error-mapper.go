package handlers

import (
	"context"
	"errors"
	"net/http"

	"plant-classifier-pipeline/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	// Bad uploads. The decoder's detail stays in the logs.
	case errors.Is(err, domain.ErrInvalidImage),
		errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidImage.Error()})

	// Not found
	case errors.Is(err, domain.ErrModelNotLoaded):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Model could not be resolved, fetched or decoded
	case errors.Is(err, domain.ErrModelUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoArtifactFound),
		errors.Is(err, domain.ErrArtifactLoad),
		errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.ErrModelUnavailable.Error() + ": " + err.Error()})

	case errors.Is(err, domain.ErrUnexpectedPrediction):
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.ErrUnexpectedPrediction.Error()})

	// Client went away
	case errors.Is(err, context.Canceled):
		c.JSON(499, gin.H{"error": "request cancelled"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
