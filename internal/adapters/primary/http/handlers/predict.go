package handlers

import (
	"fmt"
	"io"
	"net/http"

	"plant-classifier-pipeline/internal/adapters/primary/http/dto"
	"plant-classifier-pipeline/internal/core/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const uploadField = "file"

func (h *Handler) Predict(c *gin.Context) {
	payload, err := h.readUpload(c)
	if err != nil {
		log.WithError(err).Debug("unreadable upload")
		mapDomainError(c, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err))
		return
	}

	pred, served, err := h.inferenceSvc.Predict(c.Request.Context(), payload)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPredictionResponse(pred, served))
}

func (h *Handler) readUpload(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	fh, err := c.FormFile(uploadField)
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, h.maxUploadSize))
}

// Reload swaps in the newest published artifact. On failure the previous
// model keeps serving.
func (h *Handler) Reload(c *gin.Context) {
	m, err := h.cache.Reload(c.Request.Context())
	if err != nil {
		if c.Request.Context().Err() != nil {
			mapDomainError(c, err)
			return
		}
		log.WithError(err).Error("reload requested but failed")
		mapDomainError(c, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, dto.ReloadResponse{
		Status:   "reloaded",
		Artifact: dto.ToModelResponse(m),
	})
}

func (h *Handler) CurrentModel(c *gin.Context) {
	m := h.cache.Current()
	if m == nil {
		mapDomainError(c, domain.ErrModelNotLoaded)
		return
	}
	c.JSON(http.StatusOK, dto.ToModelResponse(m))
}

// Healthz reports liveness only. A missing model is not unhealthy since the
// first prediction loads it.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model_loaded": h.cache.Current() != nil})
}
