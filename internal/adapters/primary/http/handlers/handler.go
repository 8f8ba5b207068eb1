package handlers

import (
	"plant-classifier-pipeline/internal/core/services"

	"github.com/gin-gonic/gin"
)

const defaultMaxUploadSize = 10 << 20

type Handler struct {
	inferenceSvc  *services.InferenceService
	cache         *services.ServingCache
	maxUploadSize int64
}

func New(inferenceSvc *services.InferenceService, cache *services.ServingCache, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &Handler{
		inferenceSvc:  inferenceSvc,
		cache:         cache,
		maxUploadSize: maxUploadSize,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	// Inference
	r.POST("/predict", h.Predict)

	// Model lifecycle
	r.POST("/reload", h.Reload)
	r.GET("/model", h.CurrentModel)

	r.GET("/healthz", h.Healthz)
}
