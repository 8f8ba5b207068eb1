package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"plant-classifier-pipeline/internal/core/domain"
)

// InferenceService classifies uploaded images with the cached model.
type InferenceService struct {
	cache *ServingCache
}

func NewInferenceService(cache *ServingCache) *InferenceService {
	return &InferenceService{cache: cache}
}

// Predict decodes the payload before touching the model, so a bad upload
// never triggers a model load.
func (s *InferenceService) Predict(ctx context.Context, payload []byte) (*domain.Prediction, *domain.ServingModel, error) {
	if len(payload) == 0 {
		return nil, nil, domain.ErrInvalidImage
	}
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	served, err := s.cache.GetOrLoad(ctx)
	if err != nil {
		// The caller gave up waiting; the load may still succeed.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("wait for model: %w", ctxErr)
		}
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}

	pred, err := served.Model.Predict(img)
	if err != nil {
		return nil, served, fmt.Errorf("%w: %v", domain.ErrUnexpectedPrediction, err)
	}
	if err := checkPrediction(pred, served.Model.Labels()); err != nil {
		return nil, served, err
	}
	return pred, served, nil
}

func checkPrediction(pred *domain.Prediction, labels []domain.Label) error {
	if pred == nil {
		return fmt.Errorf("%w: empty result", domain.ErrUnexpectedPrediction)
	}
	if math.IsNaN(pred.Probability) || pred.Probability < 0 || pred.Probability > 1 {
		return fmt.Errorf("%w: probability %v", domain.ErrUnexpectedPrediction, pred.Probability)
	}
	for _, l := range labels {
		if l == pred.Label {
			return nil
		}
	}
	return fmt.Errorf("%w: label %q", domain.ErrUnexpectedPrediction, pred.Label)
}
