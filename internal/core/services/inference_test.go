package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"plant-classifier-pipeline/internal/core/domain"
	"plant-classifier-pipeline/internal/testutil"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 240, G: 220, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixedDecoder struct {
	model domain.Model
}

func (d fixedDecoder) Decode([]byte) (domain.Model, error) { return d.model, nil }

func newInferenceWithModel(t *testing.T, model domain.Model) *InferenceService {
	t.Helper()
	store := testutil.NewMemoryStore()
	store.Seed("models", "classifier-1.bin", []byte("weights"), at(100))
	cache := NewServingCache(NewArtifactResolverService(store), store, fixedDecoder{model: model}, ServingCacheConfig{
		Buckets:   []string{"models"},
		Extension: ".bin",
	})
	return NewInferenceService(cache)
}

func TestInference_Predict(t *testing.T) {
	model := new(testutil.MockModel)
	model.On("Predict", mock.Anything).Return(&domain.Prediction{Label: "dandelion", Probability: 0.93}, nil)
	model.On("Labels").Return([]domain.Label{"dandelion", "grass"})
	svc := newInferenceWithModel(t, model)

	pred, served, err := svc.Predict(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, domain.Label("dandelion"), pred.Label)
	assert.InDelta(t, 0.93, pred.Probability, 1e-9)
	assert.Equal(t, "classifier-1.bin", served.Artifact.Key)
	model.AssertExpectations(t)
}

func TestInference_InvalidImageSkipsModelLoad(t *testing.T) {
	store := testutil.NewMemoryStore()
	cache := NewServingCache(NewArtifactResolverService(store), store, &stubDecoder{}, ServingCacheConfig{Extension: ".bin"})
	svc := NewInferenceService(cache)

	for _, payload := range [][]byte{nil, []byte("definitely not an image"), pngBytes(t)[:20]} {
		_, _, err := svc.Predict(context.Background(), payload)
		assert.ErrorIs(t, err, domain.ErrInvalidImage)
	}
	assert.Zero(t, store.Lists.Load())
	assert.Nil(t, cache.Current())
}

func TestInference_ModelUnavailable(t *testing.T) {
	store := testutil.NewMemoryStore()
	cache := NewServingCache(NewArtifactResolverService(store), store, &stubDecoder{}, ServingCacheConfig{
		Buckets:   []string{"models"},
		Extension: ".bin",
	})
	svc := NewInferenceService(cache)

	_, _, err := svc.Predict(context.Background(), pngBytes(t))
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.ErrorIs(t, err, domain.ErrNoArtifactFound)
	assert.Contains(t, err.Error(), "could not load model")
}

func TestInference_CallerGivesUpWaitingForModel(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Seed("models", "classifier-1.bin", []byte("v1"), at(100))
	decoder := &stubDecoder{gate: make(chan struct{}), entered: make(chan struct{})}
	cache := newTestCache(store, decoder)
	svc := NewInferenceService(cache)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, _, err := svc.Predict(ctx, pngBytes(t))
		errc <- err
	}()
	<-decoder.entered
	cancel()

	err := <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrModelUnavailable)

	close(decoder.gate)
	_, err = cache.GetOrLoad(context.Background())
	require.NoError(t, err)
}

func TestInference_UnexpectedPrediction(t *testing.T) {
	tests := []struct {
		name string
		pred *domain.Prediction
		err  error
	}{
		{"model error", nil, errors.New("tensor shape mismatch")},
		{"unknown label", &domain.Prediction{Label: "rose", Probability: 0.5}, nil},
		{"probability above one", &domain.Prediction{Label: "grass", Probability: 1.5}, nil},
		{"probability NaN", &domain.Prediction{Label: "grass", Probability: math.NaN()}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := new(testutil.MockModel)
			model.On("Predict", mock.Anything).Return(tt.pred, tt.err)
			model.On("Labels").Return([]domain.Label{"dandelion", "grass"}).Maybe()
			svc := newInferenceWithModel(t, model)

			_, _, err := svc.Predict(context.Background(), pngBytes(t))
			assert.ErrorIs(t, err, domain.ErrUnexpectedPrediction)
		})
	}
}
