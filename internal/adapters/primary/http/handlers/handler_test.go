package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plant-classifier-pipeline/internal/core/domain"
	"plant-classifier-pipeline/internal/core/services"
	"plant-classifier-pipeline/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store   *testutil.MemoryStore
	decoder *testutil.MockModelDecoder
	model   *testutil.MockModel
	cache   *services.ServingCache
	router  *gin.Engine
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:   testutil.NewMemoryStore(),
		decoder: new(testutil.MockModelDecoder),
		model:   new(testutil.MockModel),
	}
	env.model.On("Labels").Return([]domain.Label{"dandelion", "grass"}).Maybe()
	env.cache = services.NewServingCache(
		services.NewArtifactResolverService(env.store),
		env.store,
		env.decoder,
		services.ServingCacheConfig{Buckets: []string{"models"}, Extension: ".bin", LoadTimeout: time.Second},
	)

	h := New(services.NewInferenceService(env.cache), env.cache, 1<<20)
	env.router = gin.New()
	h.RegisterRoutes(env.router)
	return env
}

func (env *testEnv) publish(key string, modified time.Time) {
	env.store.Seed("models", key, []byte(key), modified)
}

func imageBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 30, G: 160, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "upload.png")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPredict_Success(t *testing.T) {
	env := setupRouter(t)
	env.publish("classifier-1.bin", time.Now())
	env.decoder.On("Decode", []byte("classifier-1.bin")).Return(env.model, nil).Once()
	env.model.On("Predict", mock.Anything).Return(&domain.Prediction{Label: "grass", Probability: 0.87}, nil)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, uploadRequest(t, "file", imageBytes(t)))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "grass", resp["prediction"])
	assert.InDelta(t, 0.87, resp["probability"], 1e-9)
	assert.Equal(t, "classifier-1.bin", resp["model_key"])
	env.decoder.AssertExpectations(t)
}

func TestPredict_InvalidImage(t *testing.T) {
	env := setupRouter(t)
	env.publish("classifier-1.bin", time.Now())

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"text payload", uploadRequest(t, "file", []byte("hello, not an image"))},
		{"empty payload", uploadRequest(t, "file", nil)},
		{"wrong field", uploadRequest(t, "image", imageBytes(t))},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString("{}"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, tt.req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeBody(t, w)["error"], "invalid image")
		})
	}
	env.decoder.AssertNotCalled(t, "Decode", mock.Anything)
}

func TestPredict_ModelUnavailable(t *testing.T) {
	env := setupRouter(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, uploadRequest(t, "file", imageBytes(t)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "could not load model")
}

func TestPredict_CorruptArtifact(t *testing.T) {
	env := setupRouter(t)
	env.publish("classifier-1.bin", time.Now())
	env.decoder.On("Decode", mock.Anything).Return(nil, errors.New("bad magic"))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, uploadRequest(t, "file", imageBytes(t)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "could not load model")
}

func TestPredict_UnexpectedOutput(t *testing.T) {
	env := setupRouter(t)
	env.publish("classifier-1.bin", time.Now())
	env.decoder.On("Decode", mock.Anything).Return(env.model, nil)
	env.model.On("Predict", mock.Anything).Return(&domain.Prediction{Label: "rose", Probability: 0.5}, nil)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, uploadRequest(t, "file", imageBytes(t)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "unexpected prediction output", decodeBody(t, w)["error"])
}

func TestPredict_ClientGoneWhileModelLoads(t *testing.T) {
	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		code int
	}{
		{"cancelled", cancelled, 499},
		{"deadline exceeded", expired, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupRouter(t)
			env.publish("classifier-1.bin", time.Now())
			block := make(chan time.Time)
			t.Cleanup(func() { close(block) })
			env.decoder.On("Decode", mock.Anything).WaitUntil(block).Return(env.model, nil).Maybe()

			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, uploadRequest(t, "file", imageBytes(t)).WithContext(tt.ctx))

			assert.Equal(t, tt.code, w.Code)
			assert.NotContains(t, decodeBody(t, w)["error"], "could not load model")
		})
	}
}

func TestReloadAndCurrentModel(t *testing.T) {
	env := setupRouter(t)
	env.decoder.On("Decode", mock.Anything).Return(env.model, nil)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/model", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "model not loaded", decodeBody(t, w)["error"])

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "could not load model")

	env.publish("classifier-1.bin", time.Now().Add(-time.Minute))
	env.publish("classifier-2.bin", time.Now())

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reload", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "reloaded", resp["status"])
	assert.Equal(t, "classifier-2.bin", resp["artifact"].(map[string]interface{})["key"])

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/model", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody(t, w)
	assert.Equal(t, "models", resp["bucket"])
	assert.Equal(t, "classifier-2.bin", resp["key"])
	assert.Equal(t, []interface{}{"dandelion", "grass"}, resp["labels"])
}

func TestHealthz(t *testing.T) {
	env := setupRouter(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, false, resp["model_loaded"])
}
