package servingapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "plant-classifier-pipeline/internal/core/ports/output"
)

func TestClient_Reload(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		if r.URL.Path == "/broken" {
			http.Error(w, "could not load model", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(time.Second)

	err := client.Reload(context.Background(), ports.ReloadTarget{Name: "api", URL: srv.URL + "/reload"})
	require.NoError(t, err)

	err = client.Reload(context.Background(), ports.ReloadTarget{Name: "api", URL: srv.URL + "/broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not load model")
	assert.Equal(t, 2, calls)
}

func TestStaticTargets(t *testing.T) {
	targets, err := StaticTargets{"http://api:8000/reload", " ", ""}.Targets(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "http://api:8000/reload", targets[0].URL)
}
