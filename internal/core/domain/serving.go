package domain

import (
	"image"
	"time"
)

// Model is a decoded artifact ready for inference. Implementations must be
// safe for concurrent Predict calls.
type Model interface {
	Predict(img image.Image) (*Prediction, error)
	Labels() []Label
}

// ServingModel is the handle the serving cache hands out. It is never
// mutated after the cache publishes it.
type ServingModel struct {
	Artifact Artifact
	Model    Model
	LoadedAt time.Time
}

type Prediction struct {
	Label       Label             `json:"prediction"`
	Probability float64           `json:"probability"`
	Scores      map[Label]float64 `json:"scores,omitempty"`
}

type ReloadReport struct {
	Targets   int      `json:"targets"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}
