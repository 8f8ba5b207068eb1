package dto

import (
	"time"

	"plant-classifier-pipeline/internal/core/domain"
)

type PredictionResponse struct {
	Prediction  string             `json:"prediction"`
	Probability float64            `json:"probability"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	ModelKey    string             `json:"model_key,omitempty"`
}

type ModelResponse struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	LoadedAt     time.Time `json:"loaded_at"`
	Labels       []string  `json:"labels"`
}

type ReloadResponse struct {
	Status   string        `json:"status"`
	Artifact ModelResponse `json:"artifact"`
}

func ToPredictionResponse(p *domain.Prediction, served *domain.ServingModel) PredictionResponse {
	resp := PredictionResponse{
		Prediction:  p.Label.String(),
		Probability: p.Probability,
	}
	if len(p.Scores) > 0 {
		resp.Scores = make(map[string]float64, len(p.Scores))
		for l, s := range p.Scores {
			resp.Scores[l.String()] = s
		}
	}
	if served != nil {
		resp.ModelKey = served.Artifact.Key
	}
	return resp
}

func ToModelResponse(m *domain.ServingModel) ModelResponse {
	labels := m.Model.Labels()
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.String())
	}
	return ModelResponse{
		Bucket:       m.Artifact.Bucket,
		Key:          m.Artifact.Key,
		Size:         m.Artifact.Size,
		LastModified: m.Artifact.LastModified,
		LoadedAt:     m.LoadedAt,
		Labels:       names,
	}
}
