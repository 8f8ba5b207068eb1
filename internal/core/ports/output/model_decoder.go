package ports

import "plant-classifier-pipeline/internal/core/domain"

// ModelDecoder turns artifact bytes into an in-memory model.
type ModelDecoder interface {
	Decode(data []byte) (domain.Model, error)
}
