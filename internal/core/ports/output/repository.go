package ports

import (
	"context"

	"plant-classifier-pipeline/internal/core/domain"
)

type SourceRepository interface {
	// EnsureSchema creates the catalog table when it is missing.
	EnsureSchema(ctx context.Context, labels domain.LabelSet) error
	Exists(ctx context.Context, storageKey string) (bool, error)
	// Create inserts the record and fills its ID and CreatedAt. A storage key
	// collision returns domain.ErrDuplicateSource.
	Create(ctx context.Context, record *domain.SourceRecord) error
	List(ctx context.Context) ([]*domain.SourceRecord, error)
}
