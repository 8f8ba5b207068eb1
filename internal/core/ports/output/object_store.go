package ports

import (
	"context"
	"io"

	"plant-classifier-pipeline/internal/core/domain"
)

type PutOptions struct {
	ContentType string
}

// ObjectStore is the bucket/key store used for mirrored sources and artifacts.
// Stat and Get return domain.ErrObjectNotFound for missing keys; every other
// failure is treated as the store being unavailable.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string) error
	ListBuckets(ctx context.Context) ([]string, error)
	// ListObjects walks the bucket recursively.
	ListObjects(ctx context.Context, bucket string) ([]domain.StoredObject, error)
	Stat(ctx context.Context, bucket, key string) (*domain.StoredObject, error)
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (*domain.StoredObject, error)
	PutFile(ctx context.Context, bucket, key, path string, opts PutOptions) (*domain.StoredObject, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
