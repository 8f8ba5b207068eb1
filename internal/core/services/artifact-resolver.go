package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

// ArtifactResolverService finds the current artifact by scanning the store.
// The scan touches every object of every candidate bucket; a manifest object
// would be needed once buckets grow large.
type ArtifactResolverService struct {
	store ports.ObjectStore
}

func NewArtifactResolverService(store ports.ObjectStore) *ArtifactResolverService {
	return &ArtifactResolverService{store: store}
}

// ResolveLatest returns the most recently modified object whose key ends with
// extension. With no buckets given every bucket is scanned. Equal timestamps
// are broken by the greatest key, then the greatest bucket name.
func (s *ArtifactResolverService) ResolveLatest(ctx context.Context, buckets []string, extension string) (*domain.Artifact, error) {
	if extension == "" {
		return nil, fmt.Errorf("%w: artifact extension is required", domain.ErrInvalidInput)
	}

	if len(buckets) == 0 {
		all, err := s.store.ListBuckets(ctx)
		if err != nil {
			return nil, storageErr("list buckets", err)
		}
		buckets = all
	}

	var latest *domain.Artifact
	for _, bucket := range buckets {
		objects, err := s.store.ListObjects(ctx, bucket)
		if err != nil {
			return nil, storageErr("list "+bucket, err)
		}
		for _, obj := range objects {
			if !strings.HasSuffix(obj.Key, extension) {
				continue
			}
			candidate := &domain.Artifact{StoredObject: obj}
			candidate.Bucket = bucket
			if candidate.NewerThan(latest) {
				latest = candidate
			}
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("%w: no %q object in %v", domain.ErrNoArtifactFound, extension, buckets)
	}

	log.WithFields(log.Fields{
		"bucket":        latest.Bucket,
		"key":           latest.Key,
		"last_modified": latest.LastModified,
	}).Debug("latest artifact resolved")
	return latest, nil
}
