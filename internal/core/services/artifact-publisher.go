package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

const artifactContentType = "application/octet-stream"

// ArtifactPublisherService uploads trained artifacts. Keys embed the publish
// time so earlier artifacts are kept and the resolver can pick the newest.
type ArtifactPublisherService struct {
	store ports.ObjectStore
}

func NewArtifactPublisherService(store ports.ObjectStore) *ArtifactPublisherService {
	return &ArtifactPublisherService{store: store}
}

func (s *ArtifactPublisherService) Publish(ctx context.Context, localPath, bucket, key string) (*domain.Artifact, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return nil, fmt.Errorf("%w: artifact key %q", domain.ErrInvalidInput, key)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, localPath)
		}
		return nil, fmt.Errorf("stat artifact %s: %w", localPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrArtifactNotFound, localPath)
	}

	if err := ensureBucket(ctx, s.store, bucket); err != nil {
		return nil, err
	}

	if _, err := s.store.PutFile(ctx, bucket, key, localPath, ports.PutOptions{ContentType: artifactContentType}); err != nil {
		return nil, storageErr(fmt.Sprintf("upload %s/%s", bucket, key), err)
	}

	obj, err := s.store.Stat(ctx, bucket, key)
	if err != nil {
		return nil, storageErr(fmt.Sprintf("stat %s/%s", bucket, key), err)
	}

	log.WithFields(log.Fields{
		"bucket": bucket,
		"key":    key,
		"size":   obj.Size,
	}).Info("artifact published")
	return &domain.Artifact{StoredObject: *obj}, nil
}

// VersionedKey builds {prefix}-{UTC timestamp}-{run id prefix}{extension}.
func VersionedKey(prefix, extension string, now time.Time, runID string) string {
	if prefix == "" {
		prefix = "model"
	}
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	runID = strings.ReplaceAll(runID, "-", "")
	if len(runID) > 8 {
		runID = runID[:8]
	}
	key := fmt.Sprintf("%s-%s", prefix, now.UTC().Format("20060102T150405Z"))
	if runID != "" {
		key += "-" + runID
	}
	return key + extension
}
