package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"plant-classifier-pipeline/internal/config"
	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

type minioStore struct {
	client *minio.Client
	region string
}

// NewMinioStore creates an ObjectStore for an S3-compatible endpoint. The
// endpoint may carry an http:// or https:// scheme, which then decides TLS.
func NewMinioStore(cfg *config.ObjectStoreConfig) (ports.ObjectStore, error) {
	host, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	log.WithFields(log.Fields{
		"endpoint": host,
		"secure":   secure,
	}).Debug("object store client created")
	return &minioStore{client: client, region: cfg.Region}, nil
}

func (s *minioStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (s *minioStore) MakeBucket(ctx context.Context, bucket string) error {
	err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return mapError(err)
	}
	return nil
}

func (s *minioStore) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

// ListObjects treats a missing bucket as empty.
func (s *minioStore) ListObjects(ctx context.Context, bucket string) ([]domain.StoredObject, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []domain.StoredObject
	for info := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			if minio.ToErrorResponse(info.Err).Code == "NoSuchBucket" {
				return nil, nil
			}
			return nil, mapError(info.Err)
		}
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		objects = append(objects, toStoredObject(bucket, info))
	}
	return objects, nil
}

func (s *minioStore) Stat(ctx context.Context, bucket, key string) (*domain.StoredObject, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}
	obj := toStoredObject(bucket, info)
	return &obj, nil
}

func (s *minioStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, opts ports.PutOptions) (*domain.StoredObject, error) {
	info, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: opts.ContentType})
	if err != nil {
		return nil, mapError(err)
	}
	return uploadToStoredObject(info, opts.ContentType), nil
}

func (s *minioStore) PutFile(ctx context.Context, bucket, key, path string, opts ports.PutOptions) (*domain.StoredObject, error) {
	info, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{ContentType: opts.ContentType})
	if err != nil {
		return nil, mapError(err)
	}
	return uploadToStoredObject(info, opts.ContentType), nil
}

// Get checks the object up front; minio defers missing-key errors to the
// first Read otherwise.
func (s *minioStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(err)
	}
	return obj, nil
}

func toStoredObject(bucket string, info minio.ObjectInfo) domain.StoredObject {
	return domain.StoredObject{
		Bucket:       bucket,
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}
}

func uploadToStoredObject(info minio.UploadInfo, contentType string) *domain.StoredObject {
	return &domain.StoredObject{
		Bucket:       info.Bucket,
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  contentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}
}

// mapError translates missing-key responses to domain.ErrObjectNotFound and
// everything else to domain.ErrStorageUnavailable.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" || (resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket") {
		return fmt.Errorf("%w: %s/%s", domain.ErrObjectNotFound, resp.BucketName, resp.Key)
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

func parseEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if endpoint == "" {
		return "", false, errors.New("object store endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("invalid object store endpoint %q", endpoint)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported object store scheme %q", u.Scheme)
	}
}
