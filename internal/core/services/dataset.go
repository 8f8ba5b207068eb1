package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

// DefaultDatasetExtensions are the file types the trainer can read.
var DefaultDatasetExtensions = []string{".jpg", ".jpeg", ".png"}

type HydrateOptions struct {
	// Clean removes the destination root before downloading.
	Clean bool
	// Extensions restricts which keys are materialized. Empty means all.
	Extensions []string
}

// DatasetService mirrors a bucket into a label-partitioned directory for an
// external trainer. The local copy is disposable.
type DatasetService struct {
	store   ports.ObjectStore
	labels  domain.LabelSet
	workers int
}

func NewDatasetService(store ports.ObjectStore, labels domain.LabelSet, workers int) *DatasetService {
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	return &DatasetService{store: store, labels: labels, workers: workers}
}

// Hydrate downloads every labeled object of bucket to root/{label}/... and
// returns the root. Existing files are overwritten.
func (s *DatasetService) Hydrate(ctx context.Context, bucket, root string, opts HydrateOptions) (domain.HydrateReport, error) {
	report := domain.HydrateReport{Root: root}

	if root == "" {
		return report, fmt.Errorf("%w: destination root is required", domain.ErrInvalidInput)
	}
	if opts.Clean {
		if err := os.RemoveAll(root); err != nil {
			return report, fmt.Errorf("clean %s: %w", root, err)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return report, fmt.Errorf("create %s: %w", root, err)
	}

	objects, err := s.store.ListObjects(ctx, bucket)
	if err != nil {
		return report, storageErr("list "+bucket, err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, obj := range objects {
		obj := obj
		dest, ok := s.localPath(root, obj.Key, opts.Extensions)
		if !ok {
			report.Ignored++
			log.WithField("key", obj.Key).Debug("object ignored for dataset")
			continue
		}
		g.Go(func() error {
			if err := s.download(gctx, bucket, obj.Key, dest); err != nil {
				return err
			}
			mu.Lock()
			report.Downloaded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	log.WithFields(log.Fields{
		"bucket":     bucket,
		"root":       root,
		"downloaded": report.Downloaded,
		"ignored":    report.Ignored,
	}).Info("dataset hydrated")
	return report, nil
}

// localPath maps an object key to root/{label}/{rest}. Keys outside the label
// set, with a filtered extension, or escaping the root are rejected.
func (s *DatasetService) localPath(root, key string, exts []string) (string, bool) {
	label, ok := domain.LabelFromKey(key)
	if !ok || !s.labels.Contains(label) {
		return "", false
	}
	if len(exts) > 0 && !hasExtension(key, exts) {
		return "", false
	}

	rest := path.Clean(key[len(label)+1:])
	if rest == "." || rest == ".." || strings.HasPrefix(rest, "../") || strings.HasPrefix(rest, "/") {
		return "", false
	}
	return filepath.Join(root, string(label), filepath.FromSlash(rest)), true
}

func (s *DatasetService) download(ctx context.Context, bucket, key, dest string) error {
	body, err := s.store.Get(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			// Deleted between list and get.
			log.WithField("key", key).Warn("object vanished during hydrate")
			return nil
		}
		return storageErr(fmt.Sprintf("get %s/%s", bucket, key), err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".hydrate-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return storageErr(fmt.Sprintf("read %s/%s", bucket, key), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("move %s into place: %w", dest, err)
	}
	return nil
}

func hasExtension(key string, exts []string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
