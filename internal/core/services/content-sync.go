package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

const defaultSyncWorkers = 8

type syncOutcome int

const (
	syncSkipped syncOutcome = iota
	syncUploaded
	syncFailed
)

// ContentSyncService mirrors every catalog source into a bucket. Sources that
// are already present are skipped without contacting the origin, so a rerun
// only retries what failed before.
type ContentSyncService struct {
	catalog *CatalogService
	store   ports.ObjectStore
	fetcher ports.SourceFetcher
	workers int
}

func NewContentSyncService(catalog *CatalogService, store ports.ObjectStore, fetcher ports.SourceFetcher, workers int) *ContentSyncService {
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	return &ContentSyncService{catalog: catalog, store: store, fetcher: fetcher, workers: workers}
}

// Sync fails only when the catalog or the object store cannot be reached.
// Origin failures are counted in the report and the batch goes on.
func (s *ContentSyncService) Sync(ctx context.Context, bucket string) (domain.SyncReport, error) {
	var report domain.SyncReport

	if err := ensureBucket(ctx, s.store, bucket); err != nil {
		return report, err
	}

	records, err := s.catalog.List(ctx)
	if err != nil {
		return report, err
	}
	report.Total = len(records)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			outcome, err := s.syncOne(gctx, bucket, rec)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case syncSkipped:
				report.Skipped++
			case syncUploaded:
				report.Uploaded++
			case syncFailed:
				report.Failed++
				report.FailedKeys = append(report.FailedKeys, rec.StorageKey)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	sort.Strings(report.FailedKeys)

	log.WithFields(log.Fields{
		"bucket":   bucket,
		"total":    report.Total,
		"uploaded": report.Uploaded,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	}).Info("content sync finished")
	return report, nil
}

func (s *ContentSyncService) syncOne(ctx context.Context, bucket string, rec *domain.SourceRecord) (syncOutcome, error) {
	if err := ctx.Err(); err != nil {
		return syncFailed, err
	}

	_, err := s.store.Stat(ctx, bucket, rec.StorageKey)
	switch {
	case err == nil:
		return syncSkipped, nil
	case errors.Is(err, domain.ErrObjectNotFound):
	default:
		return syncFailed, storageErr(fmt.Sprintf("stat %s/%s", bucket, rec.StorageKey), err)
	}

	src, err := s.fetcher.Fetch(ctx, rec.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return syncFailed, ctx.Err()
		}
		log.WithFields(log.Fields{
			"source_id": rec.ID,
			"url":       rec.SourceURL,
			"key":       rec.StorageKey,
		}).WithError(err).Warn("source fetch failed, skipping")
		return syncFailed, nil
	}

	opts := ports.PutOptions{ContentType: sourceContentType(src.ContentType, rec.StorageKey)}
	if _, err := s.store.Put(ctx, bucket, rec.StorageKey, bytes.NewReader(src.Body), int64(len(src.Body)), opts); err != nil {
		return syncFailed, storageErr(fmt.Sprintf("put %s/%s", bucket, rec.StorageKey), err)
	}

	log.WithFields(log.Fields{
		"key":  rec.StorageKey,
		"size": len(src.Body),
	}).Debug("source mirrored")
	return syncUploaded, nil
}

// sourceContentType prefers the origin's image type and falls back to the
// type implied by the key extension.
func sourceContentType(origin, key string) string {
	if mt, _, err := mime.ParseMediaType(origin); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func ensureBucket(ctx context.Context, store ports.ObjectStore, bucket string) error {
	exists, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return storageErr("check bucket "+bucket, err)
	}
	if exists {
		return nil
	}
	if err := store.MakeBucket(ctx, bucket); err != nil {
		// Another stage may have created it in the meantime.
		if ok, checkErr := store.BucketExists(ctx, bucket); checkErr == nil && ok {
			return nil
		}
		return storageErr("create bucket "+bucket, err)
	}
	log.WithField("bucket", bucket).Info("bucket created")
	return nil
}
