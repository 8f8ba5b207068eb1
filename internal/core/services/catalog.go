package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	log "github.com/sirupsen/logrus"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

// CatalogService registers source records. Registration is idempotent: a
// storage key that is already present yields domain.ErrDuplicateSource.
type CatalogService struct {
	repo      ports.SourceRepository
	labels    domain.LabelSet
	extension string

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewCatalogService(repo ports.SourceRepository, labels domain.LabelSet, extension string) *CatalogService {
	if extension == "" {
		extension = "jpg"
	}
	return &CatalogService{repo: repo, labels: labels, extension: extension}
}

// EnsureSchema creates the catalog table on first use. A failed attempt is
// retried on the next call.
func (s *CatalogService) EnsureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schemaReady {
		return nil
	}
	if err := s.repo.EnsureSchema(ctx, s.labels); err != nil {
		return storageErr("ensure catalog schema", err)
	}
	s.schemaReady = true
	return nil
}

func (s *CatalogService) RegisterSource(ctx context.Context, in domain.SourceInput) (*domain.SourceRecord, error) {
	label, err := s.labels.Parse(in.Label)
	if err != nil {
		return nil, err
	}
	if err := validateSourceURL(in.URL); err != nil {
		return nil, err
	}
	if in.Sequence < 0 {
		return nil, fmt.Errorf("%w: negative sequence %d", domain.ErrInvalidInput, in.Sequence)
	}

	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	key := domain.StorageKey(label, in.Sequence, s.extension)

	// The unique constraint on storage_key is what actually prevents
	// duplicates; this lookup only avoids a failing insert.
	exists, err := s.repo.Exists(ctx, key)
	if err != nil {
		return nil, storageErr("check source", err)
	}
	if exists {
		return nil, domain.ErrDuplicateSource
	}

	record := &domain.SourceRecord{
		SourceURL:  in.URL,
		StorageKey: key,
		Label:      label,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, domain.ErrDuplicateSource) {
			return nil, err
		}
		return nil, storageErr("create source", err)
	}
	return record, nil
}

// RegisterAll registers every input, counting duplicates as skips. Invalid
// inputs and storage failures stop the run.
func (s *CatalogService) RegisterAll(ctx context.Context, inputs []domain.SourceInput) (domain.RegisterReport, error) {
	var report domain.RegisterReport
	for _, in := range inputs {
		_, err := s.RegisterSource(ctx, in)
		switch {
		case err == nil:
			report.Inserted++
		case errors.Is(err, domain.ErrDuplicateSource):
			report.Skipped++
		default:
			return report, fmt.Errorf("register %s: %w", in.URL, err)
		}
	}

	log.WithFields(log.Fields{
		"inserted": report.Inserted,
		"skipped":  report.Skipped,
	}).Info("source registration finished")
	return report, nil
}

// SourceManifest is a document that expands into registration inputs.
type SourceManifest interface {
	Inputs() ([]domain.SourceInput, error)
}

// RegisterManifest expands m and registers every entry in order.
func (s *CatalogService) RegisterManifest(ctx context.Context, m SourceManifest) (domain.RegisterReport, error) {
	inputs, err := m.Inputs()
	if err != nil {
		return domain.RegisterReport{}, err
	}
	return s.RegisterAll(ctx, inputs)
}

func (s *CatalogService) List(ctx context.Context) ([]*domain.SourceRecord, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, storageErr("list sources", err)
	}
	return records, nil
}

func (s *CatalogService) Labels() domain.LabelSet {
	return s.labels
}

func validateSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: source url %q", domain.ErrInvalidInput, raw)
	}
	return nil
}

// storageErr marks err as a stage-level storage failure unless it already is.
// Context cancellation and deadlines pass through unmarked.
func storageErr(op string, err error) error {
	if errors.Is(err, domain.ErrStorageUnavailable) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
