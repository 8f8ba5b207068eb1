package testutil

import (
	"context"
	"sync"
	"time"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

// MemorySourceRepo is an in-memory SourceRepository that enforces the unique
// storage key the way the database constraint does.
type MemorySourceRepo struct {
	mu      sync.Mutex
	records []*domain.SourceRecord
	byKey   map[string]bool

	// SkipExistsCheck makes Exists always report false so tests reach the
	// constraint path.
	SkipExistsCheck bool
	Schemas         int
}

var _ ports.SourceRepository = (*MemorySourceRepo)(nil)

func NewMemorySourceRepo() *MemorySourceRepo {
	return &MemorySourceRepo{byKey: make(map[string]bool)}
}

func (r *MemorySourceRepo) EnsureSchema(context.Context, domain.LabelSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Schemas++
	return nil
}

func (r *MemorySourceRepo) Exists(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SkipExistsCheck {
		return false, nil
	}
	return r.byKey[key], nil
}

func (r *MemorySourceRepo) Create(_ context.Context, record *domain.SourceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byKey[record.StorageKey] {
		return domain.ErrDuplicateSource
	}
	record.ID = int64(len(r.records) + 1)
	record.CreatedAt = time.Now()
	stored := *record
	r.records = append(r.records, &stored)
	r.byKey[record.StorageKey] = true
	return nil
}

func (r *MemorySourceRepo) List(context.Context) ([]*domain.SourceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.SourceRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

// Add inserts a record directly, bypassing validation.
func (r *MemorySourceRepo) Add(records ...*domain.SourceRecord) {
	for _, rec := range records {
		_ = r.Create(context.Background(), rec)
	}
}
