package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

type memObject struct {
	meta domain.StoredObject
	data []byte
}

// MemoryStore is an in-memory ObjectStore. Setting Unavailable makes every
// call fail with domain.ErrStorageUnavailable.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string]memObject

	// Now stamps LastModified on writes.
	Now         func() time.Time
	Unavailable atomic.Bool
	// FailPut makes Put/PutFile fail for the listed keys.
	FailPut     map[string]bool

	Stats       atomic.Int64
	Puts        atomic.Int64
	Gets        atomic.Int64
	Lists       atomic.Int64
	MakeBuckets atomic.Int64
}

var _ ports.ObjectStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string]memObject),
		Now:     time.Now,
	}
}

// Seed stores an object with an explicit LastModified.
func (s *MemoryStore) Seed(bucket, key string, data []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(bucket)
	b[key] = memObject{
		meta: domain.StoredObject{Bucket: bucket, Key: key, Size: int64(len(data)), LastModified: modified},
		data: append([]byte(nil), data...),
	}
}

// Object returns a stored object's bytes and metadata.
func (s *MemoryStore) Object(bucket, key string) ([]byte, domain.StoredObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.buckets[bucket][key]
	return obj.data, obj.meta, ok
}

func (s *MemoryStore) bucket(name string) map[string]memObject {
	b, ok := s.buckets[name]
	if !ok {
		b = make(map[string]memObject)
		s.buckets[name] = b
	}
	return b
}

func (s *MemoryStore) check() error {
	if s.Unavailable.Load() {
		return fmt.Errorf("%w: connection refused", domain.ErrStorageUnavailable)
	}
	return nil
}

func (s *MemoryStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[bucket]
	return ok, nil
}

func (s *MemoryStore) MakeBucket(_ context.Context, bucket string) error {
	if err := s.check(); err != nil {
		return err
	}
	s.MakeBuckets.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(bucket)
	return nil
}

func (s *MemoryStore) ListBuckets(context.Context) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) ListObjects(_ context.Context, bucket string) ([]domain.StoredObject, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.Lists.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StoredObject
	for _, obj := range s.buckets[bucket] {
		out = append(out, obj.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Stat(_ context.Context, bucket, key string) (*domain.StoredObject, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.Stats.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrObjectNotFound, bucket, key)
	}
	meta := obj.meta
	return &meta, nil
}

func (s *MemoryStore) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, opts ports.PutOptions) (*domain.StoredObject, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.FailPut[key] {
		return nil, fmt.Errorf("%w: put %s rejected", domain.ErrStorageUnavailable, key)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.Puts.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: no such bucket %s", domain.ErrStorageUnavailable, bucket)
	}
	meta := domain.StoredObject{
		Bucket:       bucket,
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		LastModified: s.Now(),
	}
	b[key] = memObject{meta: meta, data: data}
	return &meta, nil
}

func (s *MemoryStore) PutFile(ctx context.Context, bucket, key, path string, opts ports.PutOptions) (*domain.StoredObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Put(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts)
}

func (s *MemoryStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.Gets.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrObjectNotFound, bucket, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}
