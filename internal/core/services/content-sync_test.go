package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
	"plant-classifier-pipeline/internal/testutil"
)

// countingFetcher serves bodies from a map and counts calls per URL.
type countingFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newCountingFetcher(bodies map[string]string) *countingFetcher {
	return &countingFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (*ports.FetchedSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s returned 404 Not Found", domain.ErrTransientFetch, url)
	}
	return &ports.FetchedSource{Body: []byte(body), ContentType: "image/jpeg; charset=binary"}, nil
}

func (f *countingFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func seedCatalog(t *testing.T, n int) (*CatalogService, map[string]string) {
	t.Helper()
	catalog := NewCatalogService(testutil.NewMemorySourceRepo(), testLabels, "jpg")
	bodies := make(map[string]string)
	for i := 0; i < n; i++ {
		label := "dandelion"
		if i%2 == 1 {
			label = "grass"
		}
		url := fmt.Sprintf("https://origin.example.com/%s/%d.jpg", label, i)
		_, err := catalog.RegisterSource(context.Background(), domain.SourceInput{URL: url, Label: label, Sequence: i})
		require.NoError(t, err)
		bodies[url] = "image-" + url
	}
	return catalog, bodies
}

func TestContentSync_UploadsAndCreatesBucket(t *testing.T) {
	catalog, bodies := seedCatalog(t, 6)
	store := testutil.NewMemoryStore()
	fetcher := newCountingFetcher(bodies)
	svc := NewContentSyncService(catalog, store, fetcher, 3)

	report, err := svc.Sync(context.Background(), "images")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncReport{Total: 6, Uploaded: 6}, report)
	assert.EqualValues(t, 1, store.MakeBuckets.Load())

	data, meta, ok := store.Object("images", "grass/00000001.jpg")
	require.True(t, ok)
	assert.Equal(t, "image-https://origin.example.com/grass/1.jpg", string(data))
	assert.Equal(t, "image/jpeg", meta.ContentType)
}

func TestContentSync_SecondRunFetchesNothing(t *testing.T) {
	catalog, bodies := seedCatalog(t, 10)
	store := testutil.NewMemoryStore()
	fetcher := newCountingFetcher(bodies)
	svc := NewContentSyncService(catalog, store, fetcher, 4)

	_, err := svc.Sync(context.Background(), "images")
	require.NoError(t, err)
	assert.Equal(t, 10, fetcher.total())

	report, err := svc.Sync(context.Background(), "images")
	require.NoError(t, err)
	assert.Equal(t, 10, fetcher.total(), "mirrored sources must not be fetched again")
	assert.Equal(t, domain.SyncReport{Total: 10, Skipped: 10}, report)
	assert.EqualValues(t, 1, store.MakeBuckets.Load())
}

func TestContentSync_FetchFailuresAreNotFatal(t *testing.T) {
	catalog, bodies := seedCatalog(t, 4)
	delete(bodies, "https://origin.example.com/grass/3.jpg")
	store := testutil.NewMemoryStore()
	fetcher := newCountingFetcher(bodies)
	svc := NewContentSyncService(catalog, store, fetcher, 2)

	report, err := svc.Sync(context.Background(), "images")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Uploaded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"grass/00000003.jpg"}, report.FailedKeys)

	// The origin recovers; only the failed item is fetched on the rerun.
	bodies["https://origin.example.com/grass/3.jpg"] = "late"
	report, err = svc.Sync(context.Background(), "images")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncReport{Total: 4, Uploaded: 1, Skipped: 3}, report)
	assert.Equal(t, 2, fetcher.calls["https://origin.example.com/grass/3.jpg"])
	assert.Equal(t, 1, fetcher.calls["https://origin.example.com/dandelion/0.jpg"])
}

func TestContentSync_StoreUnavailableAbortsStage(t *testing.T) {
	catalog, bodies := seedCatalog(t, 2)
	store := testutil.NewMemoryStore()
	store.Unavailable.Store(true)
	svc := NewContentSyncService(catalog, store, newCountingFetcher(bodies), 2)

	_, err := svc.Sync(context.Background(), "images")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestContentSync_PutFailureAbortsStage(t *testing.T) {
	catalog, bodies := seedCatalog(t, 2)
	store := testutil.NewMemoryStore()
	store.FailPut = map[string]bool{"dandelion/00000000.jpg": true}
	svc := NewContentSyncService(catalog, store, newCountingFetcher(bodies), 1)

	_, err := svc.Sync(context.Background(), "images")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.True(t, strings.Contains(err.Error(), "dandelion/00000000.jpg"))
}

// cancellingStore cancels the run on the first Stat, the way an operator
// interrupt lands mid-stage.
type cancellingStore struct {
	*testutil.MemoryStore
	cancel context.CancelFunc
}

func (s *cancellingStore) Stat(context.Context, string, string) (*domain.StoredObject, error) {
	s.cancel()
	return nil, fmt.Errorf("stat object: %w", context.Canceled)
}

func TestContentSync_CancelIsNotStorageFailure(t *testing.T) {
	catalog, bodies := seedCatalog(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancellingStore{MemoryStore: testutil.NewMemoryStore(), cancel: cancel}
	fetcher := newCountingFetcher(bodies)
	svc := NewContentSyncService(catalog, store, fetcher, 1)

	_, err := svc.Sync(ctx, "images")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Zero(t, fetcher.total())
}

func TestContentSync_EmptyCatalog(t *testing.T) {
	catalog := NewCatalogService(testutil.NewMemorySourceRepo(), testLabels, "jpg")
	store := testutil.NewMemoryStore()
	svc := NewContentSyncService(catalog, store, newCountingFetcher(nil), 0)

	report, err := svc.Sync(context.Background(), "images")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncReport{}, report)

	exists, _ := store.BucketExists(context.Background(), "images")
	assert.True(t, exists)
}

func TestSourceContentType(t *testing.T) {
	assert.Equal(t, "image/png", sourceContentType("image/png", "grass/1.jpg"))
	assert.Equal(t, "image/jpeg", sourceContentType("text/html; charset=utf-8", "grass/1.jpg"))
	assert.Equal(t, "image/jpeg", sourceContentType("", "grass/1.jpg"))
	assert.Equal(t, "application/octet-stream", sourceContentType("", "grass/1.unknownext"))
}
