package testutil

import (
	"context"
	"image"

	"github.com/stretchr/testify/mock"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

// MockSourceRepo is a mock of SourceRepository.
type MockSourceRepo struct {
	mock.Mock
}

func (m *MockSourceRepo) EnsureSchema(ctx context.Context, labels domain.LabelSet) error {
	args := m.Called(ctx, labels)
	return args.Error(0)
}

func (m *MockSourceRepo) Exists(ctx context.Context, storageKey string) (bool, error) {
	args := m.Called(ctx, storageKey)
	return args.Bool(0), args.Error(1)
}

func (m *MockSourceRepo) Create(ctx context.Context, record *domain.SourceRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSourceRepo) List(ctx context.Context) ([]*domain.SourceRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SourceRecord), args.Error(1)
}

// MockSourceFetcher is a mock of SourceFetcher.
type MockSourceFetcher struct {
	mock.Mock
}

func (m *MockSourceFetcher) Fetch(ctx context.Context, url string) (*ports.FetchedSource, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.FetchedSource), args.Error(1)
}

// MockModelDecoder is a mock of ModelDecoder.
type MockModelDecoder struct {
	mock.Mock
}

func (m *MockModelDecoder) Decode(data []byte) (domain.Model, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Model), args.Error(1)
}

// MockModel is a mock of domain.Model.
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Predict(img image.Image) (*domain.Prediction, error) {
	args := m.Called(img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Prediction), args.Error(1)
}

func (m *MockModel) Labels() []domain.Label {
	args := m.Called()
	return args.Get(0).([]domain.Label)
}

// MockTargetDiscovery is a mock of TargetDiscovery.
type MockTargetDiscovery struct {
	mock.Mock
}

func (m *MockTargetDiscovery) Targets(ctx context.Context) ([]ports.ReloadTarget, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.ReloadTarget), args.Error(1)
}

// MockReloadClient is a mock of ReloadClient.
type MockReloadClient struct {
	mock.Mock
}

func (m *MockReloadClient) Reload(ctx context.Context, target ports.ReloadTarget) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}
