package mocks

import (
	"context"

	"github.com/dukex/area/pkg/api"
	"github.com/dukex/area/pkg/editor"
	"github.com/dukex/area/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockOpener is a mock implementation of editor.Opener interface.
type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(ctx context.Context, url string) error {
	args := m.Called(ctx, url)

	return args.Error(0)
}

// MockNotifier is a mock implementation of editor.Notifier interface.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, level editor.Level, message string) {
	m.Called(ctx, level, message)
}

// MockCache is a mock implementation of catalog.Cache interface.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, slug string) (*models.ServiceDefinition, bool, error) {
	args := m.Called(ctx, slug)

	definition, _ := args.Get(0).(*models.ServiceDefinition)

	return definition, args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, slug string, definition *models.ServiceDefinition) error {
	args := m.Called(ctx, slug, definition)

	return args.Error(0)
}

// MockAreaService is a mock implementation of manager.AreaService interface.
type MockAreaService struct {
	mock.Mock
}

func (m *MockAreaService) List(ctx context.Context, opts api.ListAreasOptions) ([]*models.Area, error) {
	args := m.Called(ctx, opts)

	areas, _ := args.Get(0).([]*models.Area)

	return areas, args.Error(1)
}

func (m *MockAreaService) ChangeStatus(ctx context.Context, id int64, status models.AreaStatus) (*models.Area, error) {
	args := m.Called(ctx, id, status)

	area, _ := args.Get(0).(*models.Area)

	return area, args.Error(1)
}

func (m *MockAreaService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}
