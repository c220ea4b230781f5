package storage

import (
	"context"

	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockStorageBackend implements interfaces.StorageBackend for testing
type MockStorageBackend struct {
	mock.Mock
	BackendName string
}

func (m *MockStorageBackend) Fetch(ctx context.Context, name string, contentType interfaces.ContentType) ([]byte, error) {
	args := m.Called(ctx, name, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Store(ctx context.Context, name string, data []byte, contentType interfaces.ContentType) error {
	args := m.Called(ctx, name, data, contentType)
	return args.Error(0)
}

func (m *MockStorageBackend) Delete(ctx context.Context, name string, contentType interfaces.ContentType) error {
	args := m.Called(ctx, name, contentType)
	return args.Error(0)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.BackendName
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock:"
}
