package keyprovider

import (
	"context"

	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockKeyProvider is a mock implementation of interfaces.KeyProvider
type MockKeyProvider struct {
	mock.Mock
}

// NewMockKeyProvider creates a new mock key provider
func NewMockKeyProvider() *MockKeyProvider {
	return &MockKeyProvider{}
}

func (m *MockKeyProvider) EnsureKeyPair(ctx context.Context) (interfaces.KeyHandle, error) {
	args := m.Called(ctx)
	return args.Get(0).(interfaces.KeyHandle), args.Error(1)
}

func (m *MockKeyProvider) LookupKeyPair(ctx context.Context) (interfaces.KeyHandle, error) {
	args := m.Called(ctx)
	return args.Get(0).(interfaces.KeyHandle), args.Error(1)
}

func (m *MockKeyProvider) ExportPublicKey(ctx context.Context, handle interfaces.KeyHandle) (interfaces.EncodedKey, error) {
	args := m.Called(ctx, handle)
	return args.Get(0).(interfaces.EncodedKey), args.Error(1)
}

func (m *MockKeyProvider) Decrypt(ctx context.Context, handle interfaces.KeyHandle, ciphertext []byte, scheme interfaces.CipherScheme) ([]byte, error) {
	args := m.Called(ctx, handle, ciphertext, scheme)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyProvider) DeleteKeyPair(ctx context.Context, handle interfaces.KeyHandle) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

// MockPresenceChecker is a mock implementation of interfaces.PresenceChecker
type MockPresenceChecker struct {
	mock.Mock
}

func (m *MockPresenceChecker) ConfirmPresence(ctx context.Context, reason string) error {
	args := m.Called(ctx, reason)
	return args.Error(0)
}
