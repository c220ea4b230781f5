package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewFileBackend(dir, testLogger())
	require.NoError(t, err)
	require.True(t, backend.Available(ctx))
	require.Equal(t, "file://"+dir, backend.LocationURI())

	_, err = backend.Fetch(ctx, "device-secret", interfaces.SecretType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Store(ctx, "device-secret", []byte("v1"), interfaces.SecretType))
	require.NoError(t, backend.Store(ctx, "device-secret", []byte("v2"), interfaces.SecretType))

	data, err := backend.Fetch(ctx, "device-secret", interfaces.SecretType)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), data)

	// Content types are separate namespaces
	_, err = backend.Fetch(ctx, "device-secret", interfaces.DeviceKeyType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)

	_, err = os.Stat(filepath.Join(dir, "secrets", "device-secret"))
	require.NoError(t, err)

	require.NoError(t, backend.Delete(ctx, "device-secret", interfaces.SecretType))
	require.NoError(t, backend.Delete(ctx, "device-secret", interfaces.SecretType))
	_, err = backend.Fetch(ctx, "device-secret", interfaces.SecretType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.Error(t, backend.Store(ctx, "../escape", []byte("x"), interfaces.SecretType))
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend("test", testLogger())

	data := []byte("sealed")
	require.NoError(t, backend.Store(ctx, "identity", data, interfaces.DeviceKeyType))
	data[0] = 'X'

	got, err := backend.Fetch(ctx, "identity", interfaces.DeviceKeyType)
	require.NoError(t, err)
	require.Equal(t, []byte("sealed"), got)

	require.NoError(t, backend.Delete(ctx, "identity", interfaces.DeviceKeyType))
	_, err = backend.Fetch(ctx, "identity", interfaces.DeviceKeyType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)
	require.Equal(t, "memory://test", backend.LocationURI())
}

func TestEnvBackend(t *testing.T) {
	ctx := context.Background()
	t.Setenv("REGISTRATION_DEVICE_SECRET", "Super sensivel key")

	backend := NewEnvBackend("registration", testLogger())
	require.Equal(t, "REGISTRATION_DEVICE_SECRET", backend.VariableName("device-secret"))

	data, err := backend.Fetch(ctx, "device-secret", interfaces.SecretType)
	require.NoError(t, err)
	require.Equal(t, []byte("Super sensivel key"), data)

	_, err = backend.Fetch(ctx, "device-secret", interfaces.DeviceKeyType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)

	_, err = backend.Fetch(ctx, "missing", interfaces.SecretType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.ErrorIs(t, backend.Store(ctx, "x", nil, interfaces.SecretType), interfaces.ErrReadOnlyBackend)
	require.ErrorIs(t, backend.Delete(ctx, "x", interfaces.SecretType), interfaces.ErrReadOnlyBackend)
}

func TestSecretRef(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend("", testLogger())
	require.NoError(t, backend.Store(ctx, "device-secret", []byte("Super sensivel key\n"), interfaces.SecretType))
	require.NoError(t, backend.Store(ctx, "padded", []byte(" pad \t\r\n"), interfaces.SecretType))
	require.NoError(t, backend.Store(ctx, "blank", []byte("\n"), interfaces.SecretType))

	secret, err := SecretRef{Backend: backend, Name: "device-secret"}.Secret(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("Super sensivel key"), secret)

	secret, err = SecretRef{Backend: backend, Name: "padded"}.Secret(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte(" pad \t"), secret)

	_, err = SecretRef{Backend: backend, Name: "missing"}.Secret(ctx)
	require.ErrorIs(t, err, interfaces.ErrSecretUnavailable)

	_, err = SecretRef{Backend: backend, Name: "blank"}.Secret(ctx)
	require.ErrorIs(t, err, interfaces.ErrSecretUnavailable)

	_, err = StaticSecret(nil).Secret(ctx)
	require.ErrorIs(t, err, interfaces.ErrSecretUnavailable)
}

func TestStorageBackendFactory(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())
	dir := t.TempDir()

	tests := []struct {
		uri      string
		expected string
	}{
		{"file://" + dir, "*storage.FileBackend"},
		{"memory://keys", "*storage.MemoryBackend"},
		{"env://registration", "*storage.EnvBackend"},
		{"s3://AKIA:secret@bucket/prefix?region=eu-west-1&endpoint=http://localhost:9000&path_style=true", "*storage.S3Backend"},
		{"vault://token@vault.internal:8200/secret/registration?tls=false", "*storage.VaultBackend"},
		{"ipfs://localhost:5001/bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi?timeout=5s", "*storage.IPFSBackend"},
	}

	for _, tt := range tests {
		backend, err := factory.StorageBackendFor(interfaces.StorageBackendLocation(tt.uri))
		require.NoError(t, err, tt.uri)
		assert.Equal(t, tt.expected, fmt.Sprintf("%T", backend), tt.uri)
	}

	s3Backend, err := factory.StorageBackendFor("s3://AKIA:secret@bucket/prefix")
	require.NoError(t, err)
	require.NotContains(t, s3Backend.LocationURI(), "secret@")

	for _, bad := range []string{"ftp://host/x", "vault://host:8200", "ipfs://localhost:5001", "s3:///prefix", "ipfs://localhost/cid?timeout=soon"} {
		_, err := factory.StorageBackendFor(interfaces.StorageBackendLocation(bad))
		require.Error(t, err, bad)
	}

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{"ftp://x", "memory://a", "env://"})
	require.NoError(t, err)
	require.Equal(t, "multi:[memory://a,env://]", multi.LocationURI())

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{"ftp://x"})
	require.Error(t, err)
}

// fakeVault serves the subset of the Vault HTTP API the backend uses.
type fakeVault struct {
	mu     sync.Mutex
	kv     map[string]map[string]interface{}
	sealed bool
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/v1/sys/health" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"initialized": true, "sealed": f.sealed})
		return
	}

	const dataPrefix = "/v1/secret/data/"
	const metadataPrefix = "/v1/secret/metadata/"

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, dataPrefix):
		data, ok := f.kv[strings.TrimPrefix(r.URL.Path, dataPrefix)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"data": data}})
	case (r.Method == http.MethodPut || r.Method == http.MethodPost) && strings.HasPrefix(r.URL.Path, dataPrefix):
		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.kv[strings.TrimPrefix(r.URL.Path, dataPrefix)] = body.Data
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"version": 1}})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, metadataPrefix):
		delete(f.kv, strings.TrimPrefix(r.URL.Path, metadataPrefix))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestVaultBackend(t *testing.T) {
	ctx := context.Background()
	fake := &fakeVault{kv: map[string]map[string]interface{}{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	backend, err := NewVaultBackend(server.URL, "secret", "registration", "test-token", testLogger())
	require.NoError(t, err)
	require.True(t, backend.Available(ctx))

	_, err = backend.Fetch(ctx, "device-secret", interfaces.SecretType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)

	payload := []byte{0x00, 0xff, 'k', 'e', 'y'}
	require.NoError(t, backend.Store(ctx, "device-secret", payload, interfaces.SecretType))
	require.Contains(t, fake.kv, "registration/secrets/device-secret")

	got, err := backend.Fetch(ctx, "device-secret", interfaces.SecretType)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	require.NoError(t, backend.Delete(ctx, "device-secret", interfaces.SecretType))
	_, err = backend.Fetch(ctx, "device-secret", interfaces.SecretType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound)

	fake.mu.Lock()
	fake.sealed = true
	fake.mu.Unlock()
	require.False(t, backend.Available(ctx))
}
