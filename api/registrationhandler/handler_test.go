package registrationhandler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/device-key-registration/api"
	"github.com/ruteri/device-key-registration/cryptoutils"
	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/ruteri/device-key-registration/registration"
	"github.com/ruteri/device-key-registration/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secret = "Super sensivel key"

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func deviceKey() *rsa.PrivateKey {
	keyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return testKey
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(t *testing.T, cfg registration.Config, source interfaces.SecretSource) http.Handler {
	t.Helper()
	service, err := registration.New(cfg, testLogger())
	require.NoError(t, err)

	mux := chi.NewRouter()
	NewHandler(service, source, testLogger()).RegisterRoutes(mux)
	return mux
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload)))
	return rec
}

func wireKeys(t *testing.T) map[string]string {
	t.Helper()
	pub := &deviceKey().PublicKey
	android, err := cryptoutils.ExportAndroidDER(pub)
	require.NoError(t, err)
	return map[string]string{
		"android": cryptoutils.WireString(android),
		"ios":     cryptoutils.WireString(cryptoutils.ExportIOSRaw(pub)),
	}
}

func TestHandleRegister(t *testing.T) {
	h := newRouter(t, registration.Config{}, storage.StaticSecret(secret))

	for platform, wire := range wireKeys(t) {
		t.Run(platform, func(t *testing.T) {
			rec := post(t, h, "/register", api.RegisterRequest{PublicKeyBase64: wire})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp api.RegisterResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Nil(t, resp.Debug)

			ciphertext, err := base64.StdEncoding.DecodeString(resp.EncryptedBase64)
			require.NoError(t, err)
			plaintext, err := cryptoutils.DecryptWithScheme(deviceKey(), ciphertext, interfaces.PKCS1v1_5)
			require.NoError(t, err)
			require.Equal(t, secret, string(plaintext))
		})
	}
}

func TestHandleRegisterBadRequests(t *testing.T) {
	h := newRouter(t, registration.Config{}, storage.StaticSecret(secret))

	tests := []struct {
		name  string
		body  any
		error string
	}{
		{"missing key", map[string]string{}, "publicKeyBase64 required"},
		{"blank key", api.RegisterRequest{PublicKeyBase64: "   "}, "publicKeyBase64 required"},
		{"invalid base64", api.RegisterRequest{PublicKeyBase64: "%%%"}, "invalid public key"},
		{"not a key", api.RegisterRequest{PublicKeyBase64: base64.StdEncoding.EncodeToString([]byte("hello"))}, "invalid public key"},
		{"bad ios key", api.RegisterRequest{PublicKeyBase64: interfaces.IOSRawWirePrefix + "AQID"}, "invalid public key"},
		{"invalid json", "{", "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/register", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.error, resp.Error)
		})
	}
}

func TestHandleRegisterSecretUnavailable(t *testing.T) {
	backend := &storage.MockStorageBackend{BackendName: "mock"}
	backend.On("Fetch", mock.Anything, "device-secret", interfaces.SecretType).Return(nil, interfaces.ErrContentNotFound)
	h := newRouter(t, registration.Config{}, storage.SecretRef{Backend: backend, Name: "device-secret"})

	rec := post(t, h, "/register", api.RegisterRequest{PublicKeyBase64: wireKeys(t)["android"]})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "server error", resp.Error)
	assert.Contains(t, resp.Detail, "device-secret")
}

func TestHandleRegisterInvalidKeyBeforeSecret(t *testing.T) {
	backend := &storage.MockStorageBackend{BackendName: "mock"}
	backend.On("Fetch", mock.Anything, "device-secret", interfaces.SecretType).Return(nil, errors.New("vault sealed"))
	h := newRouter(t, registration.Config{Diagnostics: true}, storage.SecretRef{Backend: backend, Name: "device-secret"})

	notAKey := api.RegisterRequest{PublicKeyBase64: base64.StdEncoding.EncodeToString([]byte("hello"))}
	for _, path := range []string{"/register", "/test-configs"} {
		rec := post(t, h, path, notAKey)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)

		var resp api.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid public key", resp.Error)
	}
	backend.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleRegisterEncryptionFailure(t *testing.T) {
	h := newRouter(t, registration.Config{}, storage.StaticSecret(bytes.Repeat([]byte("x"), 300)))

	rec := post(t, h, "/register", api.RegisterRequest{PublicKeyBase64: wireKeys(t)["android"]})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDiagnosticsDisabled(t *testing.T) {
	h := newRouter(t, registration.Config{}, storage.StaticSecret(secret))

	assert.Equal(t, http.StatusNotFound, post(t, h, "/get-secret", "{}").Code)
	assert.Equal(t, http.StatusNotFound, post(t, h, "/test-configs", api.RegisterRequest{PublicKeyBase64: wireKeys(t)["android"]}).Code)
}

func TestDiagnosticsEnabled(t *testing.T) {
	h := newRouter(t, registration.Config{Diagnostics: true}, storage.StaticSecret(secret))
	wire := wireKeys(t)["ios"]

	rec := post(t, h, "/register", api.RegisterRequest{PublicKeyBase64: wire})
	require.Equal(t, http.StatusOK, rec.Code)
	var reg api.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	require.NotNil(t, reg.Debug)
	assert.Equal(t, "PKCS1", reg.Debug.Mode)
	assert.Len(t, reg.Debug.AllConfigs, len(registration.DiagnosticConfigs))
	assert.Equal(t, len(secret), reg.Debug.SecretLength)
	assert.Equal(t, len(wire), reg.Debug.PublicKeyLength)

	rec = post(t, h, "/test-configs", api.RegisterRequest{PublicKeyBase64: wire})
	require.Equal(t, http.StatusOK, rec.Code)
	var configs api.TestConfigsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &configs))
	assert.Equal(t, secret, configs.Secret)
	require.Len(t, configs.Configs, len(registration.DiagnosticConfigs))
	assert.Equal(t, "OAEP-SHA256-MGF1-SHA256", configs.Configs[0].Name)
	assert.Equal(t, 256, configs.Configs[0].Size)

	rec = post(t, h, "/get-secret", "{}")
	require.Equal(t, http.StatusOK, rec.Code)
	var got api.SecretResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, secret, got.Secret)
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(newRouter(t, registration.Config{Diagnostics: true}, storage.StaticSecret(secret)))
	defer srv.Close()

	client := NewClient(srv.URL+"/", srv.Client())
	ctx := context.Background()

	resp, err := client.Register(ctx, wireKeys(t)["android"])
	require.NoError(t, err)
	ciphertext, err := base64.StdEncoding.DecodeString(resp.EncryptedBase64)
	require.NoError(t, err)
	plaintext, err := cryptoutils.DecryptWithScheme(deviceKey(), ciphertext, interfaces.PKCS1v1_5)
	require.NoError(t, err)
	require.Equal(t, secret, string(plaintext))

	configs, err := client.TestConfigs(ctx, wireKeys(t)["android"])
	require.NoError(t, err)
	require.NotEmpty(t, configs.Configs)

	_, err = client.Register(ctx, "")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Equal(t, "publicKeyBase64 required", statusErr.Message)
}
