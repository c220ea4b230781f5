package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/device-key-registration/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRoutes struct{}

func (echoRoutes) RegisterRoutes(r chi.Router) {
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.Write(body)
	})
}

func newTestServer(t *testing.T, pprof bool) *Server {
	t.Helper()
	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
		EnablePprof:              pprof,
		GracefulShutdownDuration: time.Second,
		MaxBodyBytes:             16,
	}, echoRoutes{})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestHealthAndDrain(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	code, body := get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"alive"}`, body)

	code, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)

	_, body = get(t, h, "/drain")
	assert.JSONEq(t, `{"status":"draining"}`, body)
	assert.False(t, srv.IsReady())

	code, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, body = get(t, h, "/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, body)

	_, body = get(t, h, "/undrain")
	assert.JSONEq(t, `{"status":"ready"}`, body)
	_, body = get(t, h, "/undrain")
	assert.JSONEq(t, `{"status":"already ready"}`, body)
	assert.True(t, srv.IsReady())
}

func TestRegisteredRoutesAndBodyLimit(t *testing.T) {
	h := newTestServer(t, false).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64))))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPprofMount(t *testing.T) {
	code, _ := get(t, newTestServer(t, false).Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, newTestServer(t, true).Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
}
