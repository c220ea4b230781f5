package registrationhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/device-key-registration/api"
	"github.com/ruteri/device-key-registration/cryptoutils"
	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/ruteri/device-key-registration/registration"
)

// Handler serves device registration requests. It encrypts the secret
// from its SecretSource under each registering device key.
type Handler struct {
	service *registration.Service
	secret  interfaces.SecretSource
	log     *slog.Logger
}

// NewHandler creates a registration handler.
func NewHandler(service *registration.Service, secret interfaces.SecretSource, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		secret:  secret,
		log:     log,
	}
}

// RegisterRoutes mounts:
//   - POST /register
//   - POST /test-configs and POST /get-secret, only with diagnostics enabled
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.HandleRegister)

	if h.service.DiagnosticsEnabled() {
		h.log.Warn("Diagnostic endpoints enabled, the protected secret is served in plaintext on /get-secret")
		r.Post("/test-configs", h.HandleTestConfigs)
		r.Post("/get-secret", h.HandleGetSecret)
	}
}

// HandleRegister encrypts the protected secret under the posted device key.
//
// Status codes:
//   - 200 OK: api.RegisterResponse
//   - 400 Bad Request: missing or invalid public key
//   - 500 Internal Server Error: secret unavailable or encryption failed
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	wire, key, ok := h.decodeKey(w, r)
	if !ok {
		return
	}

	secret, err := h.secret.Secret(r.Context())
	if err != nil {
		h.log.Error("Failed to load secret", "err", err)
		writeError(w, http.StatusInternalServerError, "server error", err.Error())
		return
	}

	reg, err := h.service.Register(r.Context(), key, secret)
	if errors.Is(err, interfaces.ErrInvalidKey) {
		h.log.Info("Rejected device key", "err", err, slog.String("format", key.Format().String()))
		writeError(w, http.StatusBadRequest, "invalid public key", err.Error())
		return
	}
	if err != nil {
		h.log.Error("Registration failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server error", err.Error())
		return
	}

	resp := api.RegisterResponse{EncryptedBase64: reg.EncryptedBase64()}
	if h.service.DiagnosticsEnabled() {
		resp.Debug = &api.RegisterDebug{
			Mode:            modeName(h.service.Scheme()),
			AllConfigs:      encryptedConfigs(reg.Diagnostics),
			SecretLength:    len(secret),
			PublicKeyLength: len(wire),
		}
	}

	writeJSON(w, h.log, http.StatusOK, resp)
}

// HandleTestConfigs returns the diagnostic encryption sweep for a key.
func (h *Handler) HandleTestConfigs(w http.ResponseWriter, r *http.Request) {
	_, key, ok := h.decodeKey(w, r)
	if !ok {
		return
	}

	secret, err := h.secret.Secret(r.Context())
	if err != nil {
		h.log.Error("Failed to load secret", "err", err)
		writeError(w, http.StatusInternalServerError, "server error", err.Error())
		return
	}

	results, err := h.service.TestConfigs(r.Context(), key, secret)
	if errors.Is(err, interfaces.ErrInvalidKey) {
		writeError(w, http.StatusBadRequest, "invalid public key", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error", err.Error())
		return
	}

	writeJSON(w, h.log, http.StatusOK, api.TestConfigsResponse{
		Configs: encryptedConfigs(results),
		Secret:  string(secret),
	})
}

// HandleGetSecret returns the secret in plaintext.
func (h *Handler) HandleGetSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.secret.Secret(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error", err.Error())
		return
	}
	writeJSON(w, h.log, http.StatusOK, api.SecretResponse{Secret: string(secret)})
}

// decodeKey writes a 400 response and returns false when the request does
// not carry a valid device key. It runs before the secret is loaded.
func (h *Handler) decodeKey(w http.ResponseWriter, r *http.Request) (string, interfaces.EncodedKey, bool) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return "", interfaces.EncodedKey{}, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return "", interfaces.EncodedKey{}, false
	}

	key, err := cryptoutils.ParseWireKey(req.PublicKeyBase64)
	if errors.Is(err, cryptoutils.ErrEmptyWireKey) {
		writeError(w, http.StatusBadRequest, "publicKeyBase64 required", "")
		return "", interfaces.EncodedKey{}, false
	}
	if err == nil {
		err = h.service.ValidateKey(key)
	}
	if err != nil {
		h.log.Info("Rejected device key", "err", err, slog.String("format", key.Format().String()))
		writeError(w, http.StatusBadRequest, "invalid public key", err.Error())
		return "", interfaces.EncodedKey{}, false
	}
	return req.PublicKeyBase64, key, true
}

func modeName(scheme interfaces.CipherScheme) string {
	for _, dc := range registration.DiagnosticConfigs {
		if dc.Scheme == scheme {
			return dc.Name
		}
	}
	return scheme.String()
}

func encryptedConfigs(in []registration.DiagnosticEncryption) []api.EncryptedConfig {
	out := make([]api.EncryptedConfig, 0, len(in))
	for _, d := range in {
		out = append(out, api.EncryptedConfig{Name: d.Name, EncryptedBase64: d.EncryptedBase64, Size: d.Size})
	}
	return out
}

func writeError(w http.ResponseWriter, code int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: msg, Detail: detail})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
