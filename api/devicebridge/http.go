package devicebridge

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ruteri/device-key-registration/api"
	"github.com/ruteri/device-key-registration/interfaces"
)

// RequestIDHeader carries the id assigned to each bridge call.
const RequestIDHeader = "X-Request-Id"

// RegisterRoutes mounts the bridge as POST /keys/{method}.
func (b *Bridge) RegisterRoutes(r chi.Router) {
	r.Post("/keys/{method}", b.HandleMethod)
}

// HandleMethod dispatches one method call. Arguments are a JSON object;
// the result is api.BridgeResult or api.BridgeError.
func (b *Bridge) HandleMethod(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	w.Header().Set(RequestIDHeader, requestID)

	method := chi.URLParam(r, "method")
	log := b.log.With(slog.String("requestID", requestID), slog.String("method", method))

	var (
		result any
		err    error
	)
	switch method {
	case MethodGetPublicKey:
		result, err = b.GetPublicKey(r.Context())
	case MethodDecryptSecret:
		var req api.DecryptSecretRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
			err = methodError(CodeMissingParam, "encryptedSecret parameter required", decodeErr)
			break
		}
		result, err = b.DecryptSecret(r.Context(), req.EncryptedSecret)
	case MethodDeleteKey:
		result, err = b.DeleteKey(r.Context())
	default:
		err = &MethodError{Code: CodeNotImplemented, Message: "method " + method + " not implemented"}
	}

	if err != nil {
		var mErr *MethodError
		if !errors.As(err, &mErr) {
			mErr = methodError(CodeKeyError, "Unexpected error", err)
		}
		log.Warn("Bridge call failed", slog.String("code", mErr.Code), "err", err)
		writeJSON(w, statusFor(mErr), api.BridgeError{Code: mErr.Code, Message: mErr.Message})
		return
	}

	log.Debug("Bridge call succeeded")
	writeJSON(w, http.StatusOK, api.BridgeResult{Result: result})
}

func statusFor(err *MethodError) int {
	switch {
	case err.Code == CodeMissingParam:
		return http.StatusBadRequest
	case err.Code == CodeNotImplemented:
		return http.StatusNotImplemented
	case interfaces.IsAuthenticationAbort(err):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrKeyNotFound), keyVanished(err):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrAllSchemesFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// keyVanished reports a negotiation in which every attempt found no key,
// as when the key is deleted while the secret is being decrypted.
func keyVanished(err error) bool {
	var negErr *interfaces.NegotiationError
	if !errors.As(err, &negErr) || len(negErr.Attempts) == 0 {
		return false
	}
	for _, a := range negErr.Attempts {
		if !errors.Is(a.Err, interfaces.ErrKeyNotFound) {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
