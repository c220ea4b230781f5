package devicebridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/device-key-registration/cryptoutils"
	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/ruteri/device-key-registration/negotiator"
)

// Method channel error codes.
const (
	CodeKeyError       = "KEY_ERROR"
	CodeMissingParam   = "MISSING_PARAM"
	CodeDecryptError   = "DECRYPT_ERROR"
	CodeDeleteError    = "DELETE_ERROR"
	CodeNotImplemented = "NOT_IMPLEMENTED"
)

// Method names.
const (
	MethodGetPublicKey  = "getPublicKey"
	MethodDecryptSecret = "decryptSecret"
	MethodDeleteKey     = "deleteKey"
)

// MethodError is a failed bridge call. Err is the underlying cause.
type MethodError struct {
	Code    string
	Message string
	Err     error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *MethodError) Unwrap() error {
	return e.Err
}

func methodError(code, msg string, err error) *MethodError {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &MethodError{Code: code, Message: msg, Err: err}
}

// Bridge exposes the device key to the application layer.
type Bridge struct {
	provider   interfaces.KeyProvider
	negotiator *negotiator.Negotiator
	log        *slog.Logger
}

// New creates a bridge. neg should reject non-UTF-8 plaintexts since
// decryptSecret returns text.
func New(provider interfaces.KeyProvider, neg *negotiator.Negotiator, log *slog.Logger) *Bridge {
	return &Bridge{
		provider:   provider,
		negotiator: neg,
		log:        log,
	}
}

// GetPublicKey returns the device public key in wire form, generating the
// key pair on first use.
func (b *Bridge) GetPublicKey(ctx context.Context) (string, error) {
	handle, err := b.provider.EnsureKeyPair(ctx)
	if err != nil {
		return "", methodError(CodeKeyError, "Failed to get public key", err)
	}
	key, err := b.provider.ExportPublicKey(ctx, handle)
	if err != nil {
		return "", methodError(CodeKeyError, "Failed to get public key", err)
	}
	if key.Len() == 0 {
		return "", methodError(CodeKeyError, "Failed to get public key", errors.New("empty export"))
	}
	return cryptoutils.WireString(key), nil
}

// DecryptSecret recovers a secret registered for this device. It never
// generates a key pair.
func (b *Bridge) DecryptSecret(ctx context.Context, encryptedSecret string) (string, error) {
	encryptedSecret = strings.TrimSpace(encryptedSecret)
	if encryptedSecret == "" {
		return "", methodError(CodeMissingParam, "encryptedSecret parameter required", nil)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedSecret)
	if err != nil {
		return "", methodError(CodeDecryptError, "Invalid base64 ciphertext", err)
	}

	handle, err := b.provider.LookupKeyPair(ctx)
	if err != nil {
		return "", methodError(CodeDecryptError, "Failed to load device key", err)
	}

	result, err := b.negotiator.DecryptWithNegotiation(ctx, ciphertext, b.provider, handle)
	if err != nil {
		return "", methodError(CodeDecryptError, "Failed to decrypt secret", err)
	}

	b.log.Info("Decrypted secret",
		slog.String("scheme", result.Scheme.String()),
		slog.Int("attempts", len(result.Attempts)))
	return string(result.Plaintext), nil
}

// DeleteKey removes the device key pair. Deleting an absent key succeeds.
func (b *Bridge) DeleteKey(ctx context.Context) (bool, error) {
	if err := b.provider.DeleteKeyPair(ctx, interfaces.KeyHandle{}); err != nil {
		return false, methodError(CodeDeleteError, "Failed to delete key", err)
	}
	return true, nil
}
