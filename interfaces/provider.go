package interfaces

import (
	"context"
	"crypto/rsa"
)

// KeyProvider is the capability the core requires from the platform key store.
// Implementations own the private key; the core only ever sees handles.
type KeyProvider interface {
	// EnsureKeyPair returns the existing identity key or generates one.
	// Calling it again never regenerates.
	EnsureKeyPair(ctx context.Context) (KeyHandle, error)

	// LookupKeyPair returns the existing identity key, or ErrKeyNotFound.
	LookupKeyPair(ctx context.Context) (KeyHandle, error)

	// ExportPublicKey returns the public half in the platform's native format.
	ExportPublicKey(ctx context.Context, handle KeyHandle) (EncodedKey, error)

	// Decrypt performs a single decryption with one scheme. It may block on
	// a user-presence check; ctx bounds that wait.
	Decrypt(ctx context.Context, handle KeyHandle, ciphertext []byte, scheme CipherScheme) ([]byte, error)

	// DeleteKeyPair removes the key pair. Deleting an absent key succeeds.
	DeleteKeyPair(ctx context.Context, handle KeyHandle) error
}

// Keystore is the platform hook a Provider is built on: it stores private
// keys by alias and performs private-key operations. Hardware keystores are
// supplied by the platform layer; the software keystore lives in-core.
type Keystore interface {
	// Available reports whether the keystore can be used at all.
	Available(ctx context.Context) bool

	// Contains reports whether a key pair exists under alias.
	Contains(ctx context.Context, alias string) (bool, error)

	// Generate creates a new RSA key pair under alias.
	Generate(ctx context.Context, alias string, bits int) error

	// PublicKey returns the public key stored under alias.
	PublicKey(ctx context.Context, alias string) (*rsa.PublicKey, error)

	// Decrypt decrypts ciphertext with the private key under alias.
	Decrypt(ctx context.Context, alias string, ciphertext []byte, scheme CipherScheme) ([]byte, error)

	// Delete removes the key pair under alias. Absent keys are not an error.
	Delete(ctx context.Context, alias string) error
}

// PresenceChecker confirms user presence (biometric or equivalent) before a
// private key operation. It returns ErrAuthenticationCancelled when the user
// declines and must honour ctx cancellation.
type PresenceChecker interface {
	ConfirmPresence(ctx context.Context, reason string) error
}
