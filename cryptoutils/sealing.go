package cryptoutils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealVersion = 1
	sealSaltLen = 16

	// Argon2id parameters: time=1, memory=64*1024, threads=4, keyLen=32
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	ErrSealedDataTooShort   = errors.New("sealed data too short")
	ErrSealedDataVersion    = errors.New("unsupported sealed data version")
	ErrSealedDataAuthFailed = errors.New("sealed data authentication failed")
)

// DeriveSealingKey derives a symmetric key from a passphrase and salt using
// Argon2id. The same inputs always produce the same key.
func DeriveSealingKey(passphrase []byte, salt []byte) []byte {
	s := append([]byte("DEVICE-KEY-SEAL-"), salt...)
	return argon2.IDKey(passphrase, s, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// Seal encrypts plaintext under a passphrase-derived key with
// XChaCha20-Poly1305. aad is authenticated but not stored.
//
// Format: [version (1 byte)][salt (16 bytes)][nonce (24 bytes)][ciphertext]
func Seal(passphrase, plaintext, aad []byte) ([]byte, error) {
	header := make([]byte, 1+sealSaltLen+chacha20poly1305.NonceSizeX)
	header[0] = sealVersion
	if _, err := io.ReadFull(rand.Reader, header[1:]); err != nil {
		return nil, fmt.Errorf("failed to generate salt and nonce: %w", err)
	}
	salt := header[1 : 1+sealSaltLen]
	nonce := header[1+sealSaltLen:]

	aead, err := chacha20poly1305.NewX(DeriveSealingKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return aead.Seal(header, nonce, plaintext, aad), nil
}

// Open reverses Seal.
func Open(passphrase, sealed, aad []byte) ([]byte, error) {
	headerLen := 1 + sealSaltLen + chacha20poly1305.NonceSizeX
	if len(sealed) < headerLen+chacha20poly1305.Overhead {
		return nil, ErrSealedDataTooShort
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("%w: %d", ErrSealedDataVersion, sealed[0])
	}
	salt := sealed[1 : 1+sealSaltLen]
	nonce := sealed[1+sealSaltLen : headerLen]

	aead, err := chacha20poly1305.NewX(DeriveSealingKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, sealed[headerLen:], aad)
	if err != nil {
		return nil, ErrSealedDataAuthFailed
	}
	return plaintext, nil
}
