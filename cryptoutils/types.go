package cryptoutils

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/ruteri/device-key-registration/interfaces"
)

// PublicKeyPEM represents an RSA SubjectPublicKeyInfo in PEM format.
type PublicKeyPEM string

// NewPublicKeyPEM creates a PublicKeyPEM from PEM-encoded data with validation.
func NewPublicKeyPEM(data string) (PublicKeyPEM, error) {
	if _, err := ParseRSAPublicKeyPEM(data); err != nil {
		return "", err
	}
	return PublicKeyPEM(data), nil
}

// Validate checks if the PEM is properly formed.
func (p PublicKeyPEM) Validate() error {
	_, err := NewPublicKeyPEM(string(p))
	return err
}

// RSAPublicKey returns the parsed RSA public key.
func (p PublicKeyPEM) RSAPublicKey() (*rsa.PublicKey, error) {
	return ParseRSAPublicKeyPEM(string(p))
}

// Canonical returns the DER bytes inside the PEM block.
func (p PublicKeyPEM) Canonical() (interfaces.CanonicalPublicKey, error) {
	block, _ := pem.Decode([]byte(p))
	if block == nil || block.Type != pemPublicKeyType {
		return nil, errors.New("failed to decode PEM block")
	}
	return interfaces.CanonicalPublicKey(block.Bytes), nil
}

// RSAPrivateKeyDER represents a PKCS#8 encoded RSA private key.
type RSAPrivateKeyDER []byte

// MarshalRSAPrivateKey encodes key as PKCS#8 DER.
func MarshalRSAPrivateKey(key *rsa.PrivateKey) (RSAPrivateKeyDER, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return RSAPrivateKeyDER(der), nil
}

// RSAPrivateKey parses the DER back into a private key.
func (d RSAPrivateKeyDER) RSAPrivateKey() (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(d)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}
	return key, nil
}
