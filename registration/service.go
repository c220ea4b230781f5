// Package registration encrypts a protected secret under a device's
// registered public key.
package registration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"github.com/ruteri/device-key-registration/cryptoutils"
	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/ruteri/device-key-registration/metrics"
)

// DefaultScheme is the scheme devices try first.
const DefaultScheme = interfaces.PKCS1v1_5

// Config holds service settings.
type Config struct {
	// Scheme is the one scheme used for the authoritative payload.
	Scheme interfaces.CipherScheme
	// Diagnostics additionally encrypts the secret with every diagnostic
	// configuration and returns the results.
	Diagnostics bool
}

// DiagnosticConfig is one named encryption configuration of the
// diagnostic sweep.
type DiagnosticConfig struct {
	Name   string
	Scheme interfaces.CipherScheme
}

// DiagnosticConfigs is the sweep order. OAEP-DEFAULT is OAEP with SHA-1
// for both hashes, the default of most RSA libraries.
var DiagnosticConfigs = []DiagnosticConfig{
	{Name: "OAEP-SHA256-MGF1-SHA256", Scheme: interfaces.OAEP_SHA256_MGF1SHA256},
	{Name: "OAEP-SHA256-MGF1-SHA1", Scheme: interfaces.OAEP_SHA256_MGF1SHA1},
	{Name: "OAEP-SHA1-MGF1-SHA1", Scheme: interfaces.OAEP_SHA1_MGF1SHA1},
	{Name: "OAEP-DEFAULT", Scheme: interfaces.OAEP_SHA1_MGF1SHA1},
	{Name: "PKCS1", Scheme: interfaces.PKCS1v1_5},
}

// DiagnosticEncryption is the non-authoritative output of one diagnostic
// configuration.
type DiagnosticEncryption struct {
	Name            string
	Scheme          interfaces.CipherScheme
	EncryptedBase64 string
	Size            int
}

// Registration is the result of a successful registration.
type Registration struct {
	Payload      interfaces.EncryptedPayload
	PublicKeyPEM string
	// Diagnostics is empty unless Config.Diagnostics is set.
	Diagnostics []DiagnosticEncryption
}

// EncryptedBase64 returns the payload as sent to the device.
func (r *Registration) EncryptedBase64() string {
	return base64.StdEncoding.EncodeToString(r.Payload.Bytes)
}

// Service is stateless apart from its configuration and safe for
// concurrent use.
type Service struct {
	cfg    Config
	log    *slog.Logger
	random io.Reader
}

// New creates a registration service. A zero Scheme selects DefaultScheme.
func New(cfg Config, log *slog.Logger) (*Service, error) {
	if cfg.Scheme == interfaces.SchemeUnknown {
		cfg.Scheme = DefaultScheme
	}
	if !cfg.Scheme.Valid() {
		return nil, fmt.Errorf("invalid registration scheme %d", int(cfg.Scheme))
	}
	return &Service{cfg: cfg, log: log, random: rand.Reader}, nil
}

// Scheme returns the configured authoritative scheme.
func (s *Service) Scheme() interfaces.CipherScheme {
	return s.cfg.Scheme
}

// DiagnosticsEnabled reports whether the diagnostic sweep is on.
func (s *Service) DiagnosticsEnabled() bool {
	return s.cfg.Diagnostics
}

// ValidateKey checks that key normalizes to a usable RSA public key without
// encrypting anything. Errors wrap interfaces.ErrInvalidKey.
func (s *Service) ValidateKey(key interfaces.EncodedKey) error {
	if _, _, err := s.publicKey(key); err != nil {
		metrics.Registrations.WithLabelValues(metrics.OutcomeRejected, key.Format().String()).Inc()
		return err
	}
	return nil
}

// Register normalizes key and encrypts secret under it with the configured
// scheme. Key errors wrap interfaces.ErrInvalidKey; encryption errors wrap
// interfaces.ErrEncryptionFailed.
func (s *Service) Register(ctx context.Context, key interfaces.EncodedKey, secret []byte) (*Registration, error) {
	format := key.Format().String()

	pemKey, pub, err := s.publicKey(key)
	if err != nil {
		metrics.Registrations.WithLabelValues(metrics.OutcomeRejected, format).Inc()
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		metrics.Registrations.WithLabelValues(metrics.OutcomeCancelled, format).Inc()
		return nil, err
	}

	ciphertext, err := cryptoutils.EncryptWithScheme(s.random, pub, secret, s.cfg.Scheme)
	if err != nil {
		metrics.Registrations.WithLabelValues(metrics.OutcomeFailure, format).Inc()
		return nil, err
	}

	reg := &Registration{
		Payload:      interfaces.EncryptedPayload{Scheme: s.cfg.Scheme, Bytes: ciphertext},
		PublicKeyPEM: pemKey,
	}
	if s.cfg.Diagnostics {
		reg.Diagnostics = s.sweep(pub, secret)
	}

	metrics.Registrations.WithLabelValues(metrics.OutcomeSuccess, format).Inc()
	s.log.Info("Registered device key",
		slog.String("format", format),
		slog.String("scheme", s.cfg.Scheme.String()),
		slog.Int("publicKeyBytes", key.Len()),
		slog.Int("ciphertextBytes", len(ciphertext)))

	return reg, nil
}

// TestConfigs runs only the diagnostic sweep for key.
func (s *Service) TestConfigs(ctx context.Context, key interfaces.EncodedKey, secret []byte) ([]DiagnosticEncryption, error) {
	_, pub, err := s.publicKey(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.sweep(pub, secret), nil
}

// publicKey goes through the PEM form so the key the device receives
// encryptions for is exactly the one a PEM consumer would parse.
func (s *Service) publicKey(key interfaces.EncodedKey) (string, *rsa.PublicKey, error) {
	canonical, err := cryptoutils.Normalize(key)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", interfaces.ErrInvalidKey, err)
	}
	pemKey := cryptoutils.ToPEM(canonical)
	pub, err := cryptoutils.ParseRSAPublicKeyPEM(pemKey)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", interfaces.ErrInvalidKey, err)
	}
	return pemKey, pub, nil
}

// sweep skips configurations that fail, such as a secret too long for OAEP
// under a small key.
func (s *Service) sweep(pub *rsa.PublicKey, secret []byte) []DiagnosticEncryption {
	results := make([]DiagnosticEncryption, 0, len(DiagnosticConfigs))
	for _, dc := range DiagnosticConfigs {
		ciphertext, err := cryptoutils.EncryptWithScheme(s.random, pub, secret, dc.Scheme)
		if err != nil {
			s.log.Debug("Diagnostic encryption failed", slog.String("config", dc.Name), "err", err)
			continue
		}
		results = append(results, DiagnosticEncryption{
			Name:            dc.Name,
			Scheme:          dc.Scheme,
			EncryptedBase64: base64.StdEncoding.EncodeToString(ciphertext),
			Size:            len(ciphertext),
		})
	}
	return results
}
