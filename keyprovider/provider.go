package keyprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/device-key-registration/cryptoutils"
	"github.com/ruteri/device-key-registration/interfaces"
)

// Variant distinguishes where the private key lives.
type Variant int

const (
	// HardwareBacked keys live in a platform secure element and every
	// private key operation is gated by user presence.
	HardwareBacked Variant = iota
	// SoftwareFallback keys live in process memory, optionally persisted
	// sealed. Presence gating is optional.
	SoftwareFallback
)

func (v Variant) String() string {
	switch v {
	case HardwareBacked:
		return "hardware"
	case SoftwareFallback:
		return "software"
	default:
		return "unknown"
	}
}

const (
	DefaultAlias         = "device_identity_key"
	DefaultKeySize       = 2048
	DefaultPromptTimeout = 30 * time.Second
	DefaultPromptReason  = "Authenticate to decrypt the secret"
)

// Config holds provider settings.
type Config struct {
	// Alias names the key pair in the keystore.
	Alias string
	// KeySize is the RSA modulus size in bits for new key pairs.
	KeySize int
	// ExportFormat is the native public key format of the platform being served.
	ExportFormat interfaces.KeyFormat
	// PromptTimeout bounds a single presence confirmation.
	PromptTimeout time.Duration
	// AuthValidity is how long a confirmed presence authorizes further
	// private key operations. Zero prompts on every decrypt.
	AuthValidity time.Duration
	// PromptReason is shown to the user.
	PromptReason string
}

func (c Config) withDefaults() Config {
	if c.Alias == "" {
		c.Alias = DefaultAlias
	}
	if c.KeySize == 0 {
		c.KeySize = DefaultKeySize
	}
	if c.PromptTimeout == 0 {
		c.PromptTimeout = DefaultPromptTimeout
	}
	if c.PromptReason == "" {
		c.PromptReason = DefaultPromptReason
	}
	return c
}

// Provider implements interfaces.KeyProvider on top of a Keystore.
//
// The key pair is guarded by mu: EnsureKeyPair and DeleteKeyPair take the
// write lock, ExportPublicKey and Decrypt the read lock. Decrypt confirms
// presence before locking and re-validates the handle afterwards, so a
// DeleteKeyPair issued while a prompt is pending makes that Decrypt fail
// with ErrKeyNotFound.
type Provider struct {
	variant  Variant
	cfg      Config
	keystore interfaces.Keystore
	presence interfaces.PresenceChecker
	log      *slog.Logger
	now      func() time.Time

	mu sync.RWMutex
	// current is the generation of the live key pair, 0 when none is known.
	current uint64
	counter uint64

	authMu   sync.Mutex
	authedAt time.Time
	authGen  uint64
}

// NewHardwareProvider creates a provider over a platform secure keystore.
// A presence checker is mandatory.
func NewHardwareProvider(keystore interfaces.Keystore, presence interfaces.PresenceChecker, cfg Config, log *slog.Logger) (*Provider, error) {
	if keystore == nil {
		return nil, fmt.Errorf("%w: no hardware keystore", interfaces.ErrHardwareUnavailable)
	}
	if presence == nil {
		return nil, errors.New("hardware-backed provider requires a presence checker")
	}
	return newProvider(HardwareBacked, keystore, presence, cfg, log), nil
}

// NewSoftwareProvider creates a provider over a software keystore. presence
// may be nil, in which case private key use is not gated.
func NewSoftwareProvider(keystore *SoftwareKeystore, presence interfaces.PresenceChecker, cfg Config, log *slog.Logger) *Provider {
	return newProvider(SoftwareFallback, keystore, presence, cfg, log)
}

func newProvider(variant Variant, keystore interfaces.Keystore, presence interfaces.PresenceChecker, cfg Config, log *slog.Logger) *Provider {
	return &Provider{
		variant:  variant,
		cfg:      cfg.withDefaults(),
		keystore: keystore,
		presence: presence,
		log:      log.With(slog.String("provider", variant.String())),
		now:      time.Now,
	}
}

// Variant returns the provider variant.
func (p *Provider) Variant() Variant {
	return p.variant
}

// Config returns the effective configuration.
func (p *Provider) Config() Config {
	return p.cfg
}

// EnsureKeyPair returns the identity key, generating it on first use.
func (p *Provider) EnsureKeyPair(ctx context.Context) (interfaces.KeyHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkAvailable(ctx); err != nil {
		return interfaces.KeyHandle{}, err
	}

	exists, err := p.keystore.Contains(ctx, p.cfg.Alias)
	if err != nil {
		return interfaces.KeyHandle{}, err
	}
	if exists {
		return p.adoptLocked(), nil
	}

	start := time.Now()
	if err := p.keystore.Generate(ctx, p.cfg.Alias, p.cfg.KeySize); err != nil {
		return interfaces.KeyHandle{}, fmt.Errorf("failed to generate key pair: %w", err)
	}
	p.counter++
	p.current = p.counter

	p.log.Info("Generated device key pair",
		slog.String("alias", p.cfg.Alias),
		slog.Int("bits", p.cfg.KeySize),
		slog.Duration("duration", time.Since(start)))

	return p.handleLocked(), nil
}

// LookupKeyPair returns the identity key without generating one.
func (p *Provider) LookupKeyPair(ctx context.Context) (interfaces.KeyHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkAvailable(ctx); err != nil {
		return interfaces.KeyHandle{}, err
	}

	exists, err := p.keystore.Contains(ctx, p.cfg.Alias)
	if err != nil {
		return interfaces.KeyHandle{}, err
	}
	if !exists {
		p.current = 0
		return interfaces.KeyHandle{}, fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, p.cfg.Alias)
	}
	return p.adoptLocked(), nil
}

// adoptLocked assigns a generation to a key pair that already exists in
// the keystore, such as one persisted by an earlier process.
func (p *Provider) adoptLocked() interfaces.KeyHandle {
	if p.current == 0 {
		p.counter++
		p.current = p.counter
		p.log.Debug("Using existing device key pair", slog.String("alias", p.cfg.Alias))
	}
	return p.handleLocked()
}

func (p *Provider) handleLocked() interfaces.KeyHandle {
	return interfaces.KeyHandle{Alias: p.cfg.Alias, Generation: p.current}
}

// ExportPublicKey returns the public key in the configured platform format.
func (p *Provider) ExportPublicKey(ctx context.Context, handle interfaces.KeyHandle) (interfaces.EncodedKey, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.validateLocked(handle); err != nil {
		return interfaces.EncodedKey{}, err
	}

	pub, err := p.keystore.PublicKey(ctx, handle.Alias)
	if err != nil {
		return interfaces.EncodedKey{}, err
	}
	return cryptoutils.ExportPublicKey(pub, p.cfg.ExportFormat)
}

// Decrypt performs one decryption attempt with one scheme.
func (p *Provider) Decrypt(ctx context.Context, handle interfaces.KeyHandle, ciphertext []byte, scheme interfaces.CipherScheme) ([]byte, error) {
	p.mu.RLock()
	err := p.validateLocked(handle)
	p.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if err := p.confirmPresence(ctx, handle); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	// The key may have been deleted while the prompt was pending.
	if err := p.validateLocked(handle); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, mapContextError(err)
	}

	plaintext, err := p.keystore.Decrypt(ctx, handle.Alias, ciphertext, scheme)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// DeleteKeyPair removes the key pair. Deleting an absent key succeeds.
func (p *Provider) DeleteKeyPair(ctx context.Context, handle interfaces.KeyHandle) error {
	if handle.Alias != "" && handle.Alias != p.cfg.Alias {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.keystore.Delete(ctx, p.cfg.Alias); err != nil {
		return fmt.Errorf("failed to delete key pair: %w", err)
	}
	p.current = 0

	p.authMu.Lock()
	p.authedAt = time.Time{}
	p.authGen = 0
	p.authMu.Unlock()

	p.log.Info("Deleted device key pair", slog.String("alias", p.cfg.Alias))
	return nil
}

func (p *Provider) checkAvailable(ctx context.Context) error {
	if !p.keystore.Available(ctx) {
		return interfaces.ErrHardwareUnavailable
	}
	return nil
}

func (p *Provider) validateLocked(handle interfaces.KeyHandle) error {
	if handle.Alias != p.cfg.Alias || handle.Generation == 0 || handle.Generation != p.current {
		return fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, handle)
	}
	return nil
}

func (p *Provider) confirmPresence(ctx context.Context, handle interfaces.KeyHandle) error {
	if p.presence == nil {
		return nil
	}

	p.authMu.Lock()
	valid := p.cfg.AuthValidity > 0 && p.authGen == handle.Generation && p.now().Sub(p.authedAt) < p.cfg.AuthValidity
	p.authMu.Unlock()
	if valid {
		return nil
	}

	promptCtx, cancel := context.WithTimeout(ctx, p.cfg.PromptTimeout)
	defer cancel()

	start := time.Now()
	err := p.presence.ConfirmPresence(promptCtx, p.cfg.PromptReason)
	if err != nil {
		err = mapPresenceError(err)
		p.log.Warn("Presence confirmation failed",
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return err
	}

	p.authMu.Lock()
	p.authedAt = p.now()
	p.authGen = handle.Generation
	p.authMu.Unlock()
	return nil
}

func mapPresenceError(err error) error {
	switch {
	case interfaces.IsAuthenticationAbort(err):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return mapContextError(err)
	default:
		return fmt.Errorf("%w: %v", interfaces.ErrAuthenticationCancelled, err)
	}
}

func mapContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", interfaces.ErrAuthenticationTimeout, err)
	}
	return fmt.Errorf("%w: %v", interfaces.ErrAuthenticationCancelled, err)
}
