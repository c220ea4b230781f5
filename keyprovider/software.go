package keyprovider

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/device-key-registration/cryptoutils"
	"github.com/ruteri/device-key-registration/interfaces"
)

// SoftwareKeystore holds RSA keys in memory. With a storage backend and a
// passphrase configured, keys are persisted sealed with
// cryptoutils.Seal so the identity survives restarts.
type SoftwareKeystore struct {
	mu   sync.Mutex
	keys map[string]*rsa.PrivateKey

	backend    interfaces.StorageBackend
	passphrase []byte
	log        *slog.Logger
}

// NewSoftwareKeystore creates an in-memory keystore. backend may be nil.
func NewSoftwareKeystore(backend interfaces.StorageBackend, passphrase []byte, log *slog.Logger) (*SoftwareKeystore, error) {
	if backend != nil && len(passphrase) == 0 {
		return nil, errors.New("persistent software keystore requires a passphrase")
	}
	return &SoftwareKeystore{
		keys:       make(map[string]*rsa.PrivateKey),
		backend:    backend,
		passphrase: passphrase,
		log:        log,
	}, nil
}

func (s *SoftwareKeystore) Available(ctx context.Context) bool {
	return true
}

func (s *SoftwareKeystore) Contains(ctx context.Context, alias string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.loadLocked(ctx, alias)
	if err != nil {
		return false, err
	}
	return key != nil, nil
}

func (s *SoftwareKeystore) Generate(ctx context.Context, alias string, bits int) error {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		der, err := cryptoutils.MarshalRSAPrivateKey(key)
		if err != nil {
			return err
		}
		sealed, err := cryptoutils.Seal(s.passphrase, der, []byte(alias))
		if err != nil {
			return fmt.Errorf("failed to seal key: %w", err)
		}
		if err := s.backend.Store(ctx, alias, sealed, interfaces.DeviceKeyType); err != nil {
			return fmt.Errorf("failed to persist key: %w", err)
		}
		s.log.Debug("Persisted sealed device key",
			slog.String("alias", alias),
			slog.String("backend", s.backend.Name()))
	}

	s.keys[alias] = key
	return nil
}

func (s *SoftwareKeystore) PublicKey(ctx context.Context, alias string) (*rsa.PublicKey, error) {
	key, err := s.privateKey(ctx, alias)
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

func (s *SoftwareKeystore) Decrypt(ctx context.Context, alias string, ciphertext []byte, scheme interfaces.CipherScheme) ([]byte, error) {
	key, err := s.privateKey(ctx, alias)
	if err != nil {
		return nil, err
	}
	return cryptoutils.DecryptWithScheme(key, ciphertext, scheme)
}

func (s *SoftwareKeystore) Delete(ctx context.Context, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, alias)
	if s.backend != nil {
		if err := s.backend.Delete(ctx, alias, interfaces.DeviceKeyType); err != nil {
			return err
		}
	}
	return nil
}

func (s *SoftwareKeystore) privateKey(ctx context.Context, alias string) (*rsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.loadLocked(ctx, alias)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, alias)
	}
	return key, nil
}

// loadLocked returns the cached key or reads it from the backend. A nil key
// with a nil error means the alias does not exist.
func (s *SoftwareKeystore) loadLocked(ctx context.Context, alias string) (*rsa.PrivateKey, error) {
	if key, ok := s.keys[alias]; ok {
		return key, nil
	}
	if s.backend == nil {
		return nil, nil
	}

	sealed, err := s.backend.Fetch(ctx, alias, interfaces.DeviceKeyType)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrHardwareUnavailable, err)
	}

	der, err := cryptoutils.Open(s.passphrase, sealed, []byte(alias))
	if err != nil {
		return nil, fmt.Errorf("failed to unseal device key: %w", err)
	}
	key, err := cryptoutils.RSAPrivateKeyDER(der).RSAPrivateKey()
	if err != nil {
		return nil, err
	}

	s.keys[alias] = key
	s.log.Debug("Loaded sealed device key", slog.String("alias", alias))
	return key, nil
}
