package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ruteri/device-key-registration/interfaces"
)

// EnvBackend serves secrets from environment variables. It is read-only.
//
// The variable for name is PREFIX_NAME, upper-cased with '-' and '.'
// replaced by '_'. An empty prefix uses the bare name.
type EnvBackend struct {
	prefix string
	lookup func(string) (string, bool)
	log    *slog.Logger
}

// NewEnvBackend creates an environment variable backend.
func NewEnvBackend(prefix string, log *slog.Logger) *EnvBackend {
	return &EnvBackend{
		prefix: prefix,
		lookup: os.LookupEnv,
		log:    log,
	}
}

// VariableName returns the environment variable consulted for name.
func (b *EnvBackend) VariableName(name string) string {
	v := strings.NewReplacer("-", "_", ".", "_").Replace(strings.ToUpper(name))
	if b.prefix == "" {
		return v
	}
	return strings.ToUpper(b.prefix) + "_" + v
}

// Fetch returns the variable's value. Only secrets are served.
func (b *EnvBackend) Fetch(ctx context.Context, name string, contentType interfaces.ContentType) ([]byte, error) {
	if contentType != interfaces.SecretType {
		return nil, interfaces.ErrContentNotFound
	}
	if err := interfaces.ValidateBlobName(name); err != nil {
		return nil, err
	}

	variable := b.VariableName(name)
	value, ok := b.lookup(variable)
	if !ok {
		b.log.Debug("Secret variable not set", slog.String("variable", variable))
		return nil, interfaces.ErrContentNotFound
	}
	return []byte(value), nil
}

func (b *EnvBackend) Store(ctx context.Context, name string, data []byte, contentType interfaces.ContentType) error {
	return interfaces.ErrReadOnlyBackend
}

func (b *EnvBackend) Delete(ctx context.Context, name string, contentType interfaces.ContentType) error {
	return interfaces.ErrReadOnlyBackend
}

func (b *EnvBackend) Available(ctx context.Context) bool {
	return true
}

func (b *EnvBackend) Name() string {
	return "env"
}

func (b *EnvBackend) LocationURI() string {
	return fmt.Sprintf("env://%s", b.prefix)
}
