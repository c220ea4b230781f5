package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/ruteri/device-key-registration/metrics"
)

// SecretRef names the secret handed to registering devices.
type SecretRef struct {
	Backend interfaces.StorageBackend
	Name    string
}

// Secret fetches the secret. A single trailing newline, as left by editors
// and echo, is dropped; any other whitespace is part of the secret.
func (r SecretRef) Secret(ctx context.Context) ([]byte, error) {
	data, err := r.Backend.Fetch(ctx, r.Name, interfaces.SecretType)
	if err != nil {
		metrics.SecretFetches.WithLabelValues(metrics.OutcomeFailure).Inc()
		if errors.Is(err, interfaces.ErrContentNotFound) {
			return nil, fmt.Errorf("%w: %s not found in %s", interfaces.ErrSecretUnavailable, r.Name, r.Backend.Name())
		}
		return nil, fmt.Errorf("%w: %w", interfaces.ErrSecretUnavailable, err)
	}
	data = trimLineEnding(data)
	if len(data) == 0 {
		metrics.SecretFetches.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("%w: %s is empty", interfaces.ErrSecretUnavailable, r.Name)
	}
	metrics.SecretFetches.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return data, nil
}

func trimLineEnding(data []byte) []byte {
	data = bytes.TrimSuffix(data, []byte("\n"))
	return bytes.TrimSuffix(data, []byte("\r"))
}

// StaticSecret is a SecretSource holding a fixed value.
type StaticSecret []byte

func (s StaticSecret) Secret(ctx context.Context) ([]byte, error) {
	if len(s) == 0 {
		return nil, interfaces.ErrSecretUnavailable
	}
	return bytes.Clone(s), nil
}
