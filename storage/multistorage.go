package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/device-key-registration/interfaces"
)

// MultiStorageBackend implements interfaces.StorageBackend using multiple backends with fallback
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch returns the blob from the first available backend that has it.
// ErrContentNotFound is returned only if every consulted backend reported it.
func (m *MultiStorageBackend) Fetch(ctx context.Context, name string, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	var errs []error
	allNotFound := true

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name))
			allNotFound = false
			continue
		}

		data, err := backend.Fetch(ctx, name, contentType)
		if err == nil {
			m.log.Info("Successfully fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if !errors.Is(err, interfaces.ErrContentNotFound) {
			allNotFound = false
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("name", name),
			"err", err)
	}

	m.log.Error("All backends failed to fetch content",
		slog.String("name", name),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	if allNotFound && len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, name)
	}
	return nil, fmt.Errorf("%w: all backends failed to fetch %s: %w", interfaces.ErrBackendUnavailable, name, errors.Join(errs...))
}

// Store saves data to all available writable backends. It succeeds if at
// least one backend stored the blob.
func (m *MultiStorageBackend) Store(ctx context.Context, name string, data []byte, contentType interfaces.ContentType) error {
	start := time.Now()
	var errs []error
	stored := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		err := backend.Store(ctx, name, data, contentType)
		if errors.Is(err, interfaces.ErrReadOnlyBackend) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		m.log.Error("All backends failed to store data",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return interfaces.ErrReadOnlyBackend
		}
		return fmt.Errorf("all backends failed to store data: %w", errors.Join(errs...))
	}

	m.log.Info("Successfully stored content",
		slog.String("name", name),
		slog.Int("backends", stored),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Delete removes the blob from every writable backend.
func (m *MultiStorageBackend) Delete(ctx context.Context, name string, contentType interfaces.ContentType) error {
	var errs []error
	for _, backend := range m.backends {
		err := backend.Delete(ctx, name, contentType)
		if err != nil && !errors.Is(err, interfaces.ErrReadOnlyBackend) {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the URI of this backend
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
