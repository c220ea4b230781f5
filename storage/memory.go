package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/device-key-registration/interfaces"
)

type memoryKey struct {
	contentType interfaces.ContentType
	name        string
}

// MemoryBackend keeps blobs in process memory. It is used for ephemeral
// device identities and in tests.
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[memoryKey][]byte
	label string
	log   *slog.Logger
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(label string, log *slog.Logger) *MemoryBackend {
	return &MemoryBackend{
		blobs: make(map[memoryKey][]byte),
		label: label,
		log:   log,
	}
}

func (b *MemoryBackend) Fetch(ctx context.Context, name string, contentType interfaces.ContentType) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.blobs[memoryKey{contentType, name}]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return bytes.Clone(data), nil
}

func (b *MemoryBackend) Store(ctx context.Context, name string, data []byte, contentType interfaces.ContentType) error {
	if err := interfaces.ValidateBlobName(name); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[memoryKey{contentType, name}] = bytes.Clone(data)

	b.log.Debug("Stored content in memory",
		slog.String("name", name),
		slog.String("type", contentType.String()))
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, name string, contentType interfaces.ContentType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, memoryKey{contentType, name})
	return nil
}

func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

func (b *MemoryBackend) Name() string {
	if b.label == "" {
		return "memory"
	}
	return fmt.Sprintf("memory-%s", b.label)
}

func (b *MemoryBackend) LocationURI() string {
	return fmt.Sprintf("memory://%s", b.label)
}
