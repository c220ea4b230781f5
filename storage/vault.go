package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/device-key-registration/interfaces"
)

// VaultBackend implements a storage backend using HashiCorp Vault KV v2.
// Blobs are stored base64 encoded under the "content" key.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a new Vault storage backend authenticated with a token.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: Vault mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "device-registration")
//   - token: Vault token; empty falls back to VAULT_TOKEN
//   - log: Structured logger for operational insights
func NewVaultBackend(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Fetch retrieves a blob from Vault.
func (b *VaultBackend) Fetch(ctx context.Context, name string, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	path, err := b.kvPath("data", name, contentType)
	if err != nil {
		return nil, err
	}

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		b.log.Debug("Content not found in Vault", slog.String("path", path))
		return nil, interfaces.ErrContentNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		// Soft-deleted versions come back with nil data.
		return nil, interfaces.ErrContentNotFound
	}

	content, ok := data["content"].(string)
	if !ok {
		b.log.Error("Content key not found in Vault data", slog.String("path", path))
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding in Vault data: %w", err)
	}

	b.log.Info("Successfully fetched content from Vault",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))

	return decoded, nil
}

// Store writes a new version of the blob to Vault.
func (b *VaultBackend) Store(ctx context.Context, name string, data []byte, contentType interfaces.ContentType) error {
	start := time.Now()
	path, err := b.kvPath("data", name, contentType)
	if err != nil {
		return err
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(data),
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Info("Successfully stored content in Vault",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Delete removes all versions and metadata of the blob.
func (b *VaultBackend) Delete(ctx context.Context, name string, contentType interfaces.ContentType) error {
	path, err := b.kvPath("metadata", name, contentType)
	if err != nil {
		return err
	}
	if _, err := b.client.Logical().DeleteWithContext(ctx, path); err != nil {
		b.log.Error("Failed to delete from Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

// kvPath builds a KV v2 path; kind is "data" or "metadata".
func (b *VaultBackend) kvPath(kind, name string, contentType interfaces.ContentType) (string, error) {
	if err := interfaces.ValidateBlobName(name); err != nil {
		return "", err
	}
	parts := []string{b.mountPath, kind}
	if b.dataPath != "" {
		parts = append(parts, b.dataPath)
	}
	parts = append(parts, contentType.Dir(), name)
	return strings.Join(parts, "/"), nil
}
