package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// ContentType indicates storage namespace.
type ContentType int

const (
	// SecretType for secrets handed to registered devices
	SecretType ContentType = iota
	// DeviceKeyType for sealed software device keys
	DeviceKeyType
)

// String returns type name.
func (ct ContentType) String() string {
	switch ct {
	case SecretType:
		return "secret"
	case DeviceKeyType:
		return "devicekey"
	default:
		return "unknown"
	}
}

// Dir returns the directory-style prefix used by path-based backends.
func (ct ContentType) Dir() string {
	switch ct {
	case SecretType:
		return "secrets"
	case DeviceKeyType:
		return "device-keys"
	default:
		return "unknown"
	}
}

var blobNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateBlobName checks that name is safe to use as a file name, object
// key suffix or Vault path segment.
func ValidateBlobName(name string) error {
	if !blobNamePattern.MatchString(name) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation string

// NewStorageBackendLocation validates a storage location URI.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "vault", "env", "memory":
	default:
		return "", fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StorageBackendLocation(uri), nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return string(loc)
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrReadOnlyBackend is returned by backends that cannot be written to.
	ErrReadOnlyBackend = errors.New("storage backend is read-only")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend provides named blob storage.
type StorageBackend interface {
	// Fetch retrieves data by name and type.
	Fetch(ctx context.Context, name string, contentType ContentType) ([]byte, error)

	// Store saves data under name, replacing any previous value.
	Store(ctx context.Context, name string, data []byte, contentType ContentType) error

	// Delete removes data under name. Missing data is not an error.
	Delete(ctx context.Context, name string, contentType ContentType) error

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, s3://, ipfs://, vault://, env://, memory://
	StorageBackendFor(locationURI StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(locationURIs []StorageBackendLocation) (StorageBackend, error)
}

// SecretSource yields the secret protected for registered devices.
type SecretSource interface {
	Secret(ctx context.Context) ([]byte, error)
}
