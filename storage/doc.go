// Package storage provides named blob storage with pluggable backends.
//
// The server reads the secret it hands to registering devices from a
// storage backend, and the software key provider persists sealed device
// keys to one. Blobs are addressed by a name and a content type; content
// types are separate namespaces:
//
//   - secrets: the secret protected for devices (interfaces.SecretType)
//   - device-keys: sealed software device keys (interfaces.DeviceKeyType)
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/registration/
//   - s3://[KEY:SECRET@]bucket-name/prefix/?region=us-west-2&endpoint=...&path_style=true
//   - vault://[TOKEN@]vault.example.com:8200/secret/registration[?tls=false]
//   - ipfs://ipfs.example.com:5001/<root CID>?timeout=30s (read-only)
//   - env://PREFIX (read-only, secrets only)
//   - memory://label
//
// # Vault Storage
//
// The VaultBackend uses the KV v2 engine with path format
// {mount}/data/{path}/{type}/{name}. Blobs are base64 encoded under the
// "content" key. Without a token in the URI, VAULT_TOKEN is used.
//
// # Multi-Backend Example
//
//	locations := []interfaces.StorageBackendLocation{
//	    "env://REGISTRATION",
//	    "vault://vault.example.com:8200/secret/registration",
//	    "file:///var/lib/registration/",
//	}
//	multiBackend, err := factory.CreateMultiBackend(locations)
//	secret, err := storage.SecretRef{Backend: multiBackend, Name: "device-secret"}.Secret(ctx)
package storage
