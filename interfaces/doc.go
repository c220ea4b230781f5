// Package interfaces defines the core types and contracts shared by the
// device key registration system, separating interface definitions from
// implementations.
//
// # Data model
//
//   - EncodedKey: a public key blob tagged with the platform format it was
//     exported in (Android SPKI DER, iOS raw RSAPublicKey, or canonical DER)
//   - CanonicalPublicKey: an RSA SubjectPublicKeyInfo in DER form
//   - CipherScheme: an RSA padding transformation; PreferenceOrder is the
//     protocol-defined order in which a decrypting device tries them
//   - EncryptedPayload: ciphertext plus the scheme known to its producer
//   - KeyHandle: a reference to the device identity key
//
// # Contracts
//
// KeyProvider: the platform key store capability (ensure, lookup, export,
// decrypt, delete). Keystore: the lower-level hook providers are built on.
// PresenceChecker: user-presence confirmation gating private key use.
//
// StorageBackend: named blob storage for server secrets and sealed software
// device keys across file, S3, IPFS, Vault, environment and memory backends.
//
// # Errors
//
// All error kinds are sentinels wrapped with %w; classify with errors.Is.
// NegotiationError carries the full ordered attempt history.
package interfaces
