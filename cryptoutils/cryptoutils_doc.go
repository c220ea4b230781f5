// Package cryptoutils provides the cryptographic primitives of the device key
// registration system: public key canonicalization, RSA encryption schemes,
// and passphrase sealing of keys at rest.
//
// # Key canonicalization
//
// Devices export their RSA public key in one of two platform formats:
//
//   - Android: X.509 SubjectPublicKeyInfo DER (PublicKey.getEncoded)
//   - iOS: PKCS#1 RSAPublicKey DER without SPKI framing
//     (SecKeyCopyExternalRepresentation), sent as "IOS_RAW:" + base64
//
// Normalize turns both into the same SubjectPublicKeyInfo DER. For iOS keys
// the framing is built by hand:
//
//	30 <len> 30 0d 06 09 2a 86 48 86 f7 0d 01 01 01 05 00 03 <len> 00 <RSAPublicKey>
//
// where each <len> is a minimal definite DER length: one byte below 128,
// 0x81 n up to 255, 0x82 hi lo up to 65535. Longer payloads are rejected
// with ErrUnsupportedKeySize. Every result is validated with cryptobyte.
//
// ToPEM wraps canonical DER as a PUBLIC KEY PEM block with 64-character lines.
//
// # Cipher schemes
//
// EncryptWithScheme and DecryptWithScheme implement the four supported RSA
// transformations. OAEP with a SHA-256 label hash and MGF1-SHA1 (the
// AndroidKeyStore default) is encoded by hand since crypto/rsa cannot encrypt
// with differing hashes; decryption uses rsa.OAEPOptions.MGFHash. Any
// decryption failure maps to ErrSchemeMismatch.
//
// # Sealing
//
// Seal and Open protect software device keys at rest with XChaCha20-Poly1305
// under an Argon2id passphrase-derived key.
//
//	[version (1 byte)][salt (16 bytes)][nonce (24 bytes)][ciphertext]
package cryptoutils
