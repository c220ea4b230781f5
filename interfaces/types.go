package interfaces

import (
	"bytes"
	"fmt"
	"strings"
)

// KeyFormat names the export format a device public key arrived in.
type KeyFormat int

const (
	// RawAndroidDER is the X.509 SubjectPublicKeyInfo DER produced by
	// PublicKey.getEncoded() on Android.
	RawAndroidDER KeyFormat = iota
	// RawIOSModulusExponent is the PKCS#1 RSAPublicKey (modulus, exponent)
	// produced by SecKeyCopyExternalRepresentation, without SPKI framing.
	RawIOSModulusExponent
	// CanonicalDER is an already normalized SubjectPublicKeyInfo.
	CanonicalDER
)

// IOSRawWirePrefix tags iOS raw exports on the wire. It is the sole format
// discriminator; anything without it is treated as Android DER.
const IOSRawWirePrefix = "IOS_RAW:"

// String returns the format name.
func (f KeyFormat) String() string {
	switch f {
	case RawAndroidDER:
		return "android-der"
	case RawIOSModulusExponent:
		return "ios-raw"
	case CanonicalDER:
		return "canonical-der"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ParseKeyFormat parses a format name as used in configuration.
func ParseKeyFormat(name string) (KeyFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "android-der", "android", "der":
		return RawAndroidDER, nil
	case "ios-raw", "ios", "raw":
		return RawIOSModulusExponent, nil
	case "canonical-der", "canonical", "spki":
		return CanonicalDER, nil
	default:
		return 0, fmt.Errorf("unknown key format %q", name)
	}
}

// EncodedKey is a public key blob tagged with the format it was exported in.
// It is immutable: the constructor and the accessor both copy.
type EncodedKey struct {
	format KeyFormat
	data   []byte
}

// NewEncodedKey creates an EncodedKey holding a copy of data.
func NewEncodedKey(format KeyFormat, data []byte) EncodedKey {
	return EncodedKey{format: format, data: bytes.Clone(data)}
}

// Format returns the export format.
func (k EncodedKey) Format() KeyFormat {
	return k.format
}

// Bytes returns a copy of the encoded key bytes.
func (k EncodedKey) Bytes() []byte {
	return bytes.Clone(k.data)
}

// Len returns the number of encoded bytes.
func (k EncodedKey) Len() int {
	return len(k.data)
}

// Equal reports whether both keys carry the same format and bytes.
func (k EncodedKey) Equal(other EncodedKey) bool {
	return k.format == other.format && bytes.Equal(k.data, other.data)
}

// CanonicalPublicKey is an RSA SubjectPublicKeyInfo in DER form.
type CanonicalPublicKey []byte

// Bytes returns the DER bytes.
func (k CanonicalPublicKey) Bytes() []byte {
	return []byte(k)
}

// KeyHandle references the device identity key held by a KeyProvider.
// Generation changes every time the key pair is regenerated, so a handle
// obtained before a delete no longer resolves afterwards.
type KeyHandle struct {
	Alias      string
	Generation uint64
}

// String returns a loggable representation of the handle.
func (h KeyHandle) String() string {
	return fmt.Sprintf("%s#%d", h.Alias, h.Generation)
}

// IsZero reports whether the handle is unset.
func (h KeyHandle) IsZero() bool {
	return h.Alias == "" && h.Generation == 0
}

// EncryptedPayload is a secret encrypted under a device public key.
// Scheme is known to the producer only; it does not cross the wire.
type EncryptedPayload struct {
	Scheme CipherScheme
	Bytes  []byte
}
