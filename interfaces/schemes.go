package interfaces

import (
	"fmt"
	"strings"
)

// CipherScheme names an RSA encryption transformation.
type CipherScheme int

const (
	SchemeUnknown CipherScheme = iota
	// PKCS1v1_5 is RSAES-PKCS1-v1_5.
	PKCS1v1_5
	// OAEP_SHA256_MGF1SHA256 is RSAES-OAEP with SHA-256 for both the label
	// hash and MGF1.
	OAEP_SHA256_MGF1SHA256
	// OAEP_SHA1_MGF1SHA1 is RSAES-OAEP with SHA-1 for both hashes.
	OAEP_SHA1_MGF1SHA1
	// OAEP_SHA256_MGF1SHA1 is RSAES-OAEP with a SHA-256 label hash and
	// MGF1-SHA1, the AndroidKeyStore default for OAEPWithSHA-256.
	OAEP_SHA256_MGF1SHA1
)

// PreferenceOrder is the order in which schemes are tried when decrypting a
// payload of unknown scheme. It is part of the protocol: the registration
// server's fixed scheme comes first.
var PreferenceOrder = []CipherScheme{
	PKCS1v1_5,
	OAEP_SHA256_MGF1SHA256,
	OAEP_SHA1_MGF1SHA1,
	OAEP_SHA256_MGF1SHA1,
}

var schemeNames = map[CipherScheme]string{
	PKCS1v1_5:              "PKCS1v1_5",
	OAEP_SHA256_MGF1SHA256: "OAEP_SHA256_MGF1SHA256",
	OAEP_SHA1_MGF1SHA1:     "OAEP_SHA1_MGF1SHA1",
	OAEP_SHA256_MGF1SHA1:   "OAEP_SHA256_MGF1SHA1",
}

// schemeAliases maps platform transformation names onto schemes.
// Keys are lower-cased.
var schemeAliases = map[string]CipherScheme{
	// Android JCA transformations as used against AndroidKeyStore keys.
	"rsa/ecb/pkcs1padding":                    PKCS1v1_5,
	"rsa/ecb/oaeppadding":                     OAEP_SHA1_MGF1SHA1,
	"rsa/ecb/oaepwithsha-1andmgf1padding":     OAEP_SHA1_MGF1SHA1,
	"rsa/none/oaepwithsha1andmgf1padding":     OAEP_SHA1_MGF1SHA1,
	"rsa/ecb/oaepwithsha-256andmgf1padding":   OAEP_SHA256_MGF1SHA1,
	"rsa/none/oaepwithsha256andmgf1padding":   OAEP_SHA256_MGF1SHA1,
	// iOS SecKeyAlgorithm names; Security.framework uses the same digest for MGF1.
	"rsaencryptionpkcs1":      PKCS1v1_5,
	"rsaencryptionoaepsha1":   OAEP_SHA1_MGF1SHA1,
	"rsaencryptionoaepsha256": OAEP_SHA256_MGF1SHA256,
	// Names used by the registration server diagnostics.
	"pkcs1":                   PKCS1v1_5,
	"oaep-default":            OAEP_SHA1_MGF1SHA1,
	"oaep-sha1-mgf1-sha1":     OAEP_SHA1_MGF1SHA1,
	"oaep-sha256-mgf1-sha256": OAEP_SHA256_MGF1SHA256,
	"oaep-sha256-mgf1-sha1":   OAEP_SHA256_MGF1SHA1,
}

// String returns the canonical scheme name.
func (s CipherScheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the supported schemes.
func (s CipherScheme) Valid() bool {
	_, ok := schemeNames[s]
	return ok
}

// IsOAEP reports whether the scheme uses OAEP padding.
func (s CipherScheme) IsOAEP() bool {
	return s == OAEP_SHA256_MGF1SHA256 || s == OAEP_SHA1_MGF1SHA1 || s == OAEP_SHA256_MGF1SHA1
}

// ParseCipherScheme resolves a canonical scheme name or a platform alias.
func ParseCipherScheme(name string) (CipherScheme, error) {
	trimmed := strings.TrimSpace(name)
	for scheme, canonical := range schemeNames {
		if strings.EqualFold(canonical, trimmed) {
			return scheme, nil
		}
	}
	if scheme, ok := schemeAliases[strings.ToLower(trimmed)]; ok {
		return scheme, nil
	}
	return SchemeUnknown, fmt.Errorf("unknown cipher scheme %q", name)
}
