package cryptoutils

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ruteri/device-key-registration/interfaces"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const (
	tagBitString = 0x03
	tagSequence  = 0x30

	// maxDERLength is the largest length the two-byte long form can carry.
	maxDERLength = 0xffff

	pemPublicKeyType = "PUBLIC KEY"
)

// rsaAlgorithmIdentifier is SEQUENCE { OID 1.2.840.113549.1.1.1, NULL }.
var rsaAlgorithmIdentifier = []byte{
	0x30, 0x0d,
	0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01,
	0x05, 0x00,
}

var oidRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

// Normalize converts a platform public key export into a canonical
// SubjectPublicKeyInfo DER. Android and canonical inputs are validated and
// returned unchanged; iOS raw RSAPublicKey bytes get SPKI framing.
func Normalize(key interfaces.EncodedKey) (interfaces.CanonicalPublicKey, error) {
	data := key.Bytes()

	switch key.Format() {
	case interfaces.RawAndroidDER, interfaces.CanonicalDER:
		if err := validateSPKI(data); err != nil {
			return nil, err
		}
		return interfaces.CanonicalPublicKey(data), nil

	case interfaces.RawIOSModulusExponent:
		der, err := wrapRSAPublicKey(data)
		if err != nil {
			return nil, err
		}
		if err := validateSPKI(der); err != nil {
			return nil, err
		}
		return interfaces.CanonicalPublicKey(der), nil

	default:
		return nil, fmt.Errorf("%w: unknown key format %s", interfaces.ErrMalformedDER, key.Format())
	}
}

// wrapRSAPublicKey frames a PKCS#1 RSAPublicKey as SubjectPublicKeyInfo.
func wrapRSAPublicKey(raw []byte) ([]byte, error) {
	// Zero unused bits in the final octet.
	bitContent := make([]byte, 0, len(raw)+1)
	bitContent = append(bitContent, 0x00)
	bitContent = append(bitContent, raw...)

	bitString, err := encodeTLV(tagBitString, bitContent)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, len(rsaAlgorithmIdentifier)+len(bitString))
	body = append(body, rsaAlgorithmIdentifier...)
	body = append(body, bitString...)

	return encodeTLV(tagSequence, body)
}

func encodeTLV(tag byte, content []byte) ([]byte, error) {
	length, err := encodeDERLength(len(content))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(length)+len(content))
	out = append(out, tag)
	out = append(out, length...)
	return append(out, content...), nil
}

// encodeDERLength returns the minimal definite-form length octets for n.
func encodeDERLength(n int) ([]byte, error) {
	switch {
	case n < 0:
		return nil, fmt.Errorf("%w: negative length %d", interfaces.ErrMalformedDER, n)
	case n < 0x80:
		return []byte{byte(n)}, nil
	case n <= 0xff:
		return []byte{0x81, byte(n)}, nil
	case n <= maxDERLength:
		return []byte{0x82, byte(n >> 8), byte(n)}, nil
	default:
		return nil, fmt.Errorf("%w: length %d exceeds %d", interfaces.ErrUnsupportedKeySize, n, maxDERLength)
	}
}

// validateSPKI checks der is exactly one RSA SubjectPublicKeyInfo with
// minimal DER lengths and a well-formed RSAPublicKey inside the BIT STRING.
func validateSPKI(der []byte) error {
	if len(der) == 0 || der[0] != tagSequence {
		return fmt.Errorf("%w: top-level tag is not SEQUENCE", interfaces.ErrMalformedDER)
	}

	input := cryptobyte.String(der)
	var spki cryptobyte.String
	if !input.ReadASN1(&spki, cbasn1.SEQUENCE) {
		return fmt.Errorf("%w: invalid outer SEQUENCE length", interfaces.ErrMalformedDER)
	}
	if !input.Empty() {
		return fmt.Errorf("%w: %d trailing bytes after outer SEQUENCE", interfaces.ErrMalformedDER, len(input))
	}

	var algID cryptobyte.String
	if !spki.ReadASN1(&algID, cbasn1.SEQUENCE) {
		return fmt.Errorf("%w: missing AlgorithmIdentifier", interfaces.ErrMalformedDER)
	}
	var oid asn1.ObjectIdentifier
	if !algID.ReadASN1ObjectIdentifier(&oid) {
		return fmt.Errorf("%w: invalid algorithm OID", interfaces.ErrMalformedDER)
	}
	if !oid.Equal(oidRSAEncryption) {
		return fmt.Errorf("%w: algorithm %s is not rsaEncryption", interfaces.ErrMalformedDER, oid)
	}
	if !algID.Empty() {
		var params cryptobyte.String
		if !algID.ReadASN1(&params, cbasn1.NULL) || !params.Empty() || !algID.Empty() {
			return fmt.Errorf("%w: rsaEncryption parameters must be NULL", interfaces.ErrMalformedDER)
		}
	}

	var bits asn1.BitString
	if !spki.ReadASN1BitString(&bits) {
		return fmt.Errorf("%w: invalid subjectPublicKey BIT STRING", interfaces.ErrMalformedDER)
	}
	if bits.BitLength%8 != 0 {
		return fmt.Errorf("%w: subjectPublicKey has unused bits", interfaces.ErrMalformedDER)
	}
	if !spki.Empty() {
		return fmt.Errorf("%w: trailing data in SubjectPublicKeyInfo", interfaces.ErrMalformedDER)
	}

	return validateRSAPublicKey(bits.Bytes)
}

func validateRSAPublicKey(der []byte) error {
	input := cryptobyte.String(der)
	var body cryptobyte.String
	if !input.ReadASN1(&body, cbasn1.SEQUENCE) || !input.Empty() {
		return fmt.Errorf("%w: RSAPublicKey is not a single SEQUENCE", interfaces.ErrMalformedDER)
	}

	modulus := new(big.Int)
	exponent := new(big.Int)
	if !body.ReadASN1Integer(modulus) || !body.ReadASN1Integer(exponent) || !body.Empty() {
		return fmt.Errorf("%w: RSAPublicKey must hold modulus and exponent", interfaces.ErrMalformedDER)
	}
	if modulus.Sign() <= 0 || exponent.Sign() <= 0 {
		return fmt.Errorf("%w: RSA modulus and exponent must be positive", interfaces.ErrMalformedDER)
	}
	return nil
}

// ToPEM renders a canonical key as a PUBLIC KEY PEM block with 64-character
// base64 lines.
func ToPEM(key interfaces.CanonicalPublicKey) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: pemPublicKeyType, Bytes: key.Bytes()}))
}

// ParseRSAPublicKey parses a canonical key into an *rsa.PublicKey.
func ParseRSAPublicKey(key interfaces.CanonicalPublicKey) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedDER, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", interfaces.ErrMalformedDER)
	}
	return pub, nil
}

// ParseRSAPublicKeyPEM parses a PUBLIC KEY PEM block into an *rsa.PublicKey.
func ParseRSAPublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, rest := pem.Decode([]byte(pemData))
	if block == nil || block.Type != pemPublicKeyType {
		return nil, fmt.Errorf("%w: not a PUBLIC KEY PEM block", interfaces.ErrMalformedDER)
	}
	if len(strings.TrimSpace(string(rest))) != 0 {
		return nil, fmt.Errorf("%w: trailing data after PEM block", interfaces.ErrMalformedDER)
	}
	return ParseRSAPublicKey(interfaces.CanonicalPublicKey(block.Bytes))
}

// ExportAndroidDER encodes pub the way Android's PublicKey.getEncoded does.
func ExportAndroidDER(pub *rsa.PublicKey) (interfaces.EncodedKey, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return interfaces.EncodedKey{}, err
	}
	return interfaces.NewEncodedKey(interfaces.RawAndroidDER, der), nil
}

// ExportIOSRaw encodes pub the way SecKeyCopyExternalRepresentation does.
func ExportIOSRaw(pub *rsa.PublicKey) interfaces.EncodedKey {
	return interfaces.NewEncodedKey(interfaces.RawIOSModulusExponent, x509.MarshalPKCS1PublicKey(pub))
}

// ExportPublicKey encodes pub in the requested platform format.
func ExportPublicKey(pub *rsa.PublicKey, format interfaces.KeyFormat) (interfaces.EncodedKey, error) {
	switch format {
	case interfaces.RawIOSModulusExponent:
		return ExportIOSRaw(pub), nil
	case interfaces.RawAndroidDER:
		return ExportAndroidDER(pub)
	case interfaces.CanonicalDER:
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return interfaces.EncodedKey{}, err
		}
		return interfaces.NewEncodedKey(interfaces.CanonicalDER, der), nil
	default:
		return interfaces.EncodedKey{}, fmt.Errorf("unsupported export format %s", format)
	}
}

// ErrEmptyWireKey is returned by ParseWireKey for blank input.
var ErrEmptyWireKey = errors.New("empty public key")

// ParseWireKey decodes the registration wire representation of a device
// key: "IOS_RAW:" followed by base64 raw bytes for iOS, plain base64 DER
// otherwise.
func ParseWireKey(wire string) (interfaces.EncodedKey, error) {
	wire = strings.TrimSpace(wire)
	if wire == "" {
		return interfaces.EncodedKey{}, ErrEmptyWireKey
	}

	format := interfaces.RawAndroidDER
	if rest, ok := strings.CutPrefix(wire, interfaces.IOSRawWirePrefix); ok {
		format = interfaces.RawIOSModulusExponent
		wire = rest
	}

	data, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return interfaces.EncodedKey{}, fmt.Errorf("%w: invalid base64: %v", interfaces.ErrMalformedDER, err)
	}
	if len(data) == 0 {
		return interfaces.EncodedKey{}, ErrEmptyWireKey
	}
	return interfaces.NewEncodedKey(format, data), nil
}

// WireString renders key in the registration wire representation.
func WireString(key interfaces.EncodedKey) string {
	encoded := base64.StdEncoding.EncodeToString(key.Bytes())
	if key.Format() == interfaces.RawIOSModulusExponent {
		return interfaces.IOSRawWirePrefix + encoded
	}
	return encoded
}
