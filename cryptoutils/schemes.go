package cryptoutils

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash"
	"io"
	"math/big"

	"github.com/ruteri/device-key-registration/interfaces"
)

// OAEPHashes returns the label hash and MGF1 hash of an OAEP scheme.
func OAEPHashes(scheme interfaces.CipherScheme) (label crypto.Hash, mgf crypto.Hash, ok bool) {
	switch scheme {
	case interfaces.OAEP_SHA256_MGF1SHA256:
		return crypto.SHA256, crypto.SHA256, true
	case interfaces.OAEP_SHA1_MGF1SHA1:
		return crypto.SHA1, crypto.SHA1, true
	case interfaces.OAEP_SHA256_MGF1SHA1:
		return crypto.SHA256, crypto.SHA1, true
	default:
		return 0, 0, false
	}
}

// MaxPlaintextLen returns the largest message scheme can encrypt under pub.
func MaxPlaintextLen(pub *rsa.PublicKey, scheme interfaces.CipherScheme) int {
	k := pub.Size()
	if scheme == interfaces.PKCS1v1_5 {
		return k - 11
	}
	label, _, ok := OAEPHashes(scheme)
	if !ok {
		return 0
	}
	return k - 2*label.Size() - 2
}

// EncryptWithScheme encrypts msg under pub with the given RSA scheme.
// A nil random uses crypto/rand.
func EncryptWithScheme(random io.Reader, pub *rsa.PublicKey, msg []byte, scheme interfaces.CipherScheme) ([]byte, error) {
	if random == nil {
		random = rand.Reader
	}

	var (
		ciphertext []byte
		err        error
	)
	switch scheme {
	case interfaces.PKCS1v1_5:
		ciphertext, err = rsa.EncryptPKCS1v15(random, pub, msg)
	case interfaces.OAEP_SHA256_MGF1SHA256:
		ciphertext, err = rsa.EncryptOAEP(sha256.New(), random, pub, msg, nil)
	case interfaces.OAEP_SHA1_MGF1SHA1:
		ciphertext, err = rsa.EncryptOAEP(sha1.New(), random, pub, msg, nil)
	case interfaces.OAEP_SHA256_MGF1SHA1:
		ciphertext, err = encryptOAEPMixed(random, pub, msg, sha256.New(), sha1.New())
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %s", interfaces.ErrEncryptionFailed, scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrEncryptionFailed, scheme, err)
	}
	return ciphertext, nil
}

// DecryptWithScheme decrypts ciphertext with priv using exactly one scheme.
// Any padding or length failure is reported as ErrSchemeMismatch.
func DecryptWithScheme(priv *rsa.PrivateKey, ciphertext []byte, scheme interfaces.CipherScheme) ([]byte, error) {
	if len(ciphertext) != priv.Size() {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes, key modulus is %d", interfaces.ErrSchemeMismatch, len(ciphertext), priv.Size())
	}

	var (
		plaintext []byte
		err       error
	)
	switch scheme {
	case interfaces.PKCS1v1_5:
		plaintext, err = rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	case interfaces.OAEP_SHA256_MGF1SHA256, interfaces.OAEP_SHA1_MGF1SHA1, interfaces.OAEP_SHA256_MGF1SHA1:
		label, mgf, _ := OAEPHashes(scheme)
		plaintext, err = priv.Decrypt(rand.Reader, ciphertext, &rsa.OAEPOptions{Hash: label, MGFHash: mgf})
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %s", interfaces.ErrSchemeMismatch, scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrSchemeMismatch, scheme, err)
	}
	return plaintext, nil
}

var errMessageTooLong = errors.New("message too long for RSA key size")

// encryptOAEPMixed implements RSAES-OAEP (RFC 8017 section 7.1.1) with
// independent label and MGF1 hashes and an empty label.
func encryptOAEPMixed(random io.Reader, pub *rsa.PublicKey, msg []byte, labelHash, mgfHash hash.Hash) ([]byte, error) {
	if pub.N == nil || pub.E < 2 {
		return nil, errors.New("invalid public key")
	}

	k := pub.Size()
	hLen := labelHash.Size()
	if len(msg) > k-2*hLen-2 {
		return nil, errMessageTooLong
	}

	labelHash.Reset()
	lHash := labelHash.Sum(nil)

	em := make([]byte, k)
	seed := em[1 : 1+hLen]
	db := em[1+hLen:]

	copy(db[:hLen], lHash)
	db[len(db)-len(msg)-1] = 0x01
	copy(db[len(db)-len(msg):], msg)

	if _, err := io.ReadFull(random, seed); err != nil {
		return nil, err
	}

	mgf1XOR(db, mgfHash, seed)
	mgf1XOR(seed, mgfHash, db)

	m := new(big.Int).SetBytes(em)
	c := new(big.Int).Exp(m, big.NewInt(int64(pub.E)), pub.N)
	return c.FillBytes(make([]byte, k)), nil
}

// mgf1XOR XORs out with the MGF1 mask generated from seed.
func mgf1XOR(out []byte, h hash.Hash, seed []byte) {
	var counter [4]byte
	var digest []byte

	done := 0
	for done < len(out) {
		h.Reset()
		h.Write(seed)
		h.Write(counter[:])
		digest = h.Sum(digest[:0])

		n := subtle.XORBytes(out[done:], out[done:], digest)
		done += n

		for i := 3; i >= 0; i-- {
			counter[i]++
			if counter[i] != 0 {
				break
			}
		}
	}
}
