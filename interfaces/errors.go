package interfaces

import (
	"errors"
	"fmt"
	"strings"
)

// Codec errors. Structural; a malformed key must be re-submitted, not retried.
var (
	// ErrMalformedDER is returned when a key is not a well-formed DER structure.
	ErrMalformedDER = errors.New("malformed DER")

	// ErrUnsupportedKeySize is returned when an encoded length does not fit the
	// two-byte long form.
	ErrUnsupportedKeySize = errors.New("unsupported key size")
)

// Key provider errors.
var (
	ErrKeyNotFound             = errors.New("key not found")
	ErrAuthenticationCancelled = errors.New("authentication cancelled")
	ErrAuthenticationTimeout   = errors.New("authentication timed out")

	// ErrSchemeMismatch is returned when ciphertext length or padding is
	// incompatible with the requested scheme.
	ErrSchemeMismatch = errors.New("cipher scheme mismatch")

	ErrHardwareUnavailable = errors.New("secure hardware unavailable")
)

// Negotiation errors, carried by *NegotiationError.
var (
	ErrAllSchemesFailed     = errors.New("all cipher schemes failed")
	ErrNegotiationCancelled = errors.New("negotiation cancelled")
)

// Registration errors.
var (
	ErrInvalidKey        = errors.New("invalid public key")
	ErrEncryptionFailed  = errors.New("encryption failed")
	ErrSecretUnavailable = errors.New("secret unavailable")
)

// IsAuthenticationAbort reports whether err is a user-presence cancellation
// or timeout. Such errors must not be retried with other parameters.
func IsAuthenticationAbort(err error) bool {
	return errors.Is(err, ErrAuthenticationCancelled) || errors.Is(err, ErrAuthenticationTimeout)
}

// Attempt records one trial decryption. Err is nil for the successful attempt.
type Attempt struct {
	Scheme CipherScheme
	Err    error
}

// NegotiationError is returned when scheme negotiation does not produce a
// plaintext. Attempts holds the full ordered trial history.
type NegotiationError struct {
	// Reason is ErrAllSchemesFailed or ErrNegotiationCancelled.
	Reason   error
	Attempts []Attempt
	// Cause is the error that stopped a cancelled negotiation.
	Cause error
}

// Error lists every attempted scheme with its failure.
func (e *NegotiationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason.Error())
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if len(e.Attempts) > 0 {
		b.WriteString(" [")
		for i, a := range e.Attempts {
			if i > 0 {
				b.WriteString("; ")
			}
			if a.Err == nil {
				fmt.Fprintf(&b, "%s: ok", a.Scheme)
			} else {
				fmt.Fprintf(&b, "%s: %v", a.Scheme, a.Err)
			}
		}
		b.WriteString("]")
	}
	return b.String()
}

// Unwrap exposes both the reason and the cause to errors.Is.
func (e *NegotiationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Reason, e.Cause}
	}
	return []error{e.Reason}
}
