// Package negotiator recovers a plaintext from a ciphertext whose RSA
// padding scheme is unknown by trying each scheme in a fixed order.
//
// The registration server does not tag the scheme on the wire, so the
// device tries interfaces.PreferenceOrder one scheme at a time and stops at
// the first that decrypts. Every attempt is recorded. A presence prompt
// that is declined or times out ends the negotiation immediately: other
// schemes would prompt again for the same key.
package negotiator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/ruteri/device-key-registration/interfaces"
	"github.com/ruteri/device-key-registration/metrics"
)

// AcceptFunc validates a candidate plaintext. A non-nil error makes the
// negotiator treat the attempt as a scheme mismatch and move on.
type AcceptFunc func(plaintext []byte) error

var errInvalidUTF8 = errors.New("plaintext is not valid UTF-8")

// AcceptUTF8 accepts only valid UTF-8 plaintexts.
func AcceptUTF8(plaintext []byte) error {
	if !utf8.Valid(plaintext) {
		return errInvalidUTF8
	}
	return nil
}

// Config configures a Negotiator.
type Config struct {
	// Schemes overrides interfaces.PreferenceOrder.
	Schemes []interfaces.CipherScheme
	// Accept optionally validates plaintexts.
	Accept AcceptFunc
}

// Result is a successful negotiation.
type Result struct {
	Plaintext []byte
	Scheme    interfaces.CipherScheme
	// Attempts lists every tried scheme in order; the last one succeeded.
	Attempts []interfaces.Attempt
}

// Negotiator performs sequential trial decryption. It holds no per-call
// state and may be shared.
type Negotiator struct {
	schemes []interfaces.CipherScheme
	accept  AcceptFunc
	log     *slog.Logger
}

// New creates a negotiator. Invalid schemes in cfg.Schemes are rejected.
func New(cfg Config, log *slog.Logger) (*Negotiator, error) {
	schemes := cfg.Schemes
	if len(schemes) == 0 {
		schemes = interfaces.PreferenceOrder
	}
	for _, s := range schemes {
		if !s.Valid() {
			return nil, fmt.Errorf("invalid cipher scheme %d in preference order", int(s))
		}
	}
	return &Negotiator{
		schemes: slices.Clone(schemes),
		accept:  cfg.Accept,
		log:     log,
	}, nil
}

// Schemes returns the order in which schemes are tried.
func (n *Negotiator) Schemes() []interfaces.CipherScheme {
	return slices.Clone(n.schemes)
}

// DecryptWithNegotiation tries each scheme in order against handle until one
// decrypts. It returns *interfaces.NegotiationError when no scheme succeeds
// or when the user or ctx aborts.
func (n *Negotiator) DecryptWithNegotiation(ctx context.Context, ciphertext []byte, provider interfaces.KeyProvider, handle interfaces.KeyHandle) (*Result, error) {
	started := time.Now()
	attempts := make([]interfaces.Attempt, 0, len(n.schemes))

	for _, scheme := range n.schemes {
		if err := ctx.Err(); err != nil {
			return nil, n.cancelled(attempts, contextAbort(err), started)
		}

		plaintext, err := provider.Decrypt(ctx, handle, ciphertext, scheme)
		rejected := false
		if err == nil && n.accept != nil {
			if rejectErr := n.accept(plaintext); rejectErr != nil {
				err = fmt.Errorf("%w: %v", interfaces.ErrSchemeMismatch, rejectErr)
				rejected = true
			}
		}

		if err == nil {
			attempts = append(attempts, interfaces.Attempt{Scheme: scheme})
			metrics.NegotiationAttempts.WithLabelValues(scheme.String(), metrics.OutcomeSuccess).Inc()
			metrics.ObserveNegotiation(metrics.OutcomeSuccess, scheme.String(), started)
			n.log.Debug("Negotiated cipher scheme",
				slog.String("scheme", scheme.String()),
				slog.Int("attempts", len(attempts)))
			return &Result{Plaintext: plaintext, Scheme: scheme, Attempts: attempts}, nil
		}

		attempts = append(attempts, interfaces.Attempt{Scheme: scheme, Err: err})

		if interfaces.IsAuthenticationAbort(err) {
			metrics.NegotiationAttempts.WithLabelValues(scheme.String(), metrics.OutcomeCancelled).Inc()
			return nil, n.cancelled(attempts, err, started)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			metrics.NegotiationAttempts.WithLabelValues(scheme.String(), metrics.OutcomeCancelled).Inc()
			return nil, n.cancelled(attempts, contextAbort(err), started)
		}

		outcome := metrics.OutcomeFailure
		if rejected {
			outcome = metrics.OutcomeRejected
		}
		metrics.NegotiationAttempts.WithLabelValues(scheme.String(), outcome).Inc()
		n.log.Debug("Cipher scheme attempt failed",
			slog.String("scheme", scheme.String()),
			"err", err)
	}

	metrics.ObserveNegotiation(metrics.OutcomeFailure, "", started)
	negErr := &interfaces.NegotiationError{Reason: interfaces.ErrAllSchemesFailed, Attempts: attempts}
	n.log.Warn("Cipher scheme negotiation failed", "err", negErr)
	return nil, negErr
}

func (n *Negotiator) cancelled(attempts []interfaces.Attempt, cause error, started time.Time) error {
	metrics.ObserveNegotiation(metrics.OutcomeCancelled, "", started)
	negErr := &interfaces.NegotiationError{
		Reason:   interfaces.ErrNegotiationCancelled,
		Attempts: attempts,
		Cause:    cause,
	}
	n.log.Info("Cipher scheme negotiation cancelled", "err", negErr)
	return negErr
}

// contextAbort maps a bare context error onto the authentication errors.
func contextAbort(err error) error {
	if interfaces.IsAuthenticationAbort(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", interfaces.ErrAuthenticationTimeout, err)
	}
	return fmt.Errorf("%w: %v", interfaces.ErrAuthenticationCancelled, err)
}
