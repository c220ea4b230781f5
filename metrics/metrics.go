// Package metrics holds the Prometheus collectors of the registration
// server and the device client, and a small server exposing them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "devicekey"

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

var (
	// Registrations counts POST /register requests by outcome and key format.
	Registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Device key registrations by outcome and key format.",
	}, []string{"outcome", "format"})

	// NegotiationAttempts counts individual trial decryptions.
	NegotiationAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "negotiation_attempts_total",
		Help:      "Trial decryptions by cipher scheme and outcome.",
	}, []string{"scheme", "outcome"})

	// Negotiations counts completed negotiations by outcome and winning scheme.
	Negotiations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "negotiations_total",
		Help:      "Cipher scheme negotiations by outcome and resulting scheme.",
	}, []string{"outcome", "scheme"})

	NegotiationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "negotiation_duration_seconds",
		Help:      "Wall time of a negotiation including presence prompts.",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	})

	// SecretFetches counts reads of the protected secret from storage.
	SecretFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "secret_fetches_total",
		Help:      "Reads of the protected secret by outcome.",
	}, []string{"outcome"})
)

func all() []prometheus.Collector {
	return []prometheus.Collector{
		Registrations,
		NegotiationAttempts,
		Negotiations,
		NegotiationDuration,
		SecretFetches,
	}
}

// ObserveNegotiation records a finished negotiation.
func ObserveNegotiation(outcome, scheme string, started time.Time) {
	Negotiations.WithLabelValues(outcome, scheme).Inc()
	NegotiationDuration.Observe(time.Since(started).Seconds())
}
