// Package metrics exposes Prometheus counters for the verification and
// reward pipeline. Collectors are registered on the default registry; serving
// them is the caller's choice.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VerificationsTotal counts completed verification attempts by outcome
	// ("awarded" or "rejected").
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "praychain",
		Name:      "verifications_total",
		Help:      "Completed verification attempts by outcome.",
	}, []string{"outcome"})

	// FraudTotal counts rejected submissions by failure reason.
	FraudTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "praychain",
		Name:      "fraud_total",
		Help:      "Rejected submissions by failure reason.",
	}, []string{"reason"})

	// TokensAwardedTotal accumulates tokens credited to ledger accounts.
	TokensAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "praychain",
		Name:      "tokens_awarded_total",
		Help:      "Total tokens credited to ledger accounts.",
	})

	// SettlementFailuresTotal counts settlement transfers that failed.
	SettlementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "praychain",
		Name:      "settlement_failures_total",
		Help:      "Settlement transfers that failed.",
	})
)
