// Package metrics holds the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ClaimsAccepted counts successfully rewarded claims by task type.
	ClaimsAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reward_claims_accepted_total",
		Help: "Reward claims accepted and credited, by task type.",
	}, []string{"task_type"})

	// ClaimsDenied counts rejected claims by denial reason class.
	ClaimsDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reward_claims_denied_total",
		Help: "Reward claims denied, by reason.",
	}, []string{"reason"})

	// ViolationsReported counts ingested abuse signals by type.
	ViolationsReported = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "violations_reported_total",
		Help: "Abuse signals recorded in the violation ledger, by type.",
	}, []string{"type"})

	// Suspensions counts automatic account suspensions.
	Suspensions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "account_suspensions_total",
		Help: "Accounts automatically suspended by the violation policy.",
	})
)

func init() {
	prometheus.MustRegister(ClaimsAccepted, ClaimsDenied, ViolationsReported, Suspensions)
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
