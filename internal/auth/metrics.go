package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// AuthAttempts counts register, login and wallet operations by outcome.
var AuthAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirp_auth_attempts_total",
		Help: "Total number of authentication operations by operation and result",
	},
	[]string{"operation", "result"},
)

// WalletVerifications counts signature checks by method, so operators can
// see how many wallet logins relied on the fallback path.
var WalletVerifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirp_wallet_verifications_total",
		Help: "Total number of wallet signature verifications by method and result",
	},
	[]string{"method", "result"},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthAttempts)
	reg.MustRegister(WalletVerifications)
}

func recordAttempt(operation string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	AuthAttempts.WithLabelValues(operation, result).Inc()
}

func recordWalletVerification(method Method, verified bool) {
	result := ResultSuccess
	if !verified {
		result = ResultFailure
	}
	WalletVerifications.WithLabelValues(string(method), result).Inc()
}
