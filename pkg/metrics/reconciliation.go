package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics counts gateway verification activity.
type ReconciliationMetrics struct {
	verifications    *prometheus.CounterVec
	paymentsRecorded *prometheus.CounterVec
	gatewayErrors    *prometheus.CounterVec
}

// NewReconciliationMetrics registers the reconciliation metrics on the provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_verifications_total",
		Help: "Gateway verification attempts by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	paymentsRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_payments_recorded_total",
		Help: "Payment ledger rows created during reconciliation, by source artifact.",
	}, []string{"gateway", "source"})
	gatewayErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_gateway_errors_total",
		Help: "Gateway calls that failed during reconciliation.",
	}, []string{"gateway", "operation"})
	reg.MustRegister(verifications, paymentsRecorded, gatewayErrors)
	return &ReconciliationMetrics{
		verifications:    verifications,
		paymentsRecorded: paymentsRecorded,
		gatewayErrors:    gatewayErrors,
	}
}

// IncVerification counts one verification attempt.
func (m *ReconciliationMetrics) IncVerification(gateway, outcome string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(gateway, outcome).Inc()
}

// IncPaymentRecorded counts one ledger row created.
func (m *ReconciliationMetrics) IncPaymentRecorded(gateway, source string) {
	if m == nil || m.paymentsRecorded == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(gateway, source).Inc()
}

// IncGatewayError counts one failed gateway call.
func (m *ReconciliationMetrics) IncGatewayError(gateway, operation string) {
	if m == nil || m.gatewayErrors == nil {
		return
	}
	m.gatewayErrors.WithLabelValues(gateway, operation).Inc()
}
