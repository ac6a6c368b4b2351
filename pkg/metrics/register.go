package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeError    = "error"
	OutcomeStale    = "stale"
)

// RegisterMetrics tracks the POS engine: checkout attempts, catalog queries,
// receipt rendering and live sessions.
type RegisterMetrics struct {
	checkouts        *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec
	catalogQueries   *prometheus.CounterVec
	receiptQR        *prometheus.CounterVec
	backofficeCalls  *prometheus.HistogramVec
	sessions         prometheus.Gauge
}

// NewRegisterMetrics registers the POS metrics on the provided registerer.
func NewRegisterMetrics(reg prometheus.Registerer) *RegisterMetrics {
	if reg == nil {
		return &RegisterMetrics{}
	}
	m := &RegisterMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Checkout submissions by outcome and payment method.",
		}, []string{"outcome", "payment_method"}),
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Wall time of sale submission to the back office.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"outcome"}),
		catalogQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_queries_total",
			Help:      "Catalog searches by outcome; stale counts responses dropped for arriving out of order.",
		}, []string{"outcome"}),
		receiptQR: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_qr_total",
			Help:      "Receipt QR code encodings by outcome.",
		}, []string{"outcome"}),
		backofficeCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backoffice_request_duration_seconds",
			Help:      "Back-office REST calls by endpoint and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Register sessions currently held in memory.",
		}),
	}
	reg.MustRegister(m.checkouts, m.checkoutDuration, m.catalogQueries, m.receiptQR, m.backofficeCalls, m.sessions)
	return m
}

// ObserveCheckout records one sale submission.
func (m *RegisterMetrics) ObserveCheckout(outcome, paymentMethod string, duration time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome), normalizeLabel(paymentMethod)).Inc()
	m.checkoutDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCatalogQuery counts a catalog search by outcome.
func (m *RegisterMetrics) IncCatalogQuery(outcome string) {
	if m == nil || m.catalogQueries == nil {
		return
	}
	m.catalogQueries.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncReceiptQR counts a QR encoding attempt.
func (m *RegisterMetrics) IncReceiptQR(outcome string) {
	if m == nil || m.receiptQR == nil {
		return
	}
	m.receiptQR.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveBackoffice records a back-office call.
func (m *RegisterMetrics) ObserveBackoffice(endpoint, status string, duration time.Duration) {
	if m == nil || m.backofficeCalls == nil {
		return
	}
	m.backofficeCalls.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(status)).Observe(duration.Seconds())
}

// SetSessions publishes the number of live register sessions.
func (m *RegisterMetrics) SetSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}
