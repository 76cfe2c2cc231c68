package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fee collection metrics
	feeCollectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fee_collections_total",
		Help: "Total fee collection attempts",
	}, []string{
		"method", // cash, bank_transfer, mobile_money, cheque, card
		"status", // success, or the failure error code
	})

	feeAmountCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fee_amount_cents_total",
		Help: "Total committed fee amount in cents",
	}, []string{
		"method",
	})

	feeCollectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fee_collection_duration_seconds",
		Help: "Time to record a fee payment and its invoice (end-to-end, incl. retries)",
		// Buckets: 10ms to 30s
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"status",
	})

	// Identifier sequence metrics
	sequenceNumbersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_numbers_generated_total",
		Help: "Identifiers handed out per series",
	}, []string{
		"series", // receipt, invoice, admission, employee
	})

	sequenceCollisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_collisions_total",
		Help: "Generated identifiers rejected by a unique constraint",
	}, []string{
		"series",
	})

	// Registry metrics
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registrations_total",
		Help: "Student admissions and employee hires",
	}, []string{
		"kind",   // student, employee
		"status", // success, or the failure error code
	})
)

// RecordFeeCollection records one CollectFee call
func RecordFeeCollection(method, status string, amountCents int64, duration float64) {
	feeCollectionsTotal.WithLabelValues(method, status).Inc()
	feeCollectionDuration.WithLabelValues(status).Observe(duration)

	// Only committed payments count toward revenue
	if status == "success" {
		feeAmountCents.WithLabelValues(method).Add(float64(amountCents))
	}
}

// RecordSequenceNumber records an identifier handed out by the generator
func RecordSequenceNumber(series string) {
	sequenceNumbersTotal.WithLabelValues(series).Inc()
}

// RecordSequenceCollision records a generated identifier that lost its race
func RecordSequenceCollision(series string) {
	sequenceCollisionsTotal.WithLabelValues(series).Inc()
}

// RecordRegistration records a student admission or employee hire
func RecordRegistration(kind, status string) {
	registrationsTotal.WithLabelValues(kind, status).Inc()
}
