package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Database metrics
	dbStatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_statements_total",
			Help: "Total SQL statements executed by ledger sessions",
		},
		[]string{"operation", "status"}, // exec|query|query_row, ok|error
	)

	dbStatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_statement_duration_seconds",
			Help:    "SQL statement latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	dbSlowStatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_statements_total",
			Help: "SQL statements that exceeded the slow-query threshold",
		},
		[]string{"operation"},
	)

	dbConnectAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_connect_attempts_total",
			Help: "Database dial attempts",
		},
		[]string{"status"}, // success, failed
	)

	dbReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_reconnects_total",
			Help: "Connections replaced after a failed liveness probe",
		},
		[]string{"status"}, // success, failed, refused_in_transaction
	)

	dbTransactionOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_transaction_operations_total",
			Help: "Transaction coordinator operations by statement issued",
		},
		[]string{"operation", "status"}, // begin|savepoint|commit|release|rollback|rollback_to, ok|error
	)
)

// RecordDBStatement records one executed statement
func RecordDBStatement(operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	dbStatementsTotal.WithLabelValues(operation, status).Inc()
	dbStatementDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSlowStatement counts a statement over the slow-query threshold
func RecordSlowStatement(operation string) {
	dbSlowStatementsTotal.WithLabelValues(operation).Inc()
}

// RecordConnectAttempt records the outcome of a single dial
func RecordConnectAttempt(success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	dbConnectAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordReconnect records a reconnect triggered by a failed probe
func RecordReconnect(status string) {
	dbReconnectsTotal.WithLabelValues(status).Inc()
}

// RecordTransactionOp records a BEGIN/SAVEPOINT/COMMIT/RELEASE/ROLLBACK statement
func RecordTransactionOp(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	dbTransactionOpsTotal.WithLabelValues(operation, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records Prometheus metrics for every request served by next
func HTTPMetricsMiddleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
