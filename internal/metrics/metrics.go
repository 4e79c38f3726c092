// Package metrics exposes Prometheus instrumentation for the storefront.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Checkout outcomes.
const (
	CheckoutRedirected      = "redirected"
	CheckoutEmptyCart       = "empty_cart"
	CheckoutTooLarge        = "too_large"
	CheckoutGatewayError    = "gateway_error"
	CheckoutUnauthenticated = "unauthenticated"
	CheckoutNotSubmitted    = "not_submitted"
)

// Reconciliation outcomes.
const (
	ReconcilePaid        = "paid"
	ReconcileNotPaid     = "not_paid"
	ReconcileNotFound    = "not_found"
	ReconcileVerifyError = "verify_error"
	ReconcileSkipped     = "skipped"
)

var (
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CheckoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Payment session reconciliations by outcome.",
		},
		[]string{"outcome"},
	)
)

// Registry holds every storefront collector plus Go and process metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RequestTotal,
		RequestDuration,
		CheckoutsTotal,
		ReconciliationsTotal,
	)
}

func ObserveCheckout(outcome string) {
	CheckoutsTotal.WithLabelValues(outcome).Inc()
}

func ObserveReconciliation(outcome string) {
	ReconciliationsTotal.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := StartTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := routePattern(r)
		RequestTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(timer.Seconds())
	})
}

// routePattern keeps label cardinality bounded; unmatched paths collapse.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
