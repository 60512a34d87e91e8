package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dinosaurs", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dinosaurs", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// HTTPRequests counts requests by dispatch kind (api, static, ops) and status code.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dinosaurs", Name: "http_requests_total", Help: "Number of handled HTTP requests by route kind and status code."},
		[]string{"kind", "code"},
	)
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dinosaurs", Name: "store_operations_total", Help: "Number of document store calls by operation and result."},
		[]string{"op", "result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(StoreOperations)
}

// ObserveStore records the outcome of a single store call.
func ObserveStore(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOperations.WithLabelValues(op, result).Inc()
}
