package api

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "farmwatch",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "farmwatch",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
}

// observe records one completed request. outcome is "ok" or the error kind.
func observe(op string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			outcome = string(apiErr.Kind)
		}
	}
	requestsTotal.WithLabelValues(op, outcome).Inc()
	requestDuration.WithLabelValues(op).Observe(seconds)
}
