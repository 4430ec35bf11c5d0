package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	rlRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monarcade_rate_limiter_requests_total",
			Help: "API requests seen by the rate limiter, by endpoint.",
		},
		[]string{"endpoint"},
	)
	rlBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monarcade_rate_limiter_blocked_total",
			Help: "API requests blocked by the rate limiter, by endpoint.",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(rlRequests)
	prometheus.MustRegister(rlBlocked)
}
