package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cab_booking", Name: "bookings_created_total", Help: "Total bookings created"})
	BookingsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cab_booking", Name: "bookings_cancelled_total", Help: "Total bookings cancelled"})
	PaymentsSettledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cab_booking", Name: "payments_settled_total", Help: "Settlement attempts by outcome"},
		[]string{"method", "status"},
	)
	FleetGrownTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cab_booking", Name: "fleet_grown_total", Help: "Cabs created on demand when a type was exhausted"},
		[]string{"type"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cab_booking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cab_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
