// Package metrics provides Prometheus metrics for the scheduling engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	BookingsCreated  prometheus.Counter
	BookingConflicts prometheus.Counter
	Cancellations    prometheus.Counter
	Reschedules      prometheus.Counter
	BookingDuration  prometheus.Histogram
}

// New creates and registers all metrics. Call once per process.
func New() *Metrics {
	m := &Metrics{
		BookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_booked_total",
			Help: "Total appointments successfully booked",
		}),
		BookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Total booking or reschedule attempts that lost a slot race",
		}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_cancelled_total",
			Help: "Total appointments cancelled",
		}),
		Reschedules: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_rescheduled_total",
			Help: "Total appointments moved to a new slot",
		}),
		BookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_duration_seconds",
			Help:    "Booking transaction duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}

	prometheus.MustRegister(
		m.BookingsCreated,
		m.BookingConflicts,
		m.Cancellations,
		m.Reschedules,
		m.BookingDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
