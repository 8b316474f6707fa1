package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Circulation
	LoansIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "circulation_loans_issued_total",
			Help: "Total loans issued",
		},
	)
	LoansReturned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "circulation_loans_returned_total",
			Help: "Total loans returned",
		},
	)
	Refusals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_refusals_total",
			Help: "Circulation and approval operations refused, by error code",
		},
		[]string{"code"},
	)
	ConsistencyViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "circulation_consistency_violations_total",
			Help: "Counter or status anomalies detected by the circulation engine",
		},
	)
	Retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_retries_total",
			Help: "Internal retries after a lost race or store conflict",
		},
		[]string{"op"}, // issue|collect|copies
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

var once sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			LoansIssued,
			LoansReturned,
			Refusals,
			ConsistencyViolations,
			Retries,
			WorkerQueueDepth,
		)
	})
}
