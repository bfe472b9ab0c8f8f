package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: ok|insufficient|conflict|error
	)
	LedgerRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_retries_total",
			Help: "Store transactions retried after a lock conflict",
		},
	)

	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Threshold transitions applied",
		},
		[]string{"entity", "state"}, // episode RELEASED, review EXECUTED|CANCELED
	)

	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_subscribers",
			Help: "Live event stream connections",
		},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events handed to the dispatcher",
		},
		[]string{"type"},
	)
	SlowConsumersDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_slow_consumers_dropped_total",
			Help: "Connections closed because their queue overflowed",
		},
	)
)

// Handler serves /metrics.
var Handler = promhttp.Handler

var once sync.Once

// Init registers the collectors once per process.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestLatency,
			LedgerOperations,
			LedgerRetries,
			Settlements,
			StreamSubscribers,
			EventsPublished,
			SlowConsumersDropped,
		)
	})
}
