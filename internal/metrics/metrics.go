package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aquaflow",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	storeWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aquaflow",
			Name:      "store_writes_total",
			Help:      "Record store writes by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aquaflow",
			Name:      "store_lock_wait_seconds",
			Help:      "Time spent waiting for the store write lock.",
			Buckets:   []float64{.001, .005, .025, .1, .5, 1, 5, 30},
		},
	)

	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aquaflow",
			Name:      "client_dispatch_total",
			Help:      "Client persistence dispatches by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, storeWrites, lockWait, dispatches)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncStoreWrite(kind, outcome string) {
	storeWrites.WithLabelValues(kind, outcome).Inc()
}

func ObserveLockWait(d time.Duration) {
	lockWait.Observe(d.Seconds())
}

func IncDispatch(kind, outcome string) {
	dispatches.WithLabelValues(kind, outcome).Inc()
}
