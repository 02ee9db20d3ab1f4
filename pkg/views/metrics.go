package views

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// hashRuntime instruments one specific operation, view hash recomputation
// (collection, queue and register views all report into it through
// MeasureHash), rather than registering a general-purpose metrics
// subsystem: it is observability of a single named hot path, not a
// catch-all instrumentation layer.
var hashRuntime = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "colview",
	Name:      "collection_view_hash_runtime_seconds",
	Help:      "Wall-clock time spent recomputing a collection view's hash.",
	Buckets:   []float64{0.001, 0.003, 0.01, 0.03, 0.1, 0.2, 0.3, 0.4, 0.5, 0.75, 1.0, 2.0, 5.0},
})

func init() {
	prometheus.MustRegister(hashRuntime)
}

// MeasureHash times a hash recomputation and records it to hashRuntime. It
// is exported so that collection and queue views in sibling packages can
// share the same histogram rather than each registering their own.
func MeasureHash(f func() ([]byte, error)) ([]byte, error) {
	start := time.Now()
	digest, err := f()
	hashRuntime.Observe(time.Since(start).Seconds())
	return digest, err
}
