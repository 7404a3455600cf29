// Package metrics exposes Prometheus instruments for ledger recording.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/congo-pay/bitledger/internal/ledger"
)

const namespace = "bitledger"

// Recorder implements ledger.Observer on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	records  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder registers the ledger instruments plus the Go and process
// collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "records_total",
			Help:      "Ledger recording attempts by transaction type and outcome.",
		}, []string{"type", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "record_duration_seconds",
			Help:      "Time spent recording a ledger transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
}

// ObserveRecord implements ledger.Observer.
func (r *Recorder) ObserveRecord(txType ledger.TransactionType, outcome string, elapsed time.Duration) {
	label := string(txType)
	if label == "" {
		label = "unknown"
	}
	r.records.WithLabelValues(label, outcome).Inc()
	r.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// Registry returns the registry backing /metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
