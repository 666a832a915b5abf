// Package metrics exposes Prometheus instrumentation for student imports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roster"

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Total number of finished imports broken down by status.",
	}, []string{"status"})

	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time of an import from start to result.",
		Buckets: []float64{
			0.01, 0.05, 0.1, 0.25,
			0.5, 1, 2.5, 5,
			10, 30, 60, 300,
		},
	}, []string{"status"})

	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "submissions_total",
		Help:      "Total number of student submissions broken down by result.",
	}, []string{"result"})

	batchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "batch_latency_seconds",
		Help:      "Latency of one concurrent submission batch.",
		Buckets: []float64{
			0.001, 0.005, 0.01, 0.025,
			0.05, 0.1, 0.25, 0.5,
			1, 2, 5,
		},
	})

	rowErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "row_errors_total",
		Help:      "Total number of rows rejected by validation or deduplication.",
	})

	activeImports = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "active",
		Help:      "Current number of imports holding a pipeline slot.",
	})
)

// RecordImport counts a finished import.
func RecordImport(status string, d time.Duration) {
	labels := prometheus.Labels{"status": status}
	importsTotal.With(labels).Inc()
	importDuration.With(labels).Observe(d.Seconds())
}

// RecordSubmission counts one store submission.
func RecordSubmission(success bool) {
	result := "failed"
	if success {
		result = "created"
	}
	submissionsTotal.WithLabelValues(result).Inc()
}

// ObserveBatch records the latency of one submission batch.
func ObserveBatch(d time.Duration) {
	batchLatency.Observe(d.Seconds())
}

// AddRowErrors counts rows rejected before submission.
func AddRowErrors(n int) {
	if n > 0 {
		rowErrorsTotal.Add(float64(n))
	}
}

// ImportStarted marks an import as holding a slot.
func ImportStarted() { activeImports.Inc() }

// ImportFinished releases the mark set by ImportStarted.
func ImportFinished() { activeImports.Dec() }

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
