package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edp_records_extracted_total",
			Help: "Records fetched from the source API",
		},
		[]string{"entity"},
	)
	RowsTransformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edp_rows_transformed_total",
			Help: "Flat rows produced by the transformer",
		},
		[]string{"entity"},
	)
	RecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edp_records_skipped_total",
			Help: "Malformed records skipped under the skip policy",
		},
		[]string{"entity"},
	)
	RowsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edp_rows_loaded_total",
			Help: "Rows written by warehouse load jobs",
		},
		[]string{"entity"},
	)
	RetryAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edp_retry_attempts_total",
			Help: "Transient failures that triggered a retry",
		},
	)
)

// Start registers the pipeline metrics and serves /metrics in the
// background.
func Start(port string) {
	prometheus.MustRegister(RecordsExtracted, RowsTransformed, RecordsSkipped, RowsLoaded, RetryAttempts)
	http.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(":"+port, nil)
}
