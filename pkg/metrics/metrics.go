package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	querycsv = "querycsv"

	// Upload metrics
	uploadRowsTotal = "upload_rows_total"
	uploadJobsTotal = "upload_jobs_total"

	// Download metrics
	downloadsTotal = "downloads_total"

	// Labels
	schemaLabel = "schema"
	resultLabel = "result"
	statusLabel = "status"
)

// Row result label values.
const (
	RowResultSuccess = "success"
	RowResultFailed  = "failed"
)

var uploadRowsTotalLabels = []string{
	schemaLabel,
	resultLabel,
}

var uploadJobsTotalLabels = []string{
	schemaLabel,
	statusLabel,
}

var downloadsTotalLabels = []string{
	schemaLabel,
}

/**
* Metrics definition
**/
var uploadRowsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: querycsv,
		Name:      uploadRowsTotal,
		Help:      "number of processed upload rows by result",
	},
	uploadRowsTotalLabels,
)

var uploadJobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: querycsv,
		Name:      uploadJobsTotal,
		Help:      "number of upload jobs by terminal status",
	},
	uploadJobsTotalLabels,
)

var downloadsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: querycsv,
		Name:      downloadsTotal,
		Help:      "number of collection csv downloads",
	},
	downloadsTotalLabels,
)

func AddUploadRows(schema, result string, count int) {
	labels := prometheus.Labels{
		schemaLabel: schema,
		resultLabel: result,
	}
	uploadRowsTotalMetric.With(labels).Add(float64(count))
}

func IncreaseUploadJobsTotalMetric(schema, status string) {
	labels := prometheus.Labels{
		schemaLabel: schema,
		statusLabel: status,
	}
	uploadJobsTotalMetric.With(labels).Inc()
}

func IncreaseDownloadsTotalMetric(schema string) {
	labels := prometheus.Labels{
		schemaLabel: schema,
	}
	downloadsTotalMetric.With(labels).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(uploadRowsTotalMetric)
	prometheus.MustRegister(uploadJobsTotalMetric)
	prometheus.MustRegister(downloadsTotalMetric)
}
