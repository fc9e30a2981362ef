// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm25_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pm25_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm25_mutations_total",
			Help: "Total number of successful table mutations",
		},
		[]string{"op"}, // "add", "update", "delete"
	)

	DatasetRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm25_dataset_records",
			Help: "Number of records in the published table",
		},
	)

	DatasetMeasurement = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pm25_dataset_measurement",
			Help: "PM2.5 aggregates over the published table",
		},
		[]string{"stat"}, // "min", "max", "mean"
	)
)

// RecordRequest records a served HTTP request.
func RecordRequest(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordMutation counts a successful add, update or delete.
func RecordMutation(op string) {
	Mutations.WithLabelValues(op).Inc()
}

// SetDataset publishes the dataset gauges. The aggregates are reset when the
// table is empty.
func SetDataset(records int, minV, maxV, mean float64) {
	DatasetRecords.Set(float64(records))
	if records == 0 {
		DatasetMeasurement.Reset()
		return
	}
	DatasetMeasurement.WithLabelValues("min").Set(minV)
	DatasetMeasurement.WithLabelValues("max").Set(maxV)
	DatasetMeasurement.WithLabelValues("mean").Set(mean)
}
