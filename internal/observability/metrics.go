// Package observability registers and records Prometheus metrics for the service.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	ingestEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_entries_total",
			Help: "Ingested source entries by outcome.",
		},
		[]string{"outcome"},
	)

	catalogItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_items",
			Help: "Number of catalogued items per collection.",
		},
		[]string{"collection"},
	)

	queryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "Duration of catalog queries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"predicate"},
	)

	queryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_total",
			Help: "Query result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	storeOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_op_duration_seconds",
			Help:    "Duration of catalog store operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "status"},
	)

	rescanEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescan_events_total",
			Help: "Processed re-scan events by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func IncIngested()   { ingestEntriesTotal.WithLabelValues("ingested").Inc() }
func IncSkipped()    { ingestEntriesTotal.WithLabelValues("skipped").Inc() }
func IncIngestFail() { ingestEntriesTotal.WithLabelValues("failed").Inc() }

func SetCollectionSize(collection string, n int) {
	catalogItems.WithLabelValues(collection).Set(float64(n))
}

func ObserveQuery(predicate string, durationSeconds float64) {
	if predicate == "" {
		predicate = "none"
	}
	queryDurationSeconds.WithLabelValues(predicate).Observe(durationSeconds)
}

func IncQueryCacheHit()  { queryCacheTotal.WithLabelValues("hit").Inc() }
func IncQueryCacheMiss() { queryCacheTotal.WithLabelValues("miss").Inc() }

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storeOpDurationSeconds.WithLabelValues(op, status).Observe(durationSeconds)
}

func ObserveRescan(err error) {
	if err != nil {
		rescanEventsTotal.WithLabelValues("error").Inc()
		return
	}
	rescanEventsTotal.WithLabelValues("ok").Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
