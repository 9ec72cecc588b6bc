// Package metrics exposes Prometheus collectors for catalog fetches, the cache,
// similarity index builds, and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog fetch metrics
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "animerec_fetch_duration_seconds",
			Help:    "Duration of remote catalog fetch sessions in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	FetchPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animerec_fetch_pages_total",
			Help: "Total number of catalog pages requested, by outcome",
		},
		[]string{"outcome"}, // "ok", "failed"
	)

	FetchRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animerec_fetch_records_total",
			Help: "Total number of catalog records accepted from the remote API",
		},
	)

	// Cache metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animerec_cache_lookups_total",
			Help: "Total number of catalog cache lookups, by result",
		},
		[]string{"result"}, // "hit", "miss", "stale", "unreadable"
	)

	CacheSaveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animerec_cache_save_errors_total",
			Help: "Total number of failed catalog cache writes",
		},
	)

	CatalogRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animerec_catalog_records",
			Help: "Number of records in the current catalog snapshot",
		},
	)

	// Similarity index metrics
	IndexBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "animerec_index_build_duration_seconds",
			Help:    "Duration of similarity matrix builds in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"embedder"},
	)

	IndexMemoTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animerec_index_memo_total",
			Help: "Similarity matrix memo lookups, by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Recommendation metrics
	RecommendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animerec_recommend_total",
			Help: "Total number of recommendation requests, by outcome",
		},
		[]string{"outcome"}, // "ok", "not_found", "error"
	)

	SuggestTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animerec_suggest_total",
			Help: "Total number of title suggestion requests",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animerec_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "animerec_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animerec_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordFetchPage counts one page request.
func RecordFetchPage(ok bool) {
	if ok {
		FetchPagesTotal.WithLabelValues("ok").Inc()
		return
	}
	FetchPagesTotal.WithLabelValues("failed").Inc()
}

// RecordFetchSession records the duration and yield of a network fetch session.
func RecordFetchSession(duration time.Duration, records int) {
	FetchDuration.Observe(duration.Seconds())
	FetchRecordsTotal.Add(float64(records))
}

// RecordCacheLookup counts a cache lookup with the given result label.
func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordIndexBuild records a completed matrix build.
func RecordIndexBuild(embedder string, duration time.Duration) {
	IndexBuildDuration.WithLabelValues(embedder).Observe(duration.Seconds())
}

// RecordIndexMemo counts a memo hit or miss.
func RecordIndexMemo(hit bool) {
	if hit {
		IndexMemoTotal.WithLabelValues("hit").Inc()
		return
	}
	IndexMemoTotal.WithLabelValues("miss").Inc()
}

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
