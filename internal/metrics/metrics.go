package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lawanjudol_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// YouTube Metrics
	YouTubeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_youtube_requests_total",
			Help: "Total number of YouTube Data API requests",
		},
		[]string{"endpoint", "status"},
	)

	YouTubeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lawanjudol_youtube_request_duration_seconds",
			Help:    "YouTube Data API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	YouTubeQuotaExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_youtube_quota_exceeded_total",
			Help: "Number of operations aborted because the YouTube quota was exhausted",
		},
		[]string{"operation"},
	)

	PaginationRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lawanjudol_pagination_requests",
			Help:    "Number of page requests made by one paginated fetch",
			Buckets: prometheus.LinearBuckets(1, 2, 11),
		},
		[]string{"source"},
	)

	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_token_refreshes_total",
			Help: "Total number of OAuth access token refresh attempts",
		},
		[]string{"outcome"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Quota Metrics
	QuotaConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_quota_consumed_total",
			Help: "Units of daily quota consumed",
		},
		[]string{"kind"},
	)

	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_quota_rejections_total",
			Help: "Requests rejected because the daily quota was used up",
		},
		[]string{"kind"},
	)

	QuotaStoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_quota_store_errors_total",
			Help: "Quota ledger storage failures",
		},
		[]string{"operation"},
	)

	// Analysis Metrics
	AnalysisJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_analysis_jobs_total",
			Help: "Comment analysis jobs by terminal status",
		},
		[]string{"status"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lawanjudol_analysis_duration_seconds",
			Help:    "Duration of one comment analysis job",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
		},
	)

	ModerationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawanjudol_moderation_actions_total",
			Help: "Comment moderation calls by requested status and outcome",
		},
		[]string{"status", "outcome"},
	)

	// Queue Metrics
	AnalysisQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lawanjudol_analysis_queue_depth",
			Help: "Messages waiting in the analysis queues",
		},
		[]string{"queue"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordYouTubeRequest records one upstream call
func RecordYouTubeRequest(endpoint, status string, duration float64) {
	YouTubeRequestsTotal.WithLabelValues(endpoint, status).Inc()
	YouTubeRequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordQuotaExceeded records an operation aborted by upstream quota exhaustion
func RecordQuotaExceeded(operation string) {
	YouTubeQuotaExceededTotal.WithLabelValues(operation).Inc()
}

// RecordPagination records how many pages a fetch needed
func RecordPagination(source string, requests int) {
	PaginationRequests.WithLabelValues(source).Observe(float64(requests))
}

// RecordTokenRefresh records a refresh attempt outcome
func RecordTokenRefresh(outcome string) {
	TokenRefreshesTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheAccess records a cache access
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordQuotaConsumed records consumed daily quota
func RecordQuotaConsumed(kind string, count int) {
	QuotaConsumedTotal.WithLabelValues(kind).Add(float64(count))
}

// RecordQuotaRejection records a request refused by the ledger
func RecordQuotaRejection(kind string) {
	QuotaRejectionsTotal.WithLabelValues(kind).Inc()
}

// RecordQuotaStoreError records a ledger storage failure
func RecordQuotaStoreError(operation string) {
	QuotaStoreErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordAnalysisCompleted records a finished analysis job
func RecordAnalysisCompleted(status string, duration float64) {
	AnalysisJobsTotal.WithLabelValues(status).Inc()
	AnalysisDuration.Observe(duration)
}

// RecordModeration records one moderation call
func RecordModeration(status, outcome string) {
	ModerationActionsTotal.WithLabelValues(status, outcome).Inc()
}

// SetQueueDepth records the analysis and dead letter queue depths
func SetQueueDepth(queueDepth, dlqDepth int) {
	AnalysisQueueDepth.WithLabelValues("analysis").Set(float64(queueDepth))
	AnalysisQueueDepth.WithLabelValues("dead_letter").Set(float64(dlqDepth))
}
