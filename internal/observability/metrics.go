package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlmeter_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawlmeter_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// detections per pipeline stage
	DetectionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlmeter_detections_total",
			Help: "Total positive detections per stage",
		},
		[]string{"method"},
	)

	// verdicts per recommended action
	VerdictCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlmeter_verdicts_total",
			Help: "Total verdicts per action",
		},
		[]string{"action"},
	)

	// distribution of final verdict confidence
	ConfidenceHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawlmeter_verdict_confidence",
			Help:    "Histogram of aggregate verdict confidence",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// revenue attributed per bot type
	RevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlmeter_revenue_total",
			Help: "Total revenue attributed to detections",
		},
		[]string{"bot_type"},
	)

	// end-to-end pipeline latency
	PipelineLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawlmeter_pipeline_duration_seconds",
			Help:    "Duration of full pipeline evaluations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	// pipeline evaluations cut short by the deadline
	PipelineTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawlmeter_pipeline_timeouts_total",
			Help: "Total pipeline evaluations that hit the deadline",
		},
	)

	// rate limit checks per key class (ip or license)
	RateLimitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlmeter_ratelimit_requests_total",
			Help: "Total rate limit checks per key class",
		},
		[]string{"key_class"},
	)

	// rate limit rejections per key class
	RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlmeter_ratelimit_hits_total",
			Help: "Total rate limit rejections per key class",
		},
		[]string{"key_class"},
	)

	// backing store failures (history, ratelimit, analytics)
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlmeter_store_errors_total",
			Help: "Total backing store errors",
		},
		[]string{"store"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		DetectionCount,
		VerdictCount,
		ConfidenceHistogram,
		RevenueTotal,
		PipelineLatency,
		PipelineTimeouts,
		RateLimitRequests,
		RateLimitHits,
		StoreErrors,
	)
}
