package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinksDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_links_discovered_total",
		Help: "Total number of links surfaced by the discovery cascade",
	}, []string{"site", "strategy"})

	LinksCrawled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_links_crawled_total",
		Help: "Total number of links that reached a terminal crawl outcome",
	}, []string{"site", "outcome"})

	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crawler_extraction_duration_seconds",
		Help:    "Duration of content extraction attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"site"})

	ExtractionQuality = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawler_extraction_quality_score",
		Help:    "Distribution of computed article quality scores",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	PacerWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crawler_pacer_wait_duration_seconds",
		Help:    "Time a fetch spent waiting on the per-host pacer",
		Buckets: prometheus.DefBuckets,
	}, []string{"host"})

	PacerBackoffs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_pacer_backoffs_total",
		Help: "Total number of times a host's rate was backed off after a failure",
	}, []string{"host"})

	RobotsDisallowed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_robots_disallowed_total",
		Help: "Total number of fetches skipped due to robots.txt disallow rules",
	}, []string{"host"})

	CoordinatorWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_coordinator_writes_total",
		Help: "Total number of store coordinator commit outcomes",
	}, []string{"status"})

	ReconciliationHints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_reconciliation_hints_total",
		Help: "Total number of reconciliation hints recorded after a partial write failure",
	})

	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_embedding_requests_total",
		Help: "Total number of embedding requests",
	}, []string{"provider", "model", "status"})

	EmbeddingTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_embedding_tokens_total",
		Help: "Total number of tokens sent to embedding providers",
	}, []string{"provider", "model"})

	EmbeddingEstimatedCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_embedding_estimated_cost_millicents_total",
		Help: "Estimated embedding cost in millicents (0.001 cents)",
	}, []string{"provider", "model"})

	EmbeddingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crawler_embedding_request_duration_seconds",
		Help:    "Duration of embedding provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "model"})

	EmbeddingFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_embedding_fallbacks_total",
		Help: "Total number of embedding provider fallback events",
	}, []string{"from_provider", "to_provider"})

	EmbeddingProviderAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crawler_embedding_provider_available",
		Help: "Whether an embedding provider is currently available (0=no, 1=yes)",
	}, []string{"provider"})

	SchedulerJobsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_scheduler_jobs_total",
		Help: "Total number of scheduled jobs run",
	}, []string{"job_type", "status"})

	SchedulerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_scheduler_queue_depth",
		Help: "Current number of jobs pending in the scheduler",
	})

	RetrieverSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_retriever_searches_total",
		Help: "Total number of semantic retrieval searches",
	}, []string{"domain"})
)
