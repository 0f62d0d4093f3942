package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query lifecycle metrics
	QueriesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "legalrag_queries_started_total",
			Help: "Total number of queries accepted by the engine",
		},
	)

	QueriesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_queries_completed_total",
			Help: "Total number of queries completed",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "legalrag_query_duration_seconds",
			Help:    "End-to-end query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "legalrag_query_iterations",
			Help:    "Number of loop iterations consumed per query",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	// Decision loop metrics
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_decisions_total",
			Help: "Total number of decider outcomes",
		},
		[]string{"action", "source"},
	)

	MalformedDecisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "legalrag_malformed_decisions_total",
			Help: "Total number of unparseable decision responses defaulted to answer",
		},
	)

	RefinementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_refinements_total",
			Help: "Total number of query refinements",
		},
		[]string{"status"},
	)

	RefinementLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "legalrag_refinement_latency_seconds",
			Help:    "Query refinement latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Synthesis metrics
	SynthesisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_synthesis_total",
			Help: "Total number of answer syntheses",
		},
		[]string{"status"},
	)

	SynthesisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "legalrag_synthesis_latency_seconds",
			Help:    "Answer synthesis latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Vector DB metrics
	VectorSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_vector_search_total",
			Help: "Total number of vector searches",
		},
		[]string{"collection", "status"},
	)

	VectorSearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "legalrag_vector_search_latency_seconds",
			Help:    "Vector search latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	VectorUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_vector_upsert_total",
			Help: "Total number of vector upsert batches",
		},
		[]string{"collection", "status"},
	)

	// Web search metrics
	WebSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_web_search_total",
			Help: "Total number of web searches",
		},
		[]string{"status"},
	)

	WebSearchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "legalrag_web_search_latency_seconds",
			Help:    "Web search latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WebSearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "legalrag_web_search_results",
			Help:    "Number of results returned per web search",
			Buckets: []float64{0, 1, 3, 5, 10, 20},
		},
	)

	// LLM metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_llm_requests_total",
			Help: "Total number of LLM generate calls",
		},
		[]string{"purpose", "status"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "legalrag_llm_latency_seconds",
			Help:    "LLM generate latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"purpose"},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_embedding_requests_total",
			Help: "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "legalrag_embedding_latency_seconds",
			Help:    "Embedding generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// Ingestion metrics
	DocumentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_documents_ingested_total",
			Help: "Total number of corpus chunks indexed",
		},
		[]string{"collection", "status"},
	)

	// Streaming metrics
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "legalrag_stream_subscribers",
			Help: "Number of active event stream subscribers",
		},
	)

	StreamEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "legalrag_stream_events_dropped_total",
			Help: "Total number of events dropped on slow subscribers",
		},
	)

	// HTTP API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalrag_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "legalrag_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	RateLimitedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "legalrag_rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// RecordQueryMetrics records metrics for a completed query.
func RecordQueryMetrics(status string, durationSeconds float64, iterations int) {
	QueriesCompleted.WithLabelValues(status).Inc()
	QueryDuration.Observe(durationSeconds)
	if iterations > 0 {
		QueryIterations.Observe(float64(iterations))
	}
}

// RecordDecision records a decider outcome. Source distinguishes the LLM
// classification from the deterministic fallback policy.
func RecordDecision(action, source string) {
	DecisionsTotal.WithLabelValues(action, source).Inc()
}

// RecordVectorSearchMetrics records vector search metrics.
func RecordVectorSearchMetrics(collection, status string, durationSeconds float64) {
	VectorSearches.WithLabelValues(collection, status).Inc()
	if durationSeconds > 0 {
		VectorSearchLatency.WithLabelValues(collection).Observe(durationSeconds)
	}
}

// RecordWebSearchMetrics records web search metrics.
func RecordWebSearchMetrics(status string, durationSeconds float64, results int) {
	WebSearches.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		WebSearchLatency.Observe(durationSeconds)
	}
	if status == "ok" {
		WebSearchResults.Observe(float64(results))
	}
}

// RecordLLMMetrics records a generate call by purpose (decision, refine, synthesis).
func RecordLLMMetrics(purpose, status string, durationSeconds float64) {
	LLMRequests.WithLabelValues(purpose, status).Inc()
	if durationSeconds > 0 {
		LLMLatency.WithLabelValues(purpose).Observe(durationSeconds)
	}
}

// RecordEmbeddingMetrics records embedding metrics.
func RecordEmbeddingMetrics(model, status string, durationSeconds float64) {
	EmbeddingRequests.WithLabelValues(model, status).Inc()
	if durationSeconds > 0 {
		EmbeddingLatency.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordHTTPMetrics records an API request.
func RecordHTTPMetrics(path, method, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(path, method, status).Inc()
	HTTPRequestDuration.WithLabelValues(path, method).Observe(durationSeconds)
}
