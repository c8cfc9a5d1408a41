package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for folio.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	metrics.RecordEmbedding("gemini", "query", "success", 0.12)
type Metrics struct {
	// HTTP
	HTTPRequestCounter  *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedCounter  *prometheus.CounterVec

	// Embedding service
	EmbeddingCounter  *prometheus.CounterVec
	EmbeddingDuration *prometheus.HistogramVec

	// Chat completion
	CompletionCounter  *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	CompletionRetries  *prometheus.CounterVec

	// Retrieval
	RetrievedChunks *prometheus.HistogramVec

	// Indexing
	IndexedCompositions *prometheus.CounterVec
	IndexedChunks       prometheus.Counter

	// Rating
	RatingCounter *prometheus.CounterVec

	// Database
	DatabaseQueryDuration *prometheus.HistogramVec
	DatabaseQueryCounter  *prometheus.CounterVec

	// Errors
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg.
// Passing prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		RateLimitedCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter",
			},
			[]string{"path"},
		),

		EmbeddingCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_embedding_requests_total",
				Help: "Total number of embedding requests by provider, intent and status",
			},
			[]string{"provider", "intent", "status"},
		),

		EmbeddingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_embedding_request_duration_seconds",
				Help:    "Duration of embedding requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "intent"},
		),

		CompletionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_chat_completions_total",
				Help: "Total number of chat completion calls by model and status",
			},
			[]string{"model", "status"},
		),

		CompletionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_chat_completion_duration_seconds",
				Help:    "Duration of chat completion calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"model"},
		),

		CompletionRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_chat_completion_retries_total",
				Help: "Retries of transient chat completion failures by reason",
			},
			[]string{"reason"},
		),

		RetrievedChunks: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_retrieved_chunks",
				Help:    "Chunks placed in the chat context by source",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"source"},
		),

		IndexedCompositions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_indexed_compositions_total",
				Help: "Compositions processed by the indexing pipeline by outcome",
			},
			[]string{"outcome"},
		),

		IndexedChunks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "folio_indexed_chunks_total",
				Help: "Chunks written by the indexing pipeline",
			},
		),

		RatingCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_ratings_total",
				Help: "Rating predictions by label",
			},
			[]string{"label"},
		),

		DatabaseQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_database_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "table"},
		),

		DatabaseQueryCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_database_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "table", "status"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordHTTPRequest records metrics for an HTTP request.
//
// Example:
//
//	metrics.RecordHTTPRequest("POST", "/api/chat", 200, time.Since(start).Seconds())
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestCounter.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// RecordRateLimited counts a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(path string) {
	if m == nil {
		return
	}
	m.RateLimitedCounter.WithLabelValues(path).Inc()
}

// RecordEmbedding records metrics for an embedding request.
func (m *Metrics) RecordEmbedding(provider, intent, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.EmbeddingCounter.WithLabelValues(provider, intent, status).Inc()
	m.EmbeddingDuration.WithLabelValues(provider, intent).Observe(durationSeconds)
}

// RecordCompletion records metrics for a chat completion attempt.
func (m *Metrics) RecordCompletion(model, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CompletionCounter.WithLabelValues(model, status).Inc()
	m.CompletionDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordCompletionRetry counts a retried completion attempt.
func (m *Metrics) RecordCompletionRetry(reason string) {
	if m == nil {
		return
	}
	m.CompletionRetries.WithLabelValues(reason).Inc()
}

// RecordRetrieval records how many chunks a context source contributed.
func (m *Metrics) RecordRetrieval(source string, chunks int) {
	if m == nil {
		return
	}
	m.RetrievedChunks.WithLabelValues(source).Observe(float64(chunks))
}

// RecordIndexOutcome records the outcome of indexing one composition.
//
// Example:
//
//	metrics.RecordIndexOutcome("indexed", 4)
//	metrics.RecordIndexOutcome("skipped", 0)
func (m *Metrics) RecordIndexOutcome(outcome string, chunks int) {
	if m == nil {
		return
	}
	m.IndexedCompositions.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		m.IndexedChunks.Add(float64(chunks))
	}
}

// RecordRating counts a rating prediction.
func (m *Metrics) RecordRating(label string) {
	if m == nil {
		return
	}
	m.RatingCounter.WithLabelValues(label).Inc()
}

// RecordDatabaseQuery records metrics for a database query.
//
// Example:
//
//	metrics.RecordDatabaseQuery("select", "composition_chunk", "success", time.Since(start).Seconds())
func (m *Metrics) RecordDatabaseQuery(operation, table, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.DatabaseQueryCounter.WithLabelValues(operation, table, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("retrieval", "embedding_failed")
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
