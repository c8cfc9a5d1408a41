// Package observability provides metrics, structured logging and tracing for folio.
//
// # Metrics
//
// Metrics are Prometheus collectors registered on a caller-supplied registry and track:
//   - HTTP request counts and latency by route
//   - Embedding calls by provider, intent and outcome
//   - Chat completions, retries and user-facing failure classes
//   - Retrieved context size per source
//   - Indexing outcomes per composition
//   - Rating predictions by label
//   - Database query latency
//
// All Record methods are safe on a nil *Metrics so components can run without metrics.
//
// # Logging
//
// NewLogger builds a *slog.Logger whose handler redacts secrets (API keys, DSN
// passwords, bearer tokens) and adds the request id carried in the context.
//
// # Tracing
//
// NewTracer exports spans over OTLP/gRPC when an endpoint is configured and
// falls back to a no-op tracer otherwise.
package observability
