package embeddings

import (
	"context"
	"time"

	"github.com/folio-writing/folio/internal/observability"
)

// Instrumented records metrics and spans around another Provider.
type Instrumented struct {
	next    Provider
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// Instrument wraps p. Nil metrics or tracer disable that signal.
func Instrument(p Provider, metrics *observability.Metrics, tracer *observability.Tracer) *Instrumented {
	return &Instrumented{next: p, metrics: metrics, tracer: tracer}
}

// Name returns the wrapped provider name.
func (i *Instrumented) Name() string {
	return i.next.Name()
}

// Dimension returns the wrapped provider dimension.
func (i *Instrumented) Dimension() int {
	return i.next.Dimension()
}

// Model returns the wrapped provider's model, or "" when it does not report one.
func (i *Instrumented) Model() string {
	if m, ok := i.next.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}

// Embed delegates to the wrapped provider.
func (i *Instrumented) Embed(ctx context.Context, texts []string, opts Options) ([][]float32, error) {
	intent := string(opts.Intent)
	if intent == "" {
		intent = string(IntentDocument)
	}

	ctx, span := i.tracer.TraceEmbedding(ctx, i.next.Name(), intent, len(texts))
	defer span.End()

	start := time.Now()
	vectors, err := i.next.Embed(ctx, texts, opts)

	status := "success"
	if err != nil {
		status = "error"
		i.tracer.RecordError(span, err)
	}
	i.metrics.RecordEmbedding(i.next.Name(), intent, status, time.Since(start).Seconds())
	return vectors, err
}
