package server

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/folio-writing/folio/internal/observability"
	"github.com/folio-writing/folio/internal/ratelimit"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an id, reusing the caller's
// X-Request-ID when present.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(observability.AddRequestID(r.Context(), id)))
	})
}

// InstrumentMiddleware records a span, a metric sample and a log line per request.
func InstrumentMiddleware(logger *slog.Logger, metrics *observability.Metrics, tracer *observability.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeLabel(r.URL.Path)

			ctx, span := tracer.TraceHTTPRequest(r.Context(), r.Method, route)
			defer span.End()

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)
			tracer.SetAttributes(span, "http.status_code", wrapped.status)
			if wrapped.status >= http.StatusInternalServerError {
				tracer.RecordError(span, fmt.Errorf("http %d", wrapped.status))
			}
			metrics.RecordHTTPRequest(r.Method, route, wrapped.status, duration.Seconds())

			if logger != nil {
				logger.DebugContext(ctx, "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", wrapped.status,
					"duration", duration,
					"remote_addr", r.RemoteAddr,
				)
			}
		})
	}
}

// RateLimitMiddleware rejects clients that exceed limiter with 429 and message.
func RateLimitMiddleware(limiter *ratelimit.Limiter, metrics *observability.Metrics, trustProxy bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.CompositeKey(routeLabel(r.URL.Path), ClientIP(r, trustProxy))
			if limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}
			if wait := limiter.WaitTime(key); wait > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
			}
			metrics.RecordRateLimited(routeLabel(r.URL.Path))
			writeError(w, http.StatusTooManyRequests, message)
		})
	}
}

// ClientIP returns the peer address. With trustProxy it prefers the last
// X-Forwarded-For hop, which the proxy appends, then X-Real-IP. Earlier hops
// are client supplied and never used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Values("X-Forwarded-For"); len(fwd) > 0 {
			hops := strings.Split(fwd[len(fwd)-1], ",")
			if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var knownRoutes = map[string]bool{
	"/api/chat":                true,
	"/api/rate":                true,
	"/api/compositions/titles": true,
	"/healthz":                 true,
	"/metrics":                 true,
}

// routeLabel bounds metric label cardinality to the registered routes.
func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
