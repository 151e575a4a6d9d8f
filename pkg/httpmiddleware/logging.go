package httpmiddleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InjectLogger stores lg in the request context so handlers can retrieve it
// with zctx.From. When RequestID runs first, the logger carries the request
// ID.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLg := lg
			if id := RequestIDFromContext(r.Context()); id != "" {
				reqLg = lg.With(zap.String("request_id", id))
			}
			ctx := zctx.Base(r.Context(), reqLg)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LogRequests logs one line per request after it completes. Probe routes
// log at debug level.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			ctx := r.Context()
			route := find(r)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.code()),
				zap.Int("size", sw.size),
				zap.Duration("duration", time.Since(start)),
			}
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
			}

			lg := zctx.From(ctx)
			switch {
			case sw.code() >= http.StatusInternalServerError:
				lg.Warn("Request failed", fields...)
			case strings.HasSuffix(route, "/livez") || strings.HasSuffix(route, "/readyz"):
				lg.Debug("Request", fields...)
			default:
				lg.Info("Request", fields...)
			}
		})
	}
}
