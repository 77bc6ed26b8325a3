// Package middleware provides HTTP middleware for the API layer:
// authentication and request tracing.
package middleware

import (
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
)

// TraceHeader is the response header carrying the request trace ID.
const TraceHeader = "X-Trace-ID"

// TraceMiddleware assigns each request a trace ID, stores it in the
// request context, and echoes it in the response headers. An incoming
// X-Trace-ID header is honored so trace IDs propagate across services.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = shared.GenerateTraceID()
		}
		ctx := shared.SetTraceID(r.Context(), traceID)
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
