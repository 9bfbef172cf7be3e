package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tskoli/kaiwa/internal/api/shared"
)

// Trace attaches a trace ID to the request context and logs the request
// start. Apply it first so every later handler sees the trace ID.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		slog.Debug("request started",
			slog.String("trace_id", shared.GetTraceID(ctx)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
