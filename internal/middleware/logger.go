package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-checkout/internal/logging"
)

const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RequestLogger attaches a request-scoped logger to the context and logs
// one line per completed request. A missing X-Request-ID is generated.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
				r.Header.Set(RequestIDHeader, rid)
			}
			w.Header().Set(RequestIDHeader, rid)

			l := base.With(
				"request_id", rid,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_ip", clientIP(r),
			)

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(logging.IntoContext(r.Context(), l)))
			dur := time.Since(start)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			switch {
			case status >= 500:
				l.ErrorContext(r.Context(), "request completed", "status", status, "duration_ms", dur.Milliseconds())
			case status >= 400:
				l.WarnContext(r.Context(), "request completed", "status", status, "duration_ms", dur.Milliseconds())
			default:
				l.InfoContext(r.Context(), "request completed", "status", status, "duration_ms", dur.Milliseconds(), "bytes", rec.bytes)
			}
		})
	}
}
