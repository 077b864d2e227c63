package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestRecorder receives the outcome of every request.
type RequestRecorder interface {
	Record(status int, duration time.Duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

// Logger writes one structured access log line per request and feeds the recorder when set.
func Logger(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			duration := time.Since(start)

			if recorder != nil {
				recorder.Record(rec.status, duration)
			}

			level := slog.LevelInfo
			if rec.status >= 500 {
				level = slog.LevelError
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"durationMs", duration.Milliseconds(),
				"requestId", GetRequestID(r.Context()),
			}
			if user, ok := GetUser(r.Context()); ok {
				attrs = append(attrs, "tenantId", user.TenantID, "userId", user.UserID)
			}
			slog.Log(r.Context(), level, "http request", attrs...)
		})
	}
}
