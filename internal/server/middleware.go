package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/variantlabs/variant-admin/internal/observability"
)

// LoggingMiddleware logs HTTP requests.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			if logger != nil {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", wrapped.status,
					"duration", time.Since(start),
					"remote_addr", r.RemoteAddr,
				)
			}
		})
	}
}

// MetricsMiddleware records request counts and latency.
func MetricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			metrics.ObserveHTTPRequest(r.Method, routeLabel(r.URL.Path), wrapped.status, time.Since(start))
		})
	}
}

// AdminAuthMiddleware enforces the shared admin credential and the
// allowed-application list. Login, event ingestion, metrics and health
// probes are exempt.
func AdminAuthMiddleware(adminKey string, allowedApps []string, logger *slog.Logger) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedApps))
	for _, app := range allowedApps {
		allowed[app] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOpenRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-Admin-Key")
			if key == "" || key != adminKey {
				if logger != nil {
					logger.Warn("admin key rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				}
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			appID := r.Header.Get("X-App-ID")
			if appID == "" || !allowed[appID] {
				if logger != nil {
					logger.Warn("app id not allowed", "app_id", appID, "path", r.URL.Path)
				}
				jsonError(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isOpenRoute(path string) bool {
	switch path {
	case "/api/admin/login", "/api/events", "/metrics", "/healthz":
		return true
	}
	return false
}

// routeLabel collapses keyed paths so the metric cardinality stays bounded.
func routeLabel(path string) string {
	for _, prefix := range []string{"/api/admin/experiments/", "/api/admin/summary/", "/api/admin/stats/"} {
		if strings.HasPrefix(path, prefix) {
			return prefix + ":key"
		}
	}
	return path
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
