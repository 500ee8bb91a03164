// Package server implements the admin REST API consumed by the console.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/variantlabs/variant-admin/internal/observability"
	"github.com/variantlabs/variant-admin/internal/storage"
)

// Config holds server configuration.
type Config struct {
	// AdminKey is the shared credential checked on admin routes.
	AdminKey string
	// AllowedApps lists the application ids an admin may operate on.
	AllowedApps []string
	// Stores provides experiment and stats persistence.
	Stores storage.StoreSet
	// Logger for request logging.
	Logger *slog.Logger
	// Metrics for request instrumentation (optional).
	Metrics *observability.Metrics
}

// Handler is the admin API HTTP handler.
type Handler struct {
	config *Config
	mux    *http.ServeMux
}

// NewHandler creates the handler and wires its routes.
func NewHandler(cfg *Config) *Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &Handler{
		config: cfg,
		mux:    http.NewServeMux(),
	}
	h.setupRoutes()
	return h
}

func (h *Handler) setupRoutes() {
	h.mux.HandleFunc("/api/admin/login", h.handleLogin)
	h.mux.HandleFunc("/api/admin/experiments", h.handleExperiments)
	h.mux.HandleFunc("/api/admin/experiments/", h.handleExperiment)
	h.mux.HandleFunc("/api/admin/summary/", h.handleSummary)
	h.mux.HandleFunc("/api/admin/stats/", h.handleStatsReset)
	h.mux.HandleFunc("/api/experiments", h.handleCreateExperiment)
	h.mux.HandleFunc("/api/events", h.handleEvent)
	h.mux.HandleFunc("/healthz", h.handleHealth)
	h.mux.Handle("/metrics", promhttp.Handler())
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Mount returns the handler with middleware applied.
func (h *Handler) Mount() http.Handler {
	var handler http.Handler = h

	handler = AdminAuthMiddleware(h.config.AdminKey, h.config.AllowedApps, h.config.Logger)(handler)
	if h.config.Metrics != nil {
		handler = MetricsMiddleware(h.config.Metrics)(handler)
	}
	handler = LoggingMiddleware(h.config.Logger)(handler)

	return handler
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
