package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/variantlabs/variant-admin/internal/storage"
	"github.com/variantlabs/variant-admin/pkg/models"
)

// handleLogin handles POST /api/admin/login.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Password == "" || req.Password != h.config.AdminKey {
		h.config.Logger.Warn("login rejected", "remote_addr", r.RemoteAddr)
		jsonError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{AllowedApps: h.config.AllowedApps})
}

// handleExperiments handles GET /api/admin/experiments.
func (h *Handler) handleExperiments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appID := r.Header.Get("X-App-ID")
	list, err := h.config.Stores.Experiments.List(r.Context(), appID)
	if err != nil {
		h.config.Logger.Error("list experiments failed", "app_id", appID, "error", err)
		jsonError(w, "Failed to list experiments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// handleExperiment handles PUT and DELETE on /api/admin/experiments/{key}.
func (h *Handler) handleExperiment(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/admin/experiments/")
	if key == "" || strings.Contains(key, "/") {
		jsonError(w, "Experiment key required", http.StatusNotFound)
		return
	}
	appID := r.Header.Get("X-App-ID")

	switch r.Method {
	case http.MethodPut:
		h.updateExperiment(w, r, appID, key)
	case http.MethodDelete:
		h.deleteExperiment(w, r, appID, key)
	default:
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) updateExperiment(w http.ResponseWriter, r *http.Request, appID, key string) {
	var req models.UpdateExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !models.ValidStatus(req.Status) {
		jsonError(w, "Invalid status", http.StatusBadRequest)
		return
	}
	if total := trafficTotal(req.Variants); total != 100 {
		jsonError(w, "Traffic must sum to 100", http.StatusBadRequest)
		return
	}

	err := h.config.Stores.Experiments.Update(r.Context(), appID, key, req.Status, req.Variants)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, "Experiment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.config.Logger.Error("update experiment failed", "app_id", appID, "key", key, "error", err)
		jsonError(w, "Failed to update experiment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteExperiment(w http.ResponseWriter, r *http.Request, appID, key string) {
	err := h.config.Stores.Experiments.Delete(r.Context(), appID, key)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, "Experiment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.config.Logger.Error("delete experiment failed", "app_id", appID, "key", key, "error", err)
		jsonError(w, "Failed to delete experiment", http.StatusInternalServerError)
		return
	}

	// Orphaned counters are dropped with the experiment.
	if err := h.config.Stores.Stats.Reset(r.Context(), appID, key); err != nil {
		h.config.Logger.Warn("stats cleanup failed", "app_id", appID, "key", key, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSummary handles GET /api/admin/summary/{key}.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/api/admin/summary/")
	if key == "" || strings.Contains(key, "/") {
		jsonError(w, "Experiment key required", http.StatusNotFound)
		return
	}

	appID := r.Header.Get("X-App-ID")
	summary, err := h.config.Stores.Stats.Summary(r.Context(), appID, key)
	if err != nil {
		h.config.Logger.Error("load summary failed", "app_id", appID, "key", key, "error", err)
		jsonError(w, "Failed to load summary", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleStatsReset handles DELETE /api/admin/stats/{key}.
func (h *Handler) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/api/admin/stats/")
	if key == "" || strings.Contains(key, "/") {
		jsonError(w, "Experiment key required", http.StatusNotFound)
		return
	}

	appID := r.Header.Get("X-App-ID")
	if err := h.config.Stores.Stats.Reset(r.Context(), appID, key); err != nil {
		h.config.Logger.Error("reset stats failed", "app_id", appID, "key", key, "error", err)
		jsonError(w, "Failed to reset stats", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCreateExperiment handles POST /api/experiments.
func (h *Handler) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.CreateExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	appID := req.AppID
	if appID == "" {
		appID = r.Header.Get("X-App-ID")
	}
	if appID == "" || req.Name == "" || req.Key == "" {
		jsonError(w, "appId, name and key are required", http.StatusBadRequest)
		return
	}

	variants := req.Variants
	if len(variants) == 0 {
		variants = models.SeedVariants("Control", "Variant B")
	}

	exp := &models.Experiment{
		Key:      req.Key,
		Name:     req.Name,
		Status:   models.StatusActive,
		Variants: variants,
	}
	err := h.config.Stores.Experiments.Create(r.Context(), appID, exp)
	if errors.Is(err, storage.ErrAlreadyExists) {
		jsonError(w, "Experiment key already exists", http.StatusConflict)
		return
	}
	if err != nil {
		h.config.Logger.Error("create experiment failed", "app_id", appID, "key", req.Key, "error", err)
		jsonError(w, "Failed to create experiment", http.StatusInternalServerError)
		return
	}

	h.config.Logger.Info("experiment created", "app_id", appID, "key", req.Key)
	writeJSON(w, http.StatusCreated, exp)
}

// eventRequest is the body of POST /api/events, sent by tracking SDKs.
type eventRequest struct {
	AppID         string `json:"app_id"`
	ExperimentKey string `json:"experiment_key"`
	Variant       string `json:"variant"`
	Event         string `json:"event"`
}

// handleEvent handles POST /api/events. The route is unauthenticated;
// tracking clients only carry an application id.
func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AppID == "" {
		req.AppID = r.Header.Get("X-App-ID")
	}
	if req.AppID == "" || req.ExperimentKey == "" || req.Variant == "" {
		jsonError(w, "app_id, experiment_key and variant are required", http.StatusBadRequest)
		return
	}
	event := storage.EventType(req.Event)
	if !storage.ValidEventType(event) {
		jsonError(w, "Unknown event type", http.StatusBadRequest)
		return
	}

	if err := h.config.Stores.Stats.Record(r.Context(), req.AppID, req.ExperimentKey, req.Variant, event); err != nil {
		h.config.Logger.Error("record event failed", "app_id", req.AppID, "key", req.ExperimentKey, "error", err)
		jsonError(w, "Failed to record event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func trafficTotal(variants []models.Variant) int {
	total := 0
	for _, v := range variants {
		total += v.TrafficPercentage
	}
	return total
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
