package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fraudguard/fraudguard/internal/domain"
	"github.com/fraudguard/fraudguard/internal/metrics"
	"github.com/fraudguard/fraudguard/internal/model"
	"github.com/fraudguard/fraudguard/internal/pipeline"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	pipeline  *pipeline.Pipeline
	scorer    *model.Scorer
	repo      domain.Repository
	profiles  domain.ProfileStore
	cache     domain.PredictionCache
	bus       domain.EventBus
	modelPath string
	version   string
	startedAt time.Time
}

// NewHandler creates a new API handler. repo and bus may be nil when the
// audit trail is disabled.
func NewHandler(p *pipeline.Pipeline, scorer *model.Scorer, repo domain.Repository, profiles domain.ProfileStore, cache domain.PredictionCache, eventBus domain.EventBus, modelPath, version string) *Handler {
	return &Handler{
		pipeline:  p,
		scorer:    scorer,
		repo:      repo,
		profiles:  profiles,
		cache:     cache,
		bus:       eventBus,
		modelPath: modelPath,
		version:   version,
		startedAt: time.Now(),
	}
}

// Predict handles POST /predict.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.pipeline.Score(r.Context(), &tx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// BatchRequest is the request body for POST /predict/batch.
type BatchRequest struct {
	Transactions []*domain.Transaction `json:"transactions"`
}

// BatchItemError reports a failed item inside an accepted batch.
type BatchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResponse wraps the batch result with any per-item failures.
type BatchResponse struct {
	*domain.BatchResult
	Errors []BatchItemError `json:"errors,omitempty"`
}

// PredictBatch handles POST /predict/batch.
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	batch, itemErrs, err := h.pipeline.ScoreBatch(r.Context(), req.Transactions)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := BatchResponse{BatchResult: batch}
	for i, itemErr := range itemErrs {
		if itemErr != nil {
			resp.Errors = append(resp.Errors, BatchItemError{Index: i, Error: itemErr.Error()})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetUserProfile handles GET /users/{id}/profile.
func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	snapshot, err := h.pipeline.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// GetPrediction handles GET /predictions/{id}, served from the audit trail.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "audit repository not available",
		})
		return
	}

	result, err := h.repo.GetPrediction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListUserPredictions handles GET /users/{id}/predictions.
func (h *Handler) ListUserPredictions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "audit repository not available",
		})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := h.repo.ListPredictionsByUser(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []*domain.PredictionResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"predictions": results,
		"count":       len(results),
	})
}

// ClearCache handles DELETE /cache.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.pipeline.ClearCache(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("prediction cache cleared", "removed", removed)
	writeJSON(w, http.StatusOK, map[string]any{
		"cleared": removed,
	})
}

// ReloadModel handles POST /model/reload. The running model keeps serving
// if the new artifact fails to load or validate.
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.scorer.LoadFromFile(h.modelPath); err != nil {
		slog.Error("model reload failed", "path", h.modelPath, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "model reload failed: " + err.Error(),
		})
		return
	}

	metrics.SetModelVersion(h.scorer.Version())
	slog.Info("model reloaded", "version", h.scorer.Version())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "reloaded",
		"modelVersion": h.scorer.Version(),
	})
}

// Health returns server health status, degraded when a backing service
// fails its ping.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	components := map[string]string{}

	check := func(name string, err error) {
		if err != nil {
			status = "degraded"
			components[name] = "unavailable"
			return
		}
		components[name] = "ok"
	}

	if h.profiles != nil {
		check("profileStore", h.profiles.Ping(ctx))
	}
	if h.cache != nil {
		check("predictionCache", h.cache.Ping(ctx))
	}
	if h.repo != nil {
		check("repository", h.repo.Ping(ctx))
	}
	if h.bus != nil {
		check("eventBus", h.bus.Ping(ctx))
	}
	if h.scorer.Loaded() {
		components["model"] = "ok"
	} else {
		status = "degraded"
		components["model"] = "not loaded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    h.version,
		"components": components,
	})
}

// Ready returns whether the server can score traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.scorer.Loaded() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
			"error": "model not loaded",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Stats handles GET /stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	pstats := h.pipeline.Stats()
	stats := map[string]any{
		"version":          h.version,
		"modelVersion":     h.scorer.Version(),
		"uptimeSeconds":    int64(time.Since(h.startedAt).Seconds()),
		"cacheHits":        pstats.CacheHits,
		"cacheMisses":      pstats.CacheMisses,
		"cacheHitRate":     pstats.CacheHitRate,
		"averageLatencyMs": pstats.AverageLatencyMs,
	}

	if h.repo != nil {
		total, fraud, err := h.repo.CountPredictions(r.Context())
		if err == nil {
			stats["totalPredictions"] = total
			stats["fraudDetected"] = fraud
			if total > 0 {
				stats["fraudRate"] = float64(fraud) / float64(total)
			}
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrModelNotLoaded), errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
