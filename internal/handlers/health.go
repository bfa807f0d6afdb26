package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/mini-ttc/etaboard/internal/metrics"
)

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamReporter summarizes upstream fetch health
type UpstreamReporter interface {
	Snapshot() []metrics.UpstreamStats
}

// HealthHandler handles health and upstream status requests
type HealthHandler struct {
	db       Pinger
	upstream UpstreamReporter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, upstream UpstreamReporter) *HealthHandler {
	return &HealthHandler{db: db, upstream: upstream}
}

// UpstreamHealthResponse is the JSON response for GET /api/health/upstream
type UpstreamHealthResponse struct {
	Sources     []metrics.UpstreamStats `json:"sources"`
	LastChecked time.Time               `json:"lastChecked"`
}

// Health handles GET /health with a database connectivity test
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// GetUpstreamHealth handles GET /api/health/upstream
// Returns running latency and error stats per prediction source
func (h *HealthHandler) GetUpstreamHealth(w http.ResponseWriter, r *http.Request) {
	sources := []metrics.UpstreamStats{}
	if h.upstream != nil {
		sources = h.upstream.Snapshot()
	}
	writeJSON(w, http.StatusOK, UpstreamHealthResponse{
		Sources:     sources,
		LastChecked: time.Now().UTC(),
	})
}
