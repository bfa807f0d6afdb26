package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mini-ttc/etaboard/internal/eta"
	"github.com/mini-ttc/etaboard/internal/models"
)

// AlertRepository defines the interface for service alert queries
type AlertRepository interface {
	GetActiveAlerts(ctx context.Context, lines []int) ([]models.ServiceAlert, error)
}

// AlertHandler handles HTTP requests for service alerts
type AlertHandler struct {
	repo AlertRepository
}

// NewAlertHandler creates a new handler with the given repository
func NewAlertHandler(repo AlertRepository) *AlertHandler {
	return &AlertHandler{repo: repo}
}

// AlertsResponse is the JSON response for GET /api/alerts
type AlertsResponse struct {
	Alerts      []models.ServiceAlert `json:"alerts"`
	Count       int                   `json:"count"`
	Mode        string                `json:"mode"`
	LastChecked time.Time             `json:"lastChecked"`
}

// GetAlerts handles GET /api/alerts?line=501&line=1&mode=compact
// Without line parameters every active alert is returned
func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var lines []int
	for _, v := range params["line"] {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "line must be a positive integer", nil)
			return
		}
		lines = append(lines, n)
	}

	mode := params.Get("mode")
	if mode == "" {
		mode = eta.AlertModeFull
	}
	if mode != eta.AlertModeCompact && mode != eta.AlertModeFull {
		writeError(w, http.StatusBadRequest, "mode must be compact or full", nil)
		return
	}

	alerts, err := h.repo.GetActiveAlerts(r.Context(), lines)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve alerts", err)
		return
	}
	alerts = applyAlertMode(alerts, mode)

	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, http.StatusOK, AlertsResponse{
		Alerts:      alerts,
		Count:       len(alerts),
		Mode:        mode,
		LastChecked: time.Now().UTC(),
	})
}

// applyAlertMode drops long-form text in compact mode
func applyAlertMode(alerts []models.ServiceAlert, mode string) []models.ServiceAlert {
	if mode != eta.AlertModeCompact {
		return alerts
	}
	out := make([]models.ServiceAlert, len(alerts))
	for i, a := range alerts {
		a.DescriptionText = ""
		a.URL = ""
		out[i] = a
	}
	return out
}
