package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/mini-ttc/etaboard/internal/eta"
	"github.com/mini-ttc/etaboard/internal/models"
)

// BoardEngine renders and refreshes stop boards
type BoardEngine interface {
	View(ctx context.Context, q eta.StopQuery, opts eta.ViewOptions) (eta.Board, error)
	Refresh(q eta.StopQuery) (eta.Token, error)
}

// SnapshotRepository defines the interface for journalled prediction payloads
type SnapshotRepository interface {
	GetRecentSnapshots(ctx context.Context, line, stopNum, limit int) ([]models.PredictionSnapshot, error)
}

// BoardObserver receives counts of served boards and refreshes
type BoardObserver interface {
	ObserveBoard(state string)
	ObserveRefresh()
}

// StopHandler handles HTTP requests for stop boards
type StopHandler struct {
	engine    BoardEngine
	alerts    AlertRepository
	snapshots SnapshotRepository
	observer  BoardObserver
}

// NewStopHandler creates a new handler. alerts, snapshots and observer may be nil.
func NewStopHandler(engine BoardEngine, alerts AlertRepository, snapshots SnapshotRepository, observer BoardObserver) *StopHandler {
	return &StopHandler{
		engine:    engine,
		alerts:    alerts,
		snapshots: snapshots,
		observer:  observer,
	}
}

// BoardResponse is the JSON response for a stop board. AlertItems fills the
// board's alert list section.
type BoardResponse struct {
	eta.Board
	AlertItems []models.ServiceAlert `json:"alertItems,omitempty"`
}

// SourceResponse is the JSON response for GET /api/source/{line}
type SourceResponse struct {
	Line   int        `json:"line"`
	Source eta.Source `json:"source"`
}

// SnapshotsResponse is the JSON response for GET /api/stops/{line}/{stopNum}/raw
type SnapshotsResponse struct {
	Snapshots []models.PredictionSnapshot `json:"snapshots"`
	Count     int                         `json:"count"`
}

// GetBoard handles GET /api/stops/{line}/{stopNum}
// Blocks until the active source settles unless wait=false is given
func (h *StopHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	q, ok := stopQuery(w, r)
	if !ok {
		return
	}

	wait := true
	if v := r.URL.Query().Get("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "wait must be a boolean", nil)
			return
		}
		wait = parsed
	}

	h.serveBoard(w, r, q, wait)
}

// RefreshBoard handles POST /api/stops/{line}/{stopNum}/refresh
// Issues a new freshness token and returns the board fetched under it
func (h *StopHandler) RefreshBoard(w http.ResponseWriter, r *http.Request) {
	q, ok := stopQuery(w, r)
	if !ok {
		return
	}

	if _, err := h.engine.Refresh(q); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stop query", err)
		return
	}
	if h.observer != nil {
		h.observer.ObserveRefresh()
	}

	h.serveBoard(w, r, q, true)
}

// GetRawSnapshots handles GET /api/stops/{line}/{stopNum}/raw
func (h *StopHandler) GetRawSnapshots(w http.ResponseWriter, r *http.Request) {
	q, ok := stopQuery(w, r)
	if !ok {
		return
	}
	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "Prediction journal is not enabled", nil)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500", nil)
			return
		}
		limit = n
	}

	// Subway payloads are journalled per stop with line 0
	line := q.Line
	if q.Source() == eta.SourceSubway {
		line = 0
	}

	snapshots, err := h.snapshots.GetRecentSnapshots(r.Context(), line, q.StopNum, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve snapshots", err)
		return
	}

	writeJSON(w, http.StatusOK, SnapshotsResponse{Snapshots: snapshots, Count: len(snapshots)})
}

// GetSource handles GET /api/source/{line}
func (h *StopHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	line, ok := intParam(r, "line")
	if !ok {
		writeError(w, http.StatusBadRequest, "line must be a positive integer", nil)
		return
	}
	writeJSON(w, http.StatusOK, SourceResponse{Line: line, Source: eta.SelectSource(line)})
}

func (h *StopHandler) serveBoard(w http.ResponseWriter, r *http.Request, q eta.StopQuery, wait bool) {
	ctx := r.Context()

	board, err := h.engine.View(ctx, q, eta.ViewOptions{Wait: wait})
	if err != nil {
		if errors.Is(err, eta.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, "Invalid stop query", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to build board", err)
		return
	}

	resp := BoardResponse{Board: board}
	if board.Alerts != nil && h.alerts != nil {
		items, err := h.alerts.GetActiveAlerts(ctx, board.Alerts.Lines)
		if err != nil {
			log.Printf("Board: failed to load alerts for line %d: %v", q.Line, err)
		} else {
			resp.AlertItems = applyAlertMode(items, board.Alerts.Mode)
		}
	}

	if h.observer != nil {
		h.observer.ObserveBoard(board.State.String())
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func stopQuery(w http.ResponseWriter, r *http.Request) (eta.StopQuery, bool) {
	line, ok := intParam(r, "line")
	if !ok {
		writeError(w, http.StatusBadRequest, "line must be a positive integer", nil)
		return eta.StopQuery{}, false
	}
	stopNum, ok := intParam(r, "stopNum")
	if !ok {
		writeError(w, http.StatusBadRequest, "stopNum must be a positive integer", nil)
		return eta.StopQuery{}, false
	}
	return eta.StopQuery{Line: line, StopNum: stopNum}, true
}
