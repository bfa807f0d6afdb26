package predictions

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/mini-ttc/etaboard/internal/db"
	"github.com/mini-ttc/etaboard/internal/ttc"
)

// SnapshotStore persists raw prediction payloads
type SnapshotStore interface {
	CreatePredictionSnapshot(ctx context.Context, s db.PredictionSnapshot) (string, error)
}

// Recorder wraps a fetcher and journals every successful fetch. Journal
// failures are logged and never fail the fetch.
type Recorder struct {
	next  ttc.Fetcher
	store SnapshotStore
	clock func() time.Time
}

// NewRecorder creates a journalling fetcher
func NewRecorder(next ttc.Fetcher, store SnapshotStore) *Recorder {
	return &Recorder{next: next, store: store, clock: time.Now}
}

// FetchSubway fetches and journals a subway stop
func (r *Recorder) FetchSubway(ctx context.Context, stopNum int) ([]ttc.SubwayPrediction, error) {
	preds, err := r.next.FetchSubway(ctx, stopNum)
	if err != nil {
		return nil, err
	}
	// Subway boards are keyed by stop only; line 0 marks "any subway line".
	r.record(ctx, ttc.KindSubway, 0, stopNum, len(preds), preds)
	return preds, nil
}

// FetchBus fetches and journals a bus line at a stop
func (r *Recorder) FetchBus(ctx context.Context, stopNum, line int) ([]ttc.BusPrediction, error) {
	preds, err := r.next.FetchBus(ctx, stopNum, line)
	if err != nil {
		return nil, err
	}
	r.record(ctx, ttc.KindBus, line, stopNum, len(preds), preds)
	return preds, nil
}

func (r *Recorder) record(ctx context.Context, kind string, line, stopNum, entries int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Predictions: failed to encode %s snapshot: %v", kind, err)
		return
	}
	_, err = r.store.CreatePredictionSnapshot(ctx, db.PredictionSnapshot{
		Kind:       kind,
		Line:       line,
		StopNum:    stopNum,
		EntryCount: entries,
		Payload:    body,
		PolledAt:   r.clock(),
	})
	if err != nil {
		log.Printf("Predictions: failed to journal %s stop %d: %v", kind, stopNum, err)
	}
}
