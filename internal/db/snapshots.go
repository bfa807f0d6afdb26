package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PredictionSnapshot is one journalled upstream payload
type PredictionSnapshot struct {
	Kind       string
	Line       int
	StopNum    int
	EntryCount int
	Payload    []byte
	PolledAt   time.Time
}

// CreatePredictionSnapshot stores a raw prediction payload and returns its ID
func (db *DB) CreatePredictionSnapshot(ctx context.Context, s PredictionSnapshot) (string, error) {
	db.LockWrite()
	defer db.UnlockWrite()

	snapshotID := uuid.New().String()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO rt_prediction_snapshots (snapshot_id, kind, line, stop_num, entry_count, payload, polled_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, s.Kind, s.Line, s.StopNum, s.EntryCount, string(s.Payload),
		s.PolledAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}

	return snapshotID, nil
}
