package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mini-ttc/etaboard/internal/models"
)

// SQLiteSnapshotRepository reads journalled prediction payloads
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

// NewSQLiteSnapshotRepository creates a new SQLiteSnapshotRepository
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// GetRecentSnapshots returns the latest payloads for a stop board, newest first
func (r *SQLiteSnapshotRepository) GetRecentSnapshots(ctx context.Context, line, stopNum, limit int) ([]models.PredictionSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT snapshot_id, kind, line, stop_num, entry_count, payload, polled_at_utc
		FROM rt_prediction_snapshots
		WHERE line = ? AND stop_num = ?
		ORDER BY polled_at_utc DESC
		LIMIT ?
	`, line, stopNum, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []models.PredictionSnapshot{}
	for rows.Next() {
		var s models.PredictionSnapshot
		var payload, polledAt string
		if err := rows.Scan(&s.SnapshotID, &s.Kind, &s.Line, &s.StopNum, &s.EntryCount, &payload, &polledAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Payload = json.RawMessage(payload)
		s.PolledAt, _ = time.Parse(time.RFC3339, polledAt)
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
