package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Cleanup deletes prediction snapshots and resolved alerts older than the
// retention duration
func (db *DB) Cleanup(ctx context.Context, retention time.Duration) error {
	hours := int(retention.Hours())
	if hours < 1 {
		hours = 1
	}

	db.LockWrite()
	defer db.UnlockWrite()

	queries := []struct {
		name  string
		query string
	}{
		{
			name:  "prediction_snapshots",
			query: fmt.Sprintf("DELETE FROM rt_prediction_snapshots WHERE datetime(polled_at_utc) < datetime('now', '-%d hours')", hours),
		},
		{
			name:  "alert_entities",
			query: fmt.Sprintf("DELETE FROM rt_alert_entities WHERE alert_id IN (SELECT alert_id FROM rt_alerts WHERE is_active = 0 AND datetime(resolved_at) < datetime('now', '-%d hours'))", hours),
		},
		{
			name:  "resolved_alerts",
			query: fmt.Sprintf("DELETE FROM rt_alerts WHERE is_active = 0 AND datetime(resolved_at) < datetime('now', '-%d hours')", hours),
		},
	}

	totalDeleted := 0
	for _, q := range queries {
		result, err := db.conn.ExecContext(ctx, q.query)
		if err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		rows, _ := result.RowsAffected()
		totalDeleted += int(rows)
	}

	if totalDeleted > 0 {
		log.Printf("Cleanup: deleted %d records older than %d hours", totalDeleted, hours)
	}

	return nil
}
