package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mini-ttc/etaboard/internal/metrics"
)

// GetLatencyBaseline retrieves the baseline for a kind, hour and weekday
func (db *DB) GetLatencyBaseline(ctx context.Context, kind string, hour, dayOfWeek int) (*metrics.LatencyBaseline, error) {
	query := `
		SELECT kind, hour_of_day, day_of_week, latency_mean_ms, latency_stddev_ms, sample_count
		FROM upstream_baselines
		WHERE kind = ? AND hour_of_day = ? AND day_of_week = ?
	`

	var b metrics.LatencyBaseline
	err := db.conn.QueryRowContext(ctx, query, kind, hour, dayOfWeek).Scan(
		&b.Kind,
		&b.HourOfDay,
		&b.DayOfWeek,
		&b.LatencyMeanMs,
		&b.LatencyStdDevMs,
		&b.SampleCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SaveLatencyBaseline upserts a baseline record
func (db *DB) SaveLatencyBaseline(ctx context.Context, b metrics.LatencyBaseline) error {
	db.LockWrite()
	defer db.UnlockWrite()

	query := `
		INSERT INTO upstream_baselines (kind, hour_of_day, day_of_week, latency_mean_ms, latency_stddev_ms, sample_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, hour_of_day, day_of_week) DO UPDATE SET
			latency_mean_ms = excluded.latency_mean_ms,
			latency_stddev_ms = excluded.latency_stddev_ms,
			sample_count = excluded.sample_count,
			updated_at = excluded.updated_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		b.Kind,
		b.HourOfDay,
		b.DayOfWeek,
		b.LatencyMeanMs,
		b.LatencyStdDevMs,
		b.SampleCount,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}
