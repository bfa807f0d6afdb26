package db

import (
	"context"
	"fmt"
	"time"
)

// Station represents a stop row imported from static GTFS
type Station struct {
	StopNum       int
	StopID        string
	Name          string
	Direction     string
	Latitude      float64
	Longitude     float64
	ParentStation string
}

// ReplaceStations swaps the station table for a freshly imported set
func (db *DB) ReplaceStations(ctx context.Context, stations []Station) (int, error) {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ttc_stations"); err != nil {
		return 0, fmt.Errorf("failed to clear stations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ttc_stations (stop_num, stop_id, name, direction, latitude, longitude, parent_station, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stop_num) DO UPDATE SET
			stop_id = excluded.stop_id,
			name = excluded.name,
			direction = excluded.direction,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			parent_station = excluded.parent_station,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare station statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, s := range stations {
		if _, err := stmt.ExecContext(ctx,
			s.StopNum, s.StopID, s.Name, s.Direction,
			s.Latitude, s.Longitude, s.ParentStation, now,
		); err != nil {
			return 0, fmt.Errorf("failed to insert station %d: %w", s.StopNum, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stations: %w", err)
	}
	return len(stations), nil
}
