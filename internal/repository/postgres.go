package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mini-ttc/etaboard/internal/models"
)

//go:embed postgres_schema.sql
var postgresSchemaSQL string

// PostgresRepository serves stations, alerts and bookmarks from PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// EnsureSchema creates the tables this repository reads if they are missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAllStations(ctx context.Context) ([]models.Station, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stationColumns+` FROM ttc_stations ORDER BY stop_num`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	stations := []models.Station{}
	for rows.Next() {
		var s models.Station
		if err := rows.Scan(&s.StopNum, &s.StopID, &s.Name, &s.Direction, &s.Latitude, &s.Longitude, &s.ParentStation); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

func (r *PostgresRepository) GetStation(ctx context.Context, stopNum int) (*models.Station, error) {
	var s models.Station
	err := r.pool.QueryRow(ctx, `SELECT `+stationColumns+` FROM ttc_stations WHERE stop_num = $1`, stopNum).
		Scan(&s.StopNum, &s.StopID, &s.Name, &s.Direction, &s.Latitude, &s.Longitude, &s.ParentStation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("station %d: %w", stopNum, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) GetActiveAlerts(ctx context.Context, lines []int) ([]models.ServiceAlert, error) {
	routeIDs := make([]string, len(lines))
	for i, l := range lines {
		routeIDs[i] = strconv.Itoa(l)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT a.alert_id, COALESCE(a.cause, ''), COALESCE(a.effect, ''),
			COALESCE(a.header_text, ''), COALESCE(a.description_text, ''), COALESCE(a.url, ''),
			a.is_active, a.first_seen_at, a.active_period_start, a.active_period_end, a.resolved_at,
			COALESCE(ARRAY(
				SELECT DISTINCT e.route_id FROM rt_alert_entities e
				WHERE e.alert_id = a.alert_id AND e.route_id ~ '^[0-9]+$'
			), '{}')
		FROM rt_alerts a
		WHERE a.is_active
			AND (cardinality($1::text[]) = 0 OR EXISTS (
				SELECT 1 FROM rt_alert_entities e
				WHERE e.alert_id = a.alert_id AND e.route_id = ANY($1)
			))
		ORDER BY a.first_seen_at DESC
	`, routeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.ServiceAlert{}
	for rows.Next() {
		var a models.ServiceAlert
		if err := rows.Scan(
			&a.AlertID, &a.Cause, &a.Effect, &a.HeaderText, &a.DescriptionText, &a.URL,
			&a.IsActive, &a.FirstSeenAt, &a.ActivePeriodStart, &a.ActivePeriodEnd, &a.ResolvedAt,
			&a.AffectedLines,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		sortNumeric(a.AffectedLines)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (r *PostgresRepository) ListBookmarks(ctx context.Context) ([]models.Bookmark, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT bookmark_id::text, stop_id, name, ttc_id, lines, type, created_at
		FROM bookmarks
		ORDER BY created_at DESC, bookmark_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []models.Bookmark{}
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.ID, &b.StopID, &b.Name, &b.TtcID, &b.Lines, &b.Type, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

func (r *PostgresRepository) SaveBookmark(ctx context.Context, b models.Bookmark) (*models.Bookmark, error) {
	saved := b
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bookmarks (bookmark_id, stop_id, name, ttc_id, lines, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (stop_id, lines, type) DO UPDATE SET name = EXCLUDED.name
		RETURNING bookmark_id::text, created_at
	`, uuid.New().String(), b.StopID, b.Name, b.TtcID, b.Lines, b.Type).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}
	return &saved, nil
}

func (r *PostgresRepository) DeleteBookmark(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("bookmark %s: %w", id, ErrNotFound)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookmarks WHERE bookmark_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bookmark %s: %w", id, ErrNotFound)
	}
	return nil
}
